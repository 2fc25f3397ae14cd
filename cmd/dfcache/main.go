// Package main is the single-binary entrypoint for dfcache.
package main

import "github.com/plusplusoneplusplus/dfcache/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
