package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plusplusoneplusplus/dfcache/internal/daemon"
)

var queryParams []string

func init() {
	queryCmd.Flags().StringArrayVar(&queryParams, "param", nil, "operation parameter (key=value), repeatable")
	rootCmd.AddCommand(queryCmd)
}

var queryCmd = &cobra.Command{
	Use:   "query DF_ID OPERATION",
	Short: "Run a query operation against a cached dataset",
	Long: `query dispatches one of head, tail, sample, describe, info, filter,
search, or value_counts against a cached dataset and prints the
JSON-encoded result.`,
	Args: cobra.ExactArgs(2),
	RunE: runQuery,
}

func runQuery(cmd *cobra.Command, args []string) error {
	id, op := args[0], args[1]

	params, err := parseParams(queryParams)
	if err != nil {
		return err
	}

	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	result, err := d.Manager.Query(cmd.Context(), id, op, params)
	if err != nil {
		return err
	}

	return printJSON(result)
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
