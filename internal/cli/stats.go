package cli

import (
	"github.com/spf13/cobra"

	"github.com/plusplusoneplusplus/dfcache/internal/daemon"
)

func init() {
	rootCmd.AddCommand(statsCmd)
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print registry occupancy statistics",
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	stats, err := d.Manager.Stats(cmd.Context())
	if err != nil {
		return err
	}

	return printJSON(stats)
}
