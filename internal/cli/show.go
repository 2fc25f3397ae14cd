package cli

import (
	"github.com/spf13/cobra"

	"github.com/plusplusoneplusplus/dfcache/internal/daemon"
)

var showBudget int

func init() {
	showCmd.Flags().IntVar(&showBudget, "budget", 4096, "byte budget for the summary")
	rootCmd.AddCommand(showCmd)
}

var showCmd = &cobra.Command{
	Use:   "show DF_ID",
	Short: "Print a structured summary of a cached dataset",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
	id := args[0]

	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	summary, err := d.Manager.Summarize(cmd.Context(), id, showBudget, true)
	if err != nil {
		return err
	}

	return printJSON(summary)
}
