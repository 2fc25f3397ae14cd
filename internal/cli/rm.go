package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plusplusoneplusplus/dfcache/internal/daemon"
)

func init() {
	rootCmd.AddCommand(rmCmd)
}

var rmCmd = &cobra.Command{
	Use:   "rm DF_ID",
	Short: "Evict a dataset from the cache",
	Args:  cobra.ExactArgs(1),
	RunE:  runRm,
}

func runRm(cmd *cobra.Command, args []string) error {
	id := args[0]

	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	removed, err := d.Manager.Delete(cmd.Context(), id)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("dataset %q not found", id)
	}

	fmt.Printf("Removed %s\n", id)
	return nil
}
