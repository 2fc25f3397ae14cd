package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plusplusoneplusplus/dfcache/internal/daemon"
	"github.com/plusplusoneplusplus/dfcache/internal/infra/tabular"
)

var (
	loadTTLSeconds int64
	loadTags       []string
)

func init() {
	loadCmd.Flags().Int64Var(&loadTTLSeconds, "ttl", 0, "expire after N seconds (0 = never)")
	loadCmd.Flags().StringArrayVar(&loadTags, "tag", nil, "tag the dataset with key=value, repeatable")
	rootCmd.AddCommand(loadCmd)
}

var loadCmd = &cobra.Command{
	Use:   "load FILE",
	Short: "Load a CSV or JSON file into the cache",
	Long: `load reads a .csv or .json file of row-oriented records and stores
it in the cache, printing the assigned df_id. This is demo ingestion for
exercising the cache from a shell — dfcache itself has no ingestion
pipeline of its own.`,
	Args: cobra.ExactArgs(1),
	RunE: runLoad,
}

func runLoad(cmd *cobra.Command, args []string) error {
	records, columns, err := loadRecords(args[0])
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("%s: no records found", args[0])
	}

	tags, err := parseTags(loadTags)
	if err != nil {
		return err
	}

	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	var ttl *int64
	if loadTTLSeconds > 0 {
		ttl = &loadTTLSeconds
	}

	t := tabular.FromRecords(records, columns)
	meta, err := d.Manager.Store(cmd.Context(), t, ttl, tags)
	if err != nil {
		return err
	}

	fmt.Printf("Stored %s (%dx%d, %s)\n", meta.ID, meta.Shape.Rows, meta.Shape.Cols, formatBytes(meta.MemoryBytes))
	return nil
}
