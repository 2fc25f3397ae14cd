package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/plusplusoneplusplus/dfcache/internal/daemon"
)

var listTags []string

func init() {
	listCmd.Flags().StringArrayVar(&listTags, "tag", nil, "filter by tag (key=value), repeatable")
	rootCmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List cached datasets",
	RunE:    runList,
}

func runList(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	filter, err := parseTags(listTags)
	if err != nil {
		return err
	}

	items, err := d.Manager.List(cmd.Context(), filter, 0)
	if err != nil {
		return err
	}

	if len(items) == 0 {
		fmt.Println("No datasets cached. Run 'dfcache load <file>' to get started.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSHAPE\tMEMORY\tTTL\tCREATED")
	for _, m := range items {
		ttl := "none"
		if m.TTLSeconds != nil {
			ttl = fmt.Sprintf("%ds", *m.TTLSeconds)
		}
		fmt.Fprintf(w, "%s\t%dx%d\t%s\t%s\t%s\n",
			m.ID, m.Shape.Rows, m.Shape.Cols,
			formatBytes(m.MemoryBytes), ttl,
			m.CreatedAt.Format("2006-01-02 15:04:05"),
		)
	}
	return w.Flush()
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
