package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/TFMV/fsvisitor/internal/metrics"
	"github.com/TFMV/fsvisitor/internal/visitor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats [path]",
	Short: "Count the notifications fired by a search",
	Long: `Run a search and report how many entries were found, how many passed the
filter, how many listeners excluded and whether the walk was stopped.

All search flags apply, so steering can be inspected before running it for real.

Examples:
  fsvisitor stats /path/to/directory
  fsvisitor stats --ext=.go --exclude=vendor /path/to/directory
  fsvisitor stats --stop-after=10 --format=json /path/to/directory`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := rootArg(args)
		if err != nil {
			return err
		}
		return runStats(os.Stdout, root)
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

// rootArg returns the path argument or the working directory.
func rootArg(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("error getting current directory: %w", err)
	}
	return dir, nil
}

func runStats(w io.Writer, root string) error {
	cfg, err := loadSearchConfig()
	if err != nil {
		return err
	}

	logger := createLogger(logLevelFromFlags(viper.GetBool("verbose"), viper.GetBool("silent")))
	defer logger.Sync()

	v, err := newVisitor(cfg, logger)
	if err != nil {
		return err
	}
	collector := metrics.NewCollector(prometheus.NewRegistry())
	collector.Observe(v)

	seq, err := v.Search(root)
	if err != nil {
		return err
	}
	matches, err := visitor.Collect(seq)
	if err != nil {
		return err
	}

	stats, err := collector.Snapshot()
	if err != nil {
		return fmt.Errorf("error gathering metrics: %w", err)
	}
	return writeStats(w, root, len(matches), stats, cfg.Format)
}

func writeStats(w io.Writer, root string, matches int, stats metrics.Stats, format string) error {
	if format == "json" {
		return json.NewEncoder(w).Encode(struct {
			Root    string        `json:"root"`
			Matches int           `json:"matches"`
			Stats   metrics.Stats `json:"stats"`
		}{root, matches, stats})
	}

	fmt.Fprintf(w, "Root:            %s\n", root)
	fmt.Fprintf(w, "Matches:         %d\n", matches)
	fmt.Fprintf(w, "Files found:     %d (%d passed the filter)\n", stats.FilesFound, stats.FilesFiltered)
	fmt.Fprintf(w, "Dirs found:      %d (%d passed the filter)\n", stats.DirsFound, stats.DirsFiltered)
	fmt.Fprintf(w, "Stopped:         %t\n", stats.WalksStopped > 0)

	if len(stats.Excluded) > 0 {
		events := make([]string, 0, len(stats.Excluded))
		for event := range stats.Excluded {
			events = append(events, event)
		}
		sort.Strings(events)
		fmt.Fprintln(w, "Excluded:")
		for _, event := range events {
			fmt.Fprintf(w, "  %-22s %d\n", event, stats.Excluded[event])
		}
	}
	return nil
}
