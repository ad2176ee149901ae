package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/TFMV/fsvisitor/internal/watch"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	// Watch command options
	watchEvents        []string
	watchRecursive     bool
	watchDebounce      time.Duration
	watchTimeout       time.Duration
	watchIncludeHidden bool
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Search again whenever the tree changes",
	Long: `Run a search, then watch the tree and run the search again after every batch
of filesystem changes. Each run is a complete, independent walk.

Examples:
  fsvisitor watch /path/to/watch
  fsvisitor watch --ext=.go --events=create,delete /path/to/watch
  fsvisitor watch --recursive=false --debounce=1s /path/to/watch`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := rootArg(args)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if watchTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, watchTimeout)
			defer cancel()
		}
		return runWatch(ctx, root)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringSliceVar(&watchEvents, "watch-events", []string{}, "Events that trigger a new search (create, modify, delete, rename, chmod)")
	watchCmd.Flags().BoolVar(&watchRecursive, "recursive", true, "Watch subdirectories recursively")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watch.DefaultDebounce, "Quiet period before searching again")
	watchCmd.Flags().DurationVar(&watchTimeout, "timeout", 0, "Duration to watch before exiting (e.g., 1h, 30m)")
	watchCmd.Flags().BoolVar(&watchIncludeHidden, "include-hidden", false, "Include hidden files and directories")
}

func runWatch(ctx context.Context, root string) error {
	cfg, err := loadSearchConfig()
	if err != nil {
		return err
	}

	logger := createLogger(logLevelFromFlags(viper.GetBool("verbose"), viper.GetBool("silent")))
	defer logger.Sync()

	var events []watch.Event
	for _, name := range watchEvents {
		e, err := watch.ParseEvent(name)
		if err != nil {
			return err
		}
		events = append(events, e)
	}

	v, err := newVisitor(cfg, logger)
	if err != nil {
		return err
	}

	search := func() error {
		seq, err := v.Search(root)
		if err != nil {
			return err
		}
		count, err := printResults(os.Stdout, seq, cfg.Format)
		if err != nil {
			return err
		}
		logger.Info("search complete", zap.String("root", root), zap.Int("matches", count))
		return nil
	}

	if err := search(); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Watching %s for changes...\n", root)
	fmt.Fprintln(os.Stderr, "Press Ctrl+C to exit.")

	opts := watch.Options{
		Events:        events,
		Recursive:     watchRecursive,
		IncludeHidden: watchIncludeHidden,
		Debounce:      watchDebounce,
		Logger:        logger,
	}
	return watch.Watch(ctx, root, opts, func(ctx context.Context, changes []watch.Change) error {
		logger.Info("tree changed", zap.Int("changes", len(changes)))
		// The root itself may have been removed; report it and keep watching.
		if err := search(); err != nil {
			logger.Error("search failed", zap.Error(err))
		}
		return nil
	})
}
