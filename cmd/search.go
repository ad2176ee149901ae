package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"os"

	"github.com/TFMV/fsvisitor/internal/filter"
	"github.com/TFMV/fsvisitor/internal/visitor"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// searchConfig holds the options shared by every command that runs a search.
type searchConfig struct {
	Filter    filter.Options
	Exclude   []string // globs matched against entry names on EntryFound
	StopAfter int      // stop on the N-th FileFound
	StopAt    string   // glob; stop on the first matching entry
	Events    bool     // log every notification
	Format    string
}

// loadSearchConfig reads the search options from viper.
func loadSearchConfig() (searchConfig, error) {
	cfg := searchConfig{
		Filter: filter.Options{
			Extensions:  viper.GetStringSlice("ext"),
			Pattern:     viper.GetString("pattern"),
			PathPattern: viper.GetString("path-pattern"),
			Regex:       viper.GetString("regex"),
			Contains:    viper.GetString("contains"),
		},
		Exclude:   viper.GetStringSlice("exclude"),
		StopAfter: viper.GetInt("stop-after"),
		StopAt:    viper.GetString("stop-at"),
		Events:    viper.GetBool("events"),
		Format:    viper.GetString("format"),
	}

	if cfg.StopAfter < 0 {
		return cfg, fmt.Errorf("invalid stop-after value: %d", cfg.StopAfter)
	}
	switch cfg.Format {
	case "", "text":
		cfg.Format = "text"
	case "json":
	default:
		return cfg, fmt.Errorf("invalid format: %s", cfg.Format)
	}
	return cfg, nil
}

// newVisitor builds a visitor from cfg and registers its listeners: event
// logging first, then exclusion, then stop conditions.
func newVisitor(cfg searchConfig, logger *zap.Logger) (*visitor.Visitor, error) {
	pred, err := filter.Build(cfg.Filter)
	if err != nil {
		return nil, err
	}
	v := visitor.NewWithOptions(visitor.Options{Filter: pred, Logger: logger})

	if cfg.Events {
		logEvents(v, logger)
	}

	if len(cfg.Exclude) > 0 {
		var excludes []visitor.Predicate
		for _, pattern := range cfg.Exclude {
			p, err := filter.Glob(pattern)
			if err != nil {
				return nil, fmt.Errorf("invalid exclude pattern: %w", err)
			}
			excludes = append(excludes, p)
		}
		excluded := filter.Or(excludes...)
		v.OnEntryFound(func(ev *visitor.Event) {
			if excluded(ev.Path) {
				ev.ExcludeEntry = true
			}
		})
	}

	if cfg.StopAt != "" {
		stopAt, err := filter.Glob(cfg.StopAt)
		if err != nil {
			return nil, fmt.Errorf("invalid stop-at pattern: %w", err)
		}
		v.OnEntryFound(func(ev *visitor.Event) {
			if stopAt(ev.Path) {
				ev.StopSearch = true
			}
		})
	}

	if cfg.StopAfter > 0 {
		// The counter lives for one walk; Start resets it so re-runs behave the same.
		var found int
		v.OnStart(func() { found = 0 })
		v.OnFileFound(func(ev *visitor.Event) {
			found++
			if found >= cfg.StopAfter {
				ev.StopSearch = true
			}
		})
	}

	return v, nil
}

// logEvents logs every notification the way the console demo does.
func logEvents(v *visitor.Visitor, logger *zap.Logger) {
	v.OnStart(func() { logger.Info("Start") })
	v.OnFinish(func() { logger.Info("Finish") })
	v.OnEntryFound(func(ev *visitor.Event) {
		logger.Info(ev.Type.String(), zap.String("path", ev.Path))
	})
	v.OnFilteredEntryFound(func(ev *visitor.Event) {
		logger.Info(ev.Type.String(), zap.String("path", ev.Path))
	})
}

// printResults drains seq into w in the requested format.
func printResults(w io.Writer, seq iter.Seq2[string, error], format string) (int, error) {
	var count int
	enc := json.NewEncoder(w)
	for path, err := range seq {
		if err != nil {
			return count, err
		}
		count++
		if format == "json" {
			if err := enc.Encode(map[string]string{"path": path}); err != nil {
				return count, err
			}
			continue
		}
		fmt.Fprintln(w, path)
	}
	return count, nil
}

func runSearch(root string) error {
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

	seq, err := v.Search(root)
	if err != nil {
		return err
	}

	count, err := printResults(os.Stdout, seq, cfg.Format)
	if err != nil {
		return err
	}
	logger.Debug("search complete", zap.String("root", root), zap.Int("matches", count))
	return nil
}
