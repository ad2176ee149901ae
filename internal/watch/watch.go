// Package watch reports filesystem changes under a directory tree in
// debounced batches, so callers can re-run a search when the tree changes.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/TFMV/fsvisitor/internal/visitor"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is used when Options.Debounce is zero.
const DefaultDebounce = 200 * time.Millisecond

// Event represents a filesystem event type
type Event string

// Watch event types
const (
	EventCreate Event = "create"
	EventModify Event = "modify"
	EventDelete Event = "delete"
	EventRename Event = "rename"
	EventChmod  Event = "chmod"
)

// ParseEvent maps a user supplied name to an Event.
func ParseEvent(name string) (Event, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "create":
		return EventCreate, nil
	case "write", "modify":
		return EventModify, nil
	case "remove", "delete":
		return EventDelete, nil
	case "rename":
		return EventRename, nil
	case "chmod":
		return EventChmod, nil
	default:
		return "", fmt.Errorf("unknown event type: %s", name)
	}
}

// Options defines options for watching filesystem changes
type Options struct {
	// Events to report. If empty, all events are reported.
	Events []Event

	// Whether to watch subdirectories recursively
	Recursive bool

	// Whether to include hidden files and directories
	IncludeHidden bool

	// Quiet period that closes a batch of changes
	Debounce time.Duration

	Logger *zap.Logger
}

// Change is a single filesystem event
type Change struct {
	Path  string
	Event Event
	Time  time.Time
}

// Handler processes one batch of changes. Returning an error stops Watch.
type Handler func(ctx context.Context, changes []Change) error

// Watch monitors root until ctx is done, calling handler once per debounced
// batch of changes. Directories created under a recursive watch are added as
// they appear.
func Watch(ctx context.Context, root string, opts Options, handler Handler) error {
	if handler == nil {
		return errors.New("watch: handler is required")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("error creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(root); err != nil {
		return fmt.Errorf("error watching directory %s: %w", root, err)
	}
	if opts.Recursive {
		if err := addTree(watcher, root, opts, logger); err != nil {
			return err
		}
	}

	ops := eventOps(opts.Events)
	var (
		pending []Change
		timer   *time.Timer
		fire    <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if opts.Recursive && event.Has(fsnotify.Create) && isDir(event.Name) {
				if opts.IncludeHidden || !isHidden(event.Name) {
					if err := watcher.Add(event.Name); err != nil {
						logger.Warn("watch new directory failed", zap.String("dir", event.Name), zap.Error(err))
					} else if err := addTree(watcher, event.Name, opts, logger); err != nil {
						logger.Warn("watch new directory failed", zap.String("dir", event.Name), zap.Error(err))
					}
				}
			}

			kind, ok := classify(event, ops)
			if !ok || (!opts.IncludeHidden && isHidden(event.Name)) {
				continue
			}
			logger.Debug("change", zap.String("path", event.Name), zap.String("event", string(kind)))
			pending = append(pending, Change{Path: event.Name, Event: kind, Time: time.Now()})

			if timer == nil {
				timer = time.NewTimer(opts.Debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(opts.Debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			batch := pending
			pending = nil
			if err := handler(ctx, batch); err != nil {
				return err
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", zap.Error(err))
		}
	}
}

// addTree registers every directory below root, using a visitor search so
// the tree is read the same way the CLI reads it.
func addTree(watcher *fsnotify.Watcher, root string, opts Options, logger *zap.Logger) error {
	v := visitor.NewWithOptions(visitor.Options{
		Filter: func(string) bool { return false },
		Logger: logger,
	})
	var addErr error
	v.OnDirectoryFound(func(ev *visitor.Event) {
		// Excluding a directory does not stop the descent, so hidden
		// subtrees are recognised by any hidden component below root.
		if !opts.IncludeHidden && hiddenBelow(root, ev.Path) {
			return
		}
		if err := watcher.Add(ev.Path); err != nil {
			addErr = fmt.Errorf("error watching directory %s: %w", ev.Path, err)
			ev.StopSearch = true
		}
	})

	seq, err := v.Search(root)
	if err != nil {
		return err
	}
	if _, err := visitor.Collect(seq); err != nil {
		return fmt.Errorf("error walking directory tree: %w", err)
	}
	return addErr
}

func eventOps(events []Event) map[fsnotify.Op]Event {
	all := map[fsnotify.Op]Event{
		fsnotify.Create: EventCreate,
		fsnotify.Write:  EventModify,
		fsnotify.Remove: EventDelete,
		fsnotify.Rename: EventRename,
		fsnotify.Chmod:  EventChmod,
	}
	if len(events) == 0 {
		return all
	}

	ops := make(map[fsnotify.Op]Event, len(events))
	for op, e := range all {
		for _, want := range events {
			if e == want {
				ops[op] = e
			}
		}
	}
	return ops
}

// classify picks the first wanted operation of event, in the order create,
// modify, delete, rename, chmod.
func classify(event fsnotify.Event, ops map[fsnotify.Op]Event) (Event, bool) {
	for _, op := range []fsnotify.Op{fsnotify.Create, fsnotify.Write, fsnotify.Remove, fsnotify.Rename, fsnotify.Chmod} {
		if e, ok := ops[op]; ok && event.Has(op) {
			return e, true
		}
	}
	return "", false
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func isHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}

func hiddenBelow(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return isHidden(path)
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if part != "." && part != ".." && strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}
