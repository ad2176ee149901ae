// Package visitor provides a lazy, depth-first filesystem walker whose
// progress can be observed and steered through notifications.
//
// A Visitor yields the paths of files and directories under a root that pass
// its predicate. While the walk advances it fires Start, FileFound,
// DirectoryFound, FilteredFileFound, FilteredDirectoryFound and Finish
// notifications; listeners may stop the whole walk or exclude a single entry
// by setting fields on the Event they receive.
//
// The walk is single-threaded and pull-driven: nothing touches the
// filesystem until the returned sequence is iterated, and every notification
// runs on the iterating goroutine before the corresponding path is yielded.
package visitor

import (
	"errors"
	"fmt"
	"iter"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrInvalidArgument is returned by Search when no root path is given.
	ErrInvalidArgument = errors.New("visitor: root path is required")
	// ErrNotFound is returned by Search when the root is not an existing directory.
	ErrNotFound = errors.New("visitor: directory not found")
)

// Predicate decides whether an entry is yielded by the walk.
type Predicate func(path string) bool

func acceptAll(string) bool { return true }

// Options configures a Visitor.
type Options struct {
	Filter     Predicate   // nil accepts every entry
	Enumerator Enumerator  // nil uses NewDirentEnumerator
	Logger     *zap.Logger // nil disables logging
}

// Visitor walks directory trees. Listeners may be registered at any time;
// each iteration of a sequence returned by Search runs in its own session, so
// several sequences from one Visitor never share control state.
type Visitor struct {
	filter Predicate
	fs     Enumerator
	logger *zap.Logger

	mu   sync.RWMutex
	subs []subscription
}

// New creates a Visitor that yields the entries accepted by filter.
func New(filter Predicate) *Visitor {
	return NewWithOptions(Options{Filter: filter})
}

// NewWithOptions creates a Visitor from opts, filling in defaults.
func NewWithOptions(opts Options) *Visitor {
	v := &Visitor{
		filter: opts.Filter,
		fs:     opts.Enumerator,
		logger: opts.Logger,
	}
	if v.filter == nil {
		v.filter = acceptAll
	}
	if v.fs == nil {
		v.fs = NewDirentEnumerator()
	}
	if v.logger == nil {
		v.logger = zap.NewNop()
	}
	return v
}

// Subscribe registers h for every notification whose type is in mask.
// Handlers run in registration order.
func (v *Visitor) Subscribe(mask EventType, h Handler) {
	if h == nil || mask&AllEvents == 0 {
		return
	}
	v.mu.Lock()
	// Copy on write so dispatch can iterate a snapshot without holding the lock.
	subs := make([]subscription, len(v.subs), len(v.subs)+1)
	copy(subs, v.subs)
	v.subs = append(subs, subscription{mask: mask, handler: h})
	v.mu.Unlock()
}

func (v *Visitor) OnStart(fn func()) {
	v.Subscribe(Start, func(*Event) { fn() })
}

func (v *Visitor) OnFinish(fn func()) {
	v.Subscribe(Finish, func(*Event) { fn() })
}

func (v *Visitor) OnFileFound(h Handler)              { v.Subscribe(FileFound, h) }
func (v *Visitor) OnDirectoryFound(h Handler)         { v.Subscribe(DirectoryFound, h) }
func (v *Visitor) OnFilteredFileFound(h Handler)      { v.Subscribe(FilteredFileFound, h) }
func (v *Visitor) OnFilteredDirectoryFound(h Handler) { v.Subscribe(FilteredDirectoryFound, h) }
func (v *Visitor) OnEntryFound(h Handler)             { v.Subscribe(EntryFound, h) }
func (v *Visitor) OnFilteredEntryFound(h Handler)     { v.Subscribe(FilteredEntryFound, h) }

func (v *Visitor) dispatch(ev *Event) {
	v.mu.RLock()
	subs := v.subs
	v.mu.RUnlock()

	for _, sub := range subs {
		if sub.mask&ev.Type != 0 {
			sub.handler(ev)
		}
	}
}

// Search validates root and returns a lazy sequence of the entries below it
// that pass the filter. Directory read errors end the walk; after Finish the
// error is yielded once with an empty path.
//
// An empty root yields ErrInvalidArgument and a root that is not an existing
// directory yields ErrNotFound. Neither fires any notification.
func (v *Visitor) Search(root string) (iter.Seq2[string, error], error) {
	if root == "" {
		return nil, ErrInvalidArgument
	}
	info, err := v.fs.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrNotFound, root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %q is not a directory", ErrNotFound, root)
	}

	return func(yield func(string, error) bool) {
		s := v.newSession(root)
		s.run(yield)
	}, nil
}

// walkControl is shared by every recursion frame of one session. Frames
// re-check it after each notification and each descent.
type walkControl struct {
	stopSearch bool
	err        error
}

type session struct {
	v    *Visitor
	root string
	log  *zap.Logger
	ctl  *walkControl

	files, dirs, emitted int
}

func (v *Visitor) newSession(root string) *session {
	return &session{
		v:    v,
		root: root,
		log:  v.logger.With(zap.String("session", uuid.NewString())),
		ctl:  &walkControl{},
	}
}

func (s *session) run(yield func(string, error) bool) {
	s.log.Debug("search started", zap.String("root", s.root))
	s.v.dispatch(&Event{Type: Start})

	if !s.find(s.root, yield) {
		s.log.Debug("search abandoned by consumer",
			zap.Int("files", s.files),
			zap.Int("dirs", s.dirs),
			zap.Int("emitted", s.emitted),
		)
		return
	}

	s.v.dispatch(&Event{Type: Finish})
	s.log.Debug("search finished",
		zap.Int("files", s.files),
		zap.Int("dirs", s.dirs),
		zap.Int("emitted", s.emitted),
		zap.Bool("stopped", s.ctl.stopSearch),
	)

	if s.ctl.err != nil {
		yield("", s.ctl.err)
	}
}

// find walks dir depth-first, files before subdirectories. It returns false
// only when the consumer stopped pulling.
func (s *session) find(dir string, yield func(string, error) bool) bool {
	files, dirs, err := s.v.fs.ReadDir(dir)
	if err != nil {
		s.fail(dir, err)
		return true
	}

	for _, path := range files {
		s.files++
		emit := s.visit(KindFile, path)
		if s.ctl.stopSearch {
			return true
		}
		if emit && !s.emit(path, yield) {
			return false
		}
	}

	for _, path := range dirs {
		s.dirs++
		emit := s.visit(KindDirectory, path)
		if s.ctl.stopSearch {
			return true
		}
		if emit && !s.emit(path, yield) {
			return false
		}
		// Excluded and filtered-out directories are still descended into.
		if !s.find(path, yield) {
			return false
		}
		if s.ctl.stopSearch {
			return true
		}
	}
	return true
}

// visit fires the notifications for one entry and reports whether its path
// should be yielded. An entry excluded on its found notification never
// reaches the filter.
func (s *session) visit(kind EntryKind, path string) bool {
	ev := s.notify(foundType(kind), kind, path)
	if s.ctl.stopSearch || ev.ExcludeEntry {
		return false
	}
	if !s.v.filter(path) {
		return false
	}
	ev = s.notify(filteredType(kind), kind, path)
	return !s.ctl.stopSearch && !ev.ExcludeEntry
}

func (s *session) notify(t EventType, kind EntryKind, path string) *Event {
	ev := entryEvent(t, kind, path)
	s.v.dispatch(ev)
	if ev.StopSearch {
		s.ctl.stopSearch = true
		s.log.Debug("search stopped by listener", zap.Stringer("event", t), zap.String("path", path))
	}
	return ev
}

func (s *session) emit(path string, yield func(string, error) bool) bool {
	s.emitted++
	return yield(path, nil)
}

func (s *session) fail(dir string, err error) {
	s.log.Warn("read directory failed", zap.String("dir", dir), zap.Error(err))
	s.ctl.err = fmt.Errorf("visitor: read directory %q: %w", dir, err)
	s.ctl.stopSearch = true
}

// Collect drains seq and returns the yielded paths, stopping at the first error.
func Collect(seq iter.Seq2[string, error]) ([]string, error) {
	var paths []string
	for path, err := range seq {
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}
