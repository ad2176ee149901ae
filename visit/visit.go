package visit

import (
	"iter"

	"github.com/TFMV/fsvisitor/internal/filter"
	internal "github.com/TFMV/fsvisitor/internal/visitor"
	"github.com/spf13/afero"
)

// Re-export the engine types
type (
	// Visitor walks directory trees and fires notifications.
	Visitor = internal.Visitor

	// Options configures a Visitor.
	Options = internal.Options

	// Predicate decides whether an entry is yielded.
	Predicate = internal.Predicate

	// Event is delivered to listeners; set StopSearch or ExcludeEntry to steer the walk.
	Event = internal.Event

	// EventType identifies a notification; values can be OR-ed into a mask.
	EventType = internal.EventType

	// EntryKind tells files and directories apart.
	EntryKind = internal.EntryKind

	// Handler receives notifications.
	Handler = internal.Handler

	// Enumerator lists the immediate children of a directory.
	Enumerator = internal.Enumerator

	// Walker is a pull-style iterator over a search.
	Walker = internal.Walker

	// FilterOptions defines criteria for building a Predicate.
	FilterOptions = filter.Options
)

// Re-export the constants
const (
	KindFile      = internal.KindFile
	KindDirectory = internal.KindDirectory

	Start                  = internal.Start
	Finish                 = internal.Finish
	FileFound              = internal.FileFound
	DirectoryFound         = internal.DirectoryFound
	FilteredFileFound      = internal.FilteredFileFound
	FilteredDirectoryFound = internal.FilteredDirectoryFound
	EntryFound             = internal.EntryFound
	FilteredEntryFound     = internal.FilteredEntryFound
	AllEvents              = internal.AllEvents
)

// Re-export the errors
var (
	ErrInvalidArgument = internal.ErrInvalidArgument
	ErrNotFound        = internal.ErrNotFound
)

// New creates a Visitor that yields the entries accepted by pred. A nil
// pred accepts everything.
func New(pred Predicate) *Visitor {
	return internal.New(pred)
}

// NewWithOptions creates a Visitor from opts.
func NewWithOptions(opts Options) *Visitor {
	return internal.NewWithOptions(opts)
}

// Collect drains seq and returns the yielded paths.
func Collect(seq iter.Seq2[string, error]) ([]string, error) {
	return internal.Collect(seq)
}

// NewDirentEnumerator returns the default operating system Enumerator.
func NewDirentEnumerator() Enumerator {
	return internal.NewDirentEnumerator()
}

// NewFsEnumerator returns an Enumerator over an afero filesystem.
func NewFsEnumerator(fs afero.Fs) Enumerator {
	return internal.NewFsEnumerator(fs)
}

// BuildFilter compiles FilterOptions into a Predicate.
func BuildFilter(opts FilterOptions) (Predicate, error) {
	return filter.Build(opts)
}

// Ext accepts paths with one of the given extensions.
func Ext(exts ...string) Predicate {
	return filter.Ext(exts...)
}

// Glob accepts paths whose base name matches pattern.
func Glob(pattern string) (Predicate, error) {
	return filter.Glob(pattern)
}

// Regex accepts paths matching expr.
func Regex(expr string) (Predicate, error) {
	return filter.Regex(expr)
}
