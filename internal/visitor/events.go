package visitor

// EntryKind tells files and directories apart in entry notifications.
type EntryKind int

const (
	KindFile EntryKind = iota
	KindDirectory
)

func (k EntryKind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	default:
		return "unknown"
	}
}

// EventType identifies a notification. Values are bit flags so that a listener
// can subscribe to several notifications with a single mask.
type EventType int

const (
	Start EventType = 1 << iota
	Finish
	FileFound
	DirectoryFound
	FilteredFileFound
	FilteredDirectoryFound

	EntryFound         = FileFound | DirectoryFound
	FilteredEntryFound = FilteredFileFound | FilteredDirectoryFound
	AllEvents          = Start | Finish | EntryFound | FilteredEntryFound
)

func (t EventType) String() string {
	switch t {
	case Start:
		return "Start"
	case Finish:
		return "Finish"
	case FileFound:
		return "FileFound"
	case DirectoryFound:
		return "DirectoryFound"
	case FilteredFileFound:
		return "FilteredFileFound"
	case FilteredDirectoryFound:
		return "FilteredDirectoryFound"
	default:
		return "Unknown"
	}
}

func (t EventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Event is delivered to every listener of a notification. Entry notifications
// carry the entry path and kind; listeners steer the walk by setting
// StopSearch or ExcludeEntry. Lifecycle notifications (Start, Finish) carry
// no data and their control fields are ignored.
//
// All listeners of one notification receive the same *Event, so a listener
// sees the decisions of the listeners registered before it.
type Event struct {
	Type EventType
	Kind EntryKind
	Path string

	// StopSearch ends the whole walk at every depth. Finish still fires.
	StopSearch bool
	// ExcludeEntry drops this entry only. For a file it also skips the
	// filter; for a directory it suppresses the path but not the descent.
	ExcludeEntry bool
}

// Handler receives notifications. It runs synchronously on the goroutine
// that pulls from the search sequence.
type Handler func(ev *Event)

type subscription struct {
	mask    EventType
	handler Handler
}

func entryEvent(t EventType, kind EntryKind, path string) *Event {
	return &Event{Type: t, Kind: kind, Path: path}
}

func foundType(kind EntryKind) EventType {
	if kind == KindDirectory {
		return DirectoryFound
	}
	return FileFound
}

func filteredType(kind EntryKind) EventType {
	if kind == KindDirectory {
		return FilteredDirectoryFound
	}
	return FilteredFileFound
}
