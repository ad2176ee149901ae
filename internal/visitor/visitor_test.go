package visitor

import (
	"errors"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const memRoot = "/data"

// memTree builds the fixture used by most tests:
//
//	/data/first-dir/{file1.txt, file2.cs, file3.exe}
//	/data/first-dir/sub-dir1.cs/{sub-file1.pdb, sub-file2.pdb, sub-file3.pdb}
//	/data/first-dir/sub-dir2/{sub2-file1.pdb, sub2-file2.xlsx, sub2-file3.xlsx}
//	/data/first-dir/sub-dir3.pdb/
func memTree(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	files := []string{
		"first-dir/file1.txt",
		"first-dir/file2.cs",
		"first-dir/file3.exe",
		"first-dir/sub-dir1.cs/sub-file1.pdb",
		"first-dir/sub-dir1.cs/sub-file2.pdb",
		"first-dir/sub-dir1.cs/sub-file3.pdb",
		"first-dir/sub-dir2/sub2-file1.pdb",
		"first-dir/sub-dir2/sub2-file2.xlsx",
		"first-dir/sub-dir2/sub2-file3.xlsx",
	}
	for _, f := range files {
		path := filepath.Join(memRoot, f)
		require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, afero.WriteFile(fs, path, []byte(f), 0644))
	}
	require.NoError(t, fs.MkdirAll(filepath.Join(memRoot, "first-dir", "sub-dir3.pdb"), 0755))
	return fs
}

func abs(rel ...string) []string {
	out := make([]string, len(rel))
	for i, r := range rel {
		out[i] = filepath.Join(memRoot, r)
	}
	return out
}

var allEntries = abs(
	"first-dir",
	"first-dir/file1.txt",
	"first-dir/file2.cs",
	"first-dir/file3.exe",
	"first-dir/sub-dir1.cs",
	"first-dir/sub-dir1.cs/sub-file1.pdb",
	"first-dir/sub-dir1.cs/sub-file2.pdb",
	"first-dir/sub-dir1.cs/sub-file3.pdb",
	"first-dir/sub-dir2",
	"first-dir/sub-dir2/sub2-file1.pdb",
	"first-dir/sub-dir2/sub2-file2.xlsx",
	"first-dir/sub-dir2/sub2-file3.xlsx",
	"first-dir/sub-dir3.pdb",
)

var allFiles = abs(
	"first-dir/file1.txt",
	"first-dir/file2.cs",
	"first-dir/file3.exe",
	"first-dir/sub-dir1.cs/sub-file1.pdb",
	"first-dir/sub-dir1.cs/sub-file2.pdb",
	"first-dir/sub-dir1.cs/sub-file3.pdb",
	"first-dir/sub-dir2/sub2-file1.pdb",
	"first-dir/sub-dir2/sub2-file2.xlsx",
	"first-dir/sub-dir2/sub2-file3.xlsx",
)

var allDirs = abs(
	"first-dir",
	"first-dir/sub-dir1.cs",
	"first-dir/sub-dir2",
	"first-dir/sub-dir3.pdb",
)

func newMemVisitor(t *testing.T, filter Predicate) *Visitor {
	t.Helper()
	return NewWithOptions(Options{Filter: filter, Enumerator: NewFsEnumerator(memTree(t))})
}

func search(t *testing.T, v *Visitor, root string) []string {
	t.Helper()
	seq, err := v.Search(root)
	require.NoError(t, err)
	paths, err := Collect(seq)
	require.NoError(t, err)
	return paths
}

func hasExt(ext string) Predicate {
	return func(path string) bool { return filepath.Ext(path) == ext }
}

func TestSearchInvalidRoot(t *testing.T) {
	v := newMemVisitor(t, nil)
	starts := 0
	v.OnStart(func() { starts++ })

	_, err := v.Search("")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = v.Search("/missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = v.Search(filepath.Join(memRoot, "first-dir", "file1.txt"))
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Zero(t, starts)
}

func TestSearchNoFilter(t *testing.T) {
	assert.Equal(t, allEntries, search(t, newMemVisitor(t, nil), memRoot))
}

func TestSearchFilter(t *testing.T) {
	tests := []struct {
		name     string
		filter   Predicate
		expected []string
	}{
		{
			name:   "extension",
			filter: hasExt(".pdb"),
			expected: abs(
				"first-dir/sub-dir1.cs/sub-file1.pdb",
				"first-dir/sub-dir1.cs/sub-file2.pdb",
				"first-dir/sub-dir1.cs/sub-file3.pdb",
				"first-dir/sub-dir2/sub2-file1.pdb",
				"first-dir/sub-dir3.pdb",
			),
		},
		{
			name:   "substring",
			filter: func(path string) bool { return strings.Contains(filepath.Base(path), "sub2") },
			expected: abs(
				"first-dir/sub-dir2/sub2-file1.pdb",
				"first-dir/sub-dir2/sub2-file2.xlsx",
				"first-dir/sub-dir2/sub2-file3.xlsx",
			),
		},
		{
			name:     "reject all",
			filter:   func(string) bool { return false },
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, search(t, newMemVisitor(t, tt.filter), memRoot))
		})
	}
}

func TestSearchIsLazy(t *testing.T) {
	v := newMemVisitor(t, nil)
	var starts, finishes int
	v.OnStart(func() { starts++ })
	v.OnFinish(func() { finishes++ })

	seq, err := v.Search(memRoot)
	require.NoError(t, err)
	assert.Zero(t, starts)

	_, err = Collect(seq)
	require.NoError(t, err)
	assert.Equal(t, 1, starts)
	assert.Equal(t, 1, finishes)
}

func TestNotificationOrder(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/root/sub", 0755))
	require.NoError(t, afero.WriteFile(fs, "/root/a.txt", nil, 0644))
	require.NoError(t, afero.WriteFile(fs, "/root/sub/b.txt", nil, 0644))
	require.NoError(t, afero.WriteFile(fs, "/root/sub/c.log", nil, 0644))

	v := NewWithOptions(Options{Filter: hasExt(".txt"), Enumerator: NewFsEnumerator(fs)})
	var log []string
	v.Subscribe(AllEvents, func(ev *Event) {
		if ev.Path == "" {
			log = append(log, ev.Type.String())
			return
		}
		log = append(log, ev.Type.String()+" "+ev.Path)
	})

	seq, err := v.Search("/root")
	require.NoError(t, err)
	for path, err := range seq {
		require.NoError(t, err)
		log = append(log, "yield "+path)
	}

	assert.Equal(t, []string{
		"Start",
		"FileFound /root/a.txt",
		"FilteredFileFound /root/a.txt",
		"yield /root/a.txt",
		"DirectoryFound /root/sub",
		"FileFound /root/sub/b.txt",
		"FilteredFileFound /root/sub/b.txt",
		"yield /root/sub/b.txt",
		"FileFound /root/sub/c.log",
		"Finish",
	}, log)
}

func TestStopSearch(t *testing.T) {
	tests := []struct {
		name     string
		event    EventType
		filter   Predicate
		expected []string
	}{
		{
			name:     "FileFound",
			event:    FileFound,
			expected: abs("first-dir"),
		},
		{
			name:     "DirectoryFound",
			event:    DirectoryFound,
			expected: nil,
		},
		{
			name:     "FilteredFileFound",
			event:    FilteredFileFound,
			expected: abs("first-dir"),
		},
		{
			name:     "FilteredDirectoryFound",
			event:    FilteredDirectoryFound,
			expected: nil,
		},
		{
			name:     "FilteredFileFound with filter",
			event:    FilteredFileFound,
			filter:   hasExt(".pdb"),
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newMemVisitor(t, tt.filter)
			finishes := 0
			v.OnFinish(func() { finishes++ })
			v.Subscribe(tt.event, func(ev *Event) { ev.StopSearch = true })

			assert.Equal(t, tt.expected, search(t, v, memRoot))
			assert.Equal(t, 1, finishes)
		})
	}
}

func TestStopSearchAtEntry(t *testing.T) {
	v := newMemVisitor(t, nil)
	v.OnDirectoryFound(func(ev *Event) {
		if filepath.Base(ev.Path) == "sub-dir2" {
			ev.StopSearch = true
		}
	})

	assert.Equal(t, allEntries[:8], search(t, v, memRoot))
}

func TestStopSearchInsideSubtree(t *testing.T) {
	v := newMemVisitor(t, nil)
	v.OnFileFound(func(ev *Event) {
		if filepath.Base(ev.Path) == "sub-file2.pdb" {
			ev.StopSearch = true
		}
	})

	// Nothing after the stop, neither in sub-dir1.cs nor in its siblings.
	assert.Equal(t, allEntries[:6], search(t, v, memRoot))
}

func TestExcludeEntry(t *testing.T) {
	tests := []struct {
		name     string
		event    EventType
		expected []string
	}{
		{name: "FileFound", event: FileFound, expected: allDirs},
		{name: "DirectoryFound", event: DirectoryFound, expected: allFiles},
		{name: "FilteredFileFound", event: FilteredFileFound, expected: allDirs},
		{name: "FilteredDirectoryFound", event: FilteredDirectoryFound, expected: allFiles},
		{name: "EntryFound", event: EntryFound, expected: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newMemVisitor(t, nil)
			v.Subscribe(tt.event, func(ev *Event) { ev.ExcludeEntry = true })
			assert.Equal(t, tt.expected, search(t, v, memRoot))
		})
	}
}

func TestExcludedFileSkipsFilter(t *testing.T) {
	var filtered []string
	v := newMemVisitor(t, func(path string) bool {
		filtered = append(filtered, path)
		return true
	})
	v.OnFileFound(func(ev *Event) {
		if filepath.Ext(ev.Path) == ".xlsx" {
			ev.ExcludeEntry = true
		}
	})
	filteredFound := 0
	v.OnFilteredFileFound(func(*Event) { filteredFound++ })

	search(t, v, memRoot)
	assert.NotContains(t, filtered, filepath.Join(memRoot, "first-dir/sub-dir2/sub2-file2.xlsx"))
	assert.Equal(t, 7, filteredFound)
}

func TestExcludedDirectoryIsDescended(t *testing.T) {
	v := newMemVisitor(t, nil)
	v.OnDirectoryFound(func(ev *Event) {
		if filepath.Base(ev.Path) == "sub-dir1.cs" {
			ev.ExcludeEntry = true
		}
	})

	paths := search(t, v, memRoot)
	assert.NotContains(t, paths, filepath.Join(memRoot, "first-dir/sub-dir1.cs"))
	assert.Contains(t, paths, filepath.Join(memRoot, "first-dir/sub-dir1.cs/sub-file1.pdb"))
	assert.Len(t, paths, len(allEntries)-1)
}

func TestListenersShareEvent(t *testing.T) {
	v := newMemVisitor(t, nil)
	var seen []bool
	v.OnFileFound(func(ev *Event) { ev.ExcludeEntry = true })
	v.OnFileFound(func(ev *Event) {
		seen = append(seen, ev.ExcludeEntry)
		ev.ExcludeEntry = false
	})

	// The second listener overrides the first.
	assert.Equal(t, allEntries, search(t, v, memRoot))
	assert.Len(t, seen, len(allFiles))
	for _, s := range seen {
		assert.True(t, s)
	}
}

func TestSubscribeIgnoresEmpty(t *testing.T) {
	v := newMemVisitor(t, nil)
	v.Subscribe(AllEvents, nil)
	v.Subscribe(0, func(*Event) { t.Fatal("zero mask must not be called") })
	assert.Empty(t, v.subs)
}

func TestConsumerBreak(t *testing.T) {
	v := newMemVisitor(t, nil)
	var starts, finishes int
	v.OnStart(func() { starts++ })
	v.OnFinish(func() { finishes++ })

	seq, err := v.Search(memRoot)
	require.NoError(t, err)
	var got []string
	for path, err := range seq {
		require.NoError(t, err)
		got = append(got, path)
		if len(got) == 2 {
			break
		}
	}

	assert.Equal(t, allEntries[:2], got)
	assert.Equal(t, 1, starts)
	assert.Zero(t, finishes)
}

func TestReiterationResetsState(t *testing.T) {
	v := newMemVisitor(t, nil)
	found := 0
	v.OnStart(func() { found = 0 })
	v.OnFileFound(func(ev *Event) {
		found++
		if found == 2 {
			ev.StopSearch = true
		}
	})

	seq, err := v.Search(memRoot)
	require.NoError(t, err)

	first, err := Collect(seq)
	require.NoError(t, err)
	second, err := Collect(seq)
	require.NoError(t, err)

	assert.Equal(t, allEntries[:2], first)
	assert.Equal(t, first, second)
}

func TestIndependentSessions(t *testing.T) {
	v := newMemVisitor(t, nil)
	v.OnFileFound(func(ev *Event) {
		if filepath.Base(ev.Path) == "file2.cs" {
			ev.StopSearch = true
		}
	})

	seq, err := v.Search(memRoot)
	require.NoError(t, err)
	other, err := v.Search(filepath.Join(memRoot, "first-dir", "sub-dir2"))
	require.NoError(t, err)

	next, stop := iter.Pull2(seq)
	defer stop()

	path, err, ok := next()
	require.True(t, ok)
	require.NoError(t, err)
	assert.Equal(t, allEntries[0], path)

	// The second sequence runs to completion while the first is suspended.
	paths, err := Collect(other)
	require.NoError(t, err)
	assert.Equal(t, abs(
		"first-dir/sub-dir2/sub2-file1.pdb",
		"first-dir/sub-dir2/sub2-file2.xlsx",
		"first-dir/sub-dir2/sub2-file3.xlsx",
	), paths)

	path, err, ok = next()
	require.True(t, ok)
	require.NoError(t, err)
	assert.Equal(t, allEntries[1], path)

	_, _, ok = next()
	assert.False(t, ok)
}

type failingEnumerator struct {
	Enumerator
	dir string
	err error
}

func (f failingEnumerator) ReadDir(dir string) ([]string, []string, error) {
	if dir == f.dir {
		return nil, nil, f.err
	}
	return f.Enumerator.ReadDir(dir)
}

func TestReadErrorEndsWalk(t *testing.T) {
	errDenied := errors.New("permission denied")
	core, logs := observer.New(zapcore.DebugLevel)
	v := NewWithOptions(Options{
		Enumerator: failingEnumerator{
			Enumerator: NewFsEnumerator(memTree(t)),
			dir:        filepath.Join(memRoot, "first-dir", "sub-dir1.cs"),
			err:        errDenied,
		},
		Logger: zap.New(core),
	})

	var events []EventType
	v.Subscribe(Start|Finish, func(ev *Event) { events = append(events, ev.Type) })

	seq, err := v.Search(memRoot)
	require.NoError(t, err)

	var paths []string
	var walkErr error
	for path, err := range seq {
		if err != nil {
			assert.Empty(t, path)
			assert.Equal(t, []EventType{Start, Finish}, events, "Finish fires before the error is yielded")
			walkErr = err
			continue
		}
		paths = append(paths, path)
	}

	assert.ErrorIs(t, walkErr, errDenied)
	assert.Equal(t, allEntries[:5], paths)
	assert.Equal(t, 1, logs.FilterMessage("read directory failed").Len())
	assert.Equal(t, 1, logs.FilterMessage("search finished").Len())
}

func TestCollectStopsAtError(t *testing.T) {
	errBoom := errors.New("boom")
	seq := func(yield func(string, error) bool) {
		if !yield("a", nil) {
			return
		}
		if !yield("", errBoom) {
			return
		}
		yield("b", nil)
	}

	paths, err := Collect(seq)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, []string{"a"}, paths)
}

func TestSessionLogging(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	v := NewWithOptions(Options{Enumerator: NewFsEnumerator(memTree(t)), Logger: zap.New(core)})
	v.OnFileFound(func(ev *Event) { ev.StopSearch = true })

	search(t, v, memRoot)

	stopped := logs.FilterMessage("search stopped by listener").All()
	require.Len(t, stopped, 1)
	assert.Equal(t, "FileFound", stopped[0].ContextMap()["event"])

	started := logs.FilterMessage("search started").All()
	require.Len(t, started, 1)
	assert.NotEmpty(t, started[0].ContextMap()["session"])
}

func TestSearchOS(t *testing.T) {
	root := t.TempDir()
	for _, f := range []string{"a.txt", "sub/b.txt", "sub/c.log", "sub/deeper/d.txt"} {
		path := filepath.Join(root, f)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(f), 0644))
	}

	v := New(hasExt(".txt"))
	assert.ElementsMatch(t, []string{
		filepath.Join(root, "a.txt"),
		filepath.Join(root, "sub", "b.txt"),
		filepath.Join(root, "sub", "deeper", "d.txt"),
	}, search(t, v, root))
}

func TestSearchOSFilesBeforeDirectories(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "a-dir"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a-dir", "inner.txt"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "z.txt"), nil, 0644))

	paths := search(t, New(nil), root)
	require.Len(t, paths, 3)
	assert.Equal(t, filepath.Join(root, "z.txt"), paths[0])
	assert.Equal(t, filepath.Join(root, "a-dir"), paths[1])
	assert.Equal(t, filepath.Join(root, "a-dir", "inner.txt"), paths[2])
}

func TestSearchOSSymlinkIsFile(t *testing.T) {
	root := t.TempDir()
	target := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(target, "outside.txt"), nil, 0644))
	link := filepath.Join(root, "link")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	v := New(nil)
	var dirs, files []string
	v.OnDirectoryFound(func(ev *Event) { dirs = append(dirs, ev.Path) })
	v.OnFileFound(func(ev *Event) { files = append(files, ev.Path) })

	assert.Equal(t, []string{link}, search(t, v, root))
	assert.Empty(t, dirs)
	assert.Equal(t, []string{link}, files)
}
