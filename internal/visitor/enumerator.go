package visitor

import (
	"os"
	"path/filepath"

	"github.com/karrick/godirwalk"
	"github.com/spf13/afero"
)

// Enumerator lists the immediate children of a directory. Returned paths are
// joined with dir. Order is whatever the backing store yields; callers must
// not rely on it being sorted.
type Enumerator interface {
	Stat(path string) (os.FileInfo, error)
	ReadDir(dir string) (files, dirs []string, err error)
}

// direntEnumerator reads directories straight from the operating system.
type direntEnumerator struct{}

// NewDirentEnumerator returns the default Enumerator. Symbolic links are
// reported as files and never followed.
func NewDirentEnumerator() Enumerator {
	return direntEnumerator{}
}

func (direntEnumerator) Stat(path string) (os.FileInfo, error) {
	return os.Stat(path)
}

func (direntEnumerator) ReadDir(dir string) ([]string, []string, error) {
	// A nil scratch buffer makes godirwalk allocate its own, so concurrent
	// searches never share one.
	dirents, err := godirwalk.ReadDirents(dir, nil)
	if err != nil {
		return nil, nil, err
	}

	var files, dirs []string
	for _, de := range dirents {
		path := filepath.Join(dir, de.Name())
		if de.IsDir() {
			dirs = append(dirs, path)
		} else {
			files = append(files, path)
		}
	}
	return files, dirs, nil
}

// fsEnumerator lists directories of an afero filesystem.
type fsEnumerator struct {
	fs afero.Fs
}

// NewFsEnumerator returns an Enumerator backed by fs. afero sorts directory
// listings by name, which makes walks over it deterministic.
func NewFsEnumerator(fs afero.Fs) Enumerator {
	return fsEnumerator{fs: fs}
}

func (e fsEnumerator) Stat(path string) (os.FileInfo, error) {
	return e.fs.Stat(path)
}

func (e fsEnumerator) ReadDir(dir string) ([]string, []string, error) {
	infos, err := afero.ReadDir(e.fs, dir)
	if err != nil {
		return nil, nil, err
	}

	var files, dirs []string
	for _, info := range infos {
		path := filepath.Join(dir, info.Name())
		if info.IsDir() {
			dirs = append(dirs, path)
		} else {
			files = append(files, path)
		}
	}
	return files, dirs, nil
}
