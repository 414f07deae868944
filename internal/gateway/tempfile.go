package gateway

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"
)

// TempFile is a scoped local file used to stage transfers. Release removes it
// exactly once no matter how many exit paths call it.
type TempFile struct {
	path string
	size int64

	once sync.Once
	err  error
}

// Stage copies r into a new temp file under dir ("" = os.TempDir()). On
// failure nothing is left on disk.
func Stage(dir string, r io.Reader) (*TempFile, error) {
	f, err := os.CreateTemp(dir, "drivegate-*")
	if err != nil {
		return nil, fmt.Errorf("gateway: create temp file: %w", err)
	}
	t := &TempFile{path: f.Name()}

	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = t.Release()
		return nil, fmt.Errorf("gateway: stage temp file: %w", err)
	}
	t.size = n
	return t, nil
}

// Path is the local filesystem path of the staged file.
func (t *TempFile) Path() string { return t.path }

// Size is the number of bytes staged.
func (t *TempFile) Size() int64 { return t.size }

// Open opens the staged file for reading.
func (t *TempFile) Open() (*os.File, error) { return os.Open(t.path) }

// Release deletes the file. Only the first call does any work; later calls
// return the first call's result.
func (t *TempFile) Release() error {
	t.once.Do(func() {
		if err := os.Remove(t.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			t.err = err
		}
	})
	return t.err
}
