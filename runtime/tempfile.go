package runtime

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/segmentio/ksuid"
	"go.uber.org/multierr"
)

// TempFileProvider creates temporary files on behalf of operators.  The
// provider, not the operator, is responsible for eventually deleting them.
type TempFileProvider interface {
	CreateTempFile(prefix, suffix string) (*os.File, error)
}

// TempDir is a TempFileProvider that creates files in a directory and
// removes them all on Cleanup.
type TempDir struct {
	dir   string
	mu    sync.Mutex
	files []*os.File
}

var _ TempFileProvider = (*TempDir)(nil)

func NewTempDir(dir string) *TempDir {
	if dir == "" {
		dir = os.TempDir()
	}
	return &TempDir{dir: dir}
}

// CreateTempFile creates a file named prefix-<ksuid>.suffix opened for
// reading and writing.
func (t *TempDir) CreateTempFile(prefix, suffix string) (*os.File, error) {
	name := fmt.Sprintf("%s-%s.%s", prefix, ksuid.New(), suffix)
	f, err := os.OpenFile(filepath.Join(t.dir, name), os.O_RDWR|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	t.files = append(t.files, f)
	t.mu.Unlock()
	return f, nil
}

// Cleanup closes and removes every file created so far.
func (t *TempDir) Cleanup() error {
	t.mu.Lock()
	files := t.files
	t.files = nil
	t.mu.Unlock()
	var err error
	for _, f := range files {
		// The owner may have closed the file already.
		if closeErr := f.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
			err = multierr.Append(err, closeErr)
		}
		if rmErr := os.Remove(f.Name()); rmErr != nil && !os.IsNotExist(rmErr) {
			err = multierr.Append(err, rmErr)
		}
	}
	return err
}
