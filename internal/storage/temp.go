package storage

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const tempFilePrefix = "bill-"

// TempStore spools uploads to a directory, one uniquely named file per call.
type TempStore struct {
	dir string
}

// NewTempStore creates dir if needed. An empty dir means os.TempDir().
func NewTempStore(dir string) (*TempStore, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	return &TempStore{dir: dir}, nil
}

func (s *TempStore) Dir() string {
	return s.dir
}

// Save copies r into a new file named bill-<uuid>.<ext>. The caller owns the
// returned file and must Remove it.
func (s *TempStore) Save(r io.Reader, ext string) (*TempFile, error) {
	name := tempFilePrefix + uuid.NewString()
	if ext = strings.TrimPrefix(ext, "."); ext != "" {
		name += "." + ext
	}
	path := filepath.Join(s.dir, name)

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("close temp file: %w", err)
	}

	return &TempFile{path: path}, nil
}

// TempFile is a spooled upload. Remove is safe to call more than once.
type TempFile struct {
	path string
	once sync.Once
	err  error
}

func (f *TempFile) Path() string {
	return f.path
}

func (f *TempFile) ReadBase64() (string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return "", fmt.Errorf("read temp file: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func (f *TempFile) Remove() error {
	f.once.Do(func() {
		if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			f.err = fmt.Errorf("remove temp file: %w", err)
		}
	})
	return f.err
}
