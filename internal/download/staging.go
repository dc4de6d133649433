package download

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Target names where the body is staged: a user path kept on success, or
// a unique temporary file that is always removed.
type Target struct {
	path string
}

// NamedTarget stages directly into path, truncating any existing file.
func NamedTarget(path string) Target {
	return Target{path: path}
}

// TempTarget stages into a fresh file under the temp directory.
func TempTarget() Target {
	return Target{}
}

// Temporary reports whether the target is a generated temp file.
func (t Target) Temporary() bool {
	return t.path == ""
}

func (t Target) open(tempDir string) (*Staging, error) {
	if !t.Temporary() {
		f, err := os.OpenFile(t.path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			return nil, err
		}
		return &Staging{file: f, path: t.path}, nil
	}

	if tempDir == "" {
		tempDir = os.TempDir()
	}

	path := filepath.Join(tempDir, tempName())
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, err
	}

	return &Staging{file: f, path: path, temp: true}, nil
}

func tempName() string {
	return fmt.Sprintf("fetch-%s.download", uuid.New())
}

// Staging is an open staging file holding a completed transfer.
type Staging struct {
	file *os.File
	path string
	temp bool
}

// Path returns the file system location of the staging file.
func (s *Staging) Path() string {
	return s.path
}

// Temporary reports whether the file is removed on Release.
func (s *Staging) Temporary() bool {
	return s.temp
}

// commit flushes a named file to disk and closes it. Temporary files stay
// open for the relay.
func (s *Staging) commit() error {
	if s.temp {
		return nil
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("syncing output file: %w", err)
	}
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("closing output file: %w", err)
	}
	return nil
}

// Reader rewinds the staging file and returns it for reading. It is only
// valid for temporary files; a named file is closed once verified.
func (s *Staging) Reader() (io.Reader, error) {
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewinding staging file: %w", err)
	}
	return s.file, nil
}

// Release closes the file and removes it when temporary. Named files are
// left in place.
func (s *Staging) Release() error {
	if !s.temp {
		return s.close()
	}
	return s.Discard()
}

// Discard closes and removes the file regardless of its kind.
func (s *Staging) Discard() error {
	return errors.Join(s.close(), s.remove())
}

func (s *Staging) close() error {
	if err := s.file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return fmt.Errorf("closing staging file: %w", err)
	}
	return nil
}

func (s *Staging) remove() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing staging file: %w", err)
	}
	return nil
}
