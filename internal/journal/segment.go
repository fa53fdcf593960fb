package journal

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// segment is the open output file. Every write is synced before it returns.
type segment struct {
	path    string
	file    *os.File
	size    int64
	created time.Time
}

// createSegment creates a new, empty segment file. An existing file with the
// same name is never reused.
func createSegment(path string, now time.Time) (*segment, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	if err := syncDir(filepath.Dir(path)); err != nil {
		f.Close()
		return nil, err
	}
	return &segment{path: path, file: f, created: now}, nil
}

// write appends frame and syncs it to stable storage.
func (s *segment) write(frame []byte) error {
	n, err := s.file.Write(frame)
	s.size += int64(n)
	if err != nil {
		return err
	}
	return s.file.Sync()
}

func (s *segment) close() error {
	if err := s.file.Sync(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}

// syncDir makes a directory entry change durable.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("open directory: %w", err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("sync directory: %w", err)
	}
	return nil
}
