package observer

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/copyleftdev/cocogo/internal/errors"
)

// dataFile is an append-only text file behind a buffered writer. Lines are
// flushed when written so that partial results survive a crash.
type dataFile struct {
	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
	path   string
	lines  int
}

// openDataFile opens path for appending, creating parent folders.
func openDataFile(path string) (*dataFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Resource(err, "creating folder for %s", path)
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.Resource(err, "opening %s", path)
	}
	return &dataFile{
		file:   file,
		writer: bufio.NewWriterSize(file, 16*1024),
		path:   path,
	}, nil
}

// Printf writes formatted text without counting a line.
func (d *dataFile) Printf(format string, args ...interface{}) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := fmt.Fprintf(d.writer, format, args...); err != nil {
		return fmt.Errorf("failed to write %s: %w", d.path, err)
	}
	return nil
}

// WriteLine writes one record and flushes it.
func (d *dataFile) WriteLine(line []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.writer.Write(line); err != nil {
		return fmt.Errorf("failed to write %s: %w", d.path, err)
	}
	if err := d.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write %s: %w", d.path, err)
	}
	d.lines++
	return d.writer.Flush()
}

// Flush writes buffered text to the file.
func (d *dataFile) Flush() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", d.path, err)
	}
	return nil
}

// Lines returns the number of records written through WriteLine.
func (d *dataFile) Lines() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lines
}

// Close flushes and closes the file.
func (d *dataFile) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.writer.Flush(); err != nil {
		d.file.Close()
		return fmt.Errorf("failed to flush %s: %w", d.path, err)
	}
	if err := d.file.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", d.path, err)
	}
	return nil
}

// exists reports whether path names an existing file or folder.
func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
