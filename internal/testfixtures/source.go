package testfixtures

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
)

// MemSource is an in-memory migration source keyed by locator. Unlike the
// filesystem sources it reports every locator, including ones that are not
// migration filenames.
type MemSource struct {
	mu      sync.Mutex
	files   map[string]string
	reads   map[string]int
	ListErr error
	ReadErr map[string]error
}

// NewMemSource returns a source serving files.
func NewMemSource(files map[string]string) *MemSource {
	copied := make(map[string]string, len(files))
	for locator, content := range files {
		copied[locator] = content
	}
	return &MemSource{files: copied, reads: make(map[string]int), ReadErr: make(map[string]error)}
}

// Locators returns every locator in lexical order, or ListErr.
func (s *MemSource) Locators() ([]string, error) {
	if s.ListErr != nil {
		return nil, s.ListErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	locators := make([]string, 0, len(s.files))
	for locator := range s.files {
		locators = append(locators, locator)
	}
	sort.Strings(locators)
	return locators, nil
}

// ReadFile returns the content of locator and counts the read.
func (s *MemSource) ReadFile(locator string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reads[locator]++
	if err := s.ReadErr[locator]; err != nil {
		return nil, err
	}
	content, ok := s.files[locator]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", locator, fs.ErrNotExist)
	}
	return []byte(content), nil
}

// Reads returns how many times locator has been read.
func (s *MemSource) Reads(locator string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads[locator]
}

// WriteMigrationFiles writes files (name -> content) into dir and returns dir.
func WriteMigrationFiles(tb testing.TB, dir string, files map[string]string) string {
	tb.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		tb.Fatalf("failed to create %s: %v", dir, err)
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			tb.Fatalf("failed to write %s: %v", name, err)
		}
	}
	return dir
}
