package migration

import (
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
)

const migrationFileExt = ".sql"

// Source enumerates migration-eligible resources and reads their content.
// Implementations list a single directory level and only report resources
// with a .sql extension; filename parsing is left to the manager.
type Source interface {
	// Locators returns the migration-eligible resource locators.
	Locators() ([]string, error)

	// ReadFile returns the full content of a locator returned by Locators.
	ReadFile(locator string) ([]byte, error)
}

// FSSource reads migrations from one directory of an fs.FS, such as an
// embed.FS bundle.
type FSSource struct {
	fsys fs.FS
	dir  string
}

// NewFSSource returns a source over dir inside fsys. An empty dir means the root.
func NewFSSource(fsys fs.FS, dir string) *FSSource {
	if dir == "" {
		dir = "."
	}
	return &FSSource{fsys: fsys, dir: dir}
}

// NewDirSource returns a source over a directory of the local filesystem.
func NewDirSource(dir string) *FSSource {
	return NewFSSource(os.DirFS(dir), ".")
}

// Locators lists the .sql files directly inside the source directory.
func (s *FSSource) Locators() ([]string, error) {
	entries, err := fs.ReadDir(s.fsys, s.dir)
	if err != nil {
		return nil, &SourceError{Path: s.dir, Operation: "list", Err: err}
	}

	locators := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(path.Ext(entry.Name()), migrationFileExt) {
			continue
		}
		locators = append(locators, path.Join(s.dir, entry.Name()))
	}

	sort.Strings(locators)
	return locators, nil
}

// ReadFile reads a locator returned by Locators.
func (s *FSSource) ReadFile(locator string) ([]byte, error) {
	return fs.ReadFile(s.fsys, locator)
}
