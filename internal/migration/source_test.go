package migration

import (
	"errors"
	"io/fs"
	"path/filepath"
	"testing"
	"testing/fstest"

	gocmp "github.com/google/go-cmp/cmp"

	"github.com/example/schema-migrations/internal/testfixtures"
)

func TestFSSource_Locators(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"migrations/1_create.sql":     {Data: []byte("CREATE TABLE a (id INTEGER);")},
		"migrations/2_upper.SQL":      {Data: []byte("CREATE TABLE b (id INTEGER);")},
		"migrations/README.md":        {Data: []byte("docs")},
		"migrations/nested/3_sub.sql": {Data: []byte("CREATE TABLE c (id INTEGER);")},
		"other/4_elsewhere.sql":       {Data: []byte("CREATE TABLE d (id INTEGER);")},
	}

	src := NewFSSource(fsys, "migrations")
	locators, err := src.Locators()
	if err != nil {
		t.Fatalf("Locators returned error: %v", err)
	}

	want := []string{"migrations/1_create.sql", "migrations/2_upper.SQL"}
	if diff := gocmp.Diff(want, locators); diff != "" {
		t.Fatalf("unexpected locators (-want +got):\n%s", diff)
	}

	content, err := src.ReadFile("migrations/2_upper.SQL")
	if err != nil {
		t.Fatalf("ReadFile returned error: %v", err)
	}
	if string(content) != "CREATE TABLE b (id INTEGER);" {
		t.Fatalf("unexpected content %q", content)
	}
}

func TestFSSource_RootDirectory(t *testing.T) {
	t.Parallel()

	src := NewFSSource(fstest.MapFS{"1.sql": {Data: []byte("SELECT 1")}}, "")
	locators, err := src.Locators()
	if err != nil {
		t.Fatalf("Locators returned error: %v", err)
	}
	if diff := gocmp.Diff([]string{"1.sql"}, locators); diff != "" {
		t.Fatalf("unexpected locators (-want +got):\n%s", diff)
	}
}

func TestFSSource_MissingDirectory(t *testing.T) {
	t.Parallel()

	_, err := NewFSSource(fstest.MapFS{}, "missing").Locators()

	var srcErr *SourceError
	if !errors.As(err, &srcErr) {
		t.Fatalf("expected *SourceError, got %T: %v", err, err)
	}
	if srcErr.Operation != "list" || !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestNewDirSource(t *testing.T) {
	t.Parallel()

	dir := testfixtures.WriteMigrationFiles(t, filepath.Join(t.TempDir(), "migrations"), map[string]string{
		"1.sql":               "CREATE TABLE one (id INTEGER);",
		"4_add new table.sql": "CREATE TABLE four (id INTEGER);",
		"notes.txt":           "ignored",
	})

	src := NewDirSource(dir)
	locators, err := src.Locators()
	if err != nil {
		t.Fatalf("Locators returned error: %v", err)
	}
	if diff := gocmp.Diff([]string{"1.sql", "4_add new table.sql"}, locators); diff != "" {
		t.Fatalf("unexpected locators (-want +got):\n%s", diff)
	}

	content, err := src.ReadFile("4_add new table.sql")
	if err != nil || string(content) != "CREATE TABLE four (id INTEGER);" {
		t.Fatalf("unexpected read result %q, %v", content, err)
	}
}
