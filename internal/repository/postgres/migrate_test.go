package postgres

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMigrationFilesSorted(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"002_b.sql", "001_a.sql", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	files, err := MigrationFiles(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("got %v", files)
	}
	if filepath.Base(files[0]) != "001_a.sql" || filepath.Base(files[1]) != "002_b.sql" {
		t.Errorf("order = %v", files)
	}
}

func TestMigrationFilesEmpty(t *testing.T) {
	if _, err := MigrationFiles(t.TempDir()); err == nil {
		t.Fatal("expected error for a directory without migrations")
	}
}
