package db

import (
	"path/filepath"
	"testing"
)

func TestOpenCreatesWorkspace(t *testing.T) {
	dir := t.TempDir()
	conn, err := Open(Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()
	var fk int
	if err := conn.QueryRow(`PRAGMA foreign_keys`).Scan(&fk); err != nil {
		t.Fatalf("pragma: %v", err)
	}
	if fk != 1 {
		t.Fatalf("foreign keys off")
	}
	if got := Path(Config{Workspace: dir}); got != filepath.Join(dir, ".conecta", "conecta.db") {
		t.Fatalf("path %s", got)
	}
}

func TestPathOverride(t *testing.T) {
	if got := Path(Config{Workspace: "/ignored", Path: "/tmp/x.db"}); got != "/tmp/x.db" {
		t.Fatalf("path %s", got)
	}
}
