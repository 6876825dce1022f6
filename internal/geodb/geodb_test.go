package geodb

import (
	"net"
	"path/filepath"
	"testing"
)

func TestOpenWithoutPaths(t *testing.T) {
	db, err := Open("", "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if db != nil {
		t.Fatal("expected nil DB when no paths are configured")
	}
	if _, ok := db.Lookup(net.ParseIP("8.8.8.8")); ok {
		t.Error("nil DB lookup should report not found")
	}
	if err := db.Close(); err != nil {
		t.Errorf("Close on nil DB: %v", err)
	}
}

func TestOpenMissingFile(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "missing.mmdb"), ""); err == nil {
		t.Fatal("expected error for missing database")
	}
}
