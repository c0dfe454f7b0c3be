package kvstore

import (
	"path/filepath"
	"testing"
)

func testStore(t *testing.T, s Store) {
	t.Helper()

	if _, ok, err := s.Get("missing"); err != nil || ok {
		t.Fatalf("Get(missing) = ok=%v err=%v, want ok=false err=nil", ok, err)
	}

	if err := s.Set("a", "one"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := s.Get("a")
	if err != nil || !ok || got != "one" {
		t.Fatalf("Get(a) = %q ok=%v err=%v, want \"one\" ok=true", got, ok, err)
	}

	// Overwrite replaces the previous value.
	if err := s.Set("a", "two"); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	got, ok, err = s.Get("a")
	if err != nil || !ok || got != "two" {
		t.Fatalf("Get(a) after overwrite = %q ok=%v err=%v, want \"two\" ok=true", got, ok, err)
	}
}

func TestMemoryStore(t *testing.T) {
	s := NewMemory()
	defer s.Close()
	testStore(t, s)
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cache.db")
	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer s.Close()
	testStore(t, s)
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")

	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := s.Set("k", "v"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	got, ok, err := s2.Get("k")
	if err != nil || !ok || got != "v" {
		t.Fatalf("Get(k) after reopen = %q ok=%v err=%v, want \"v\" ok=true", got, ok, err)
	}
}
