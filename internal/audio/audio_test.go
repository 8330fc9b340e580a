package audio

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFSStoreRoundTrip(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	if err := s.Write("e1.webm", []byte("abc")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := s.Append("e1.webm", []byte("def")); err != nil {
		t.Fatalf("append: %v", err)
	}
	data, err := s.Read("e1.webm")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "abcdef" {
		t.Fatalf("read %q, want abcdef", data)
	}

	// write truncates
	if err := s.Write("e1.webm", []byte("xyz")); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	data, _ = s.Read("e1.webm")
	if string(data) != "xyz" {
		t.Fatalf("read %q after truncating write", data)
	}

	if err := s.Delete("e1.webm"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Read("e1.webm"); err == nil {
		t.Fatal("read after delete succeeded")
	}
	if err := s.Delete("e1.webm"); err == nil {
		t.Fatal("deleting a missing blob must error")
	}
}

func TestFSStoreRejectsTraversalKeys(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFSStore(filepath.Join(dir, "audio"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	outside := filepath.Join(dir, "escape.txt")
	if err := os.WriteFile(outside, []byte("x"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	for _, key := range []string{"", "../escape.txt", "a/b.webm", `a\b.webm`, "..", "x..y"} {
		if err := s.Write(key, []byte("x")); err == nil {
			t.Errorf("Write(%q) accepted an invalid key", key)
		}
		if _, err := s.Read(key); err == nil {
			t.Errorf("Read(%q) accepted an invalid key", key)
		}
		if err := s.Delete(key); err == nil {
			t.Errorf("Delete(%q) accepted an invalid key", key)
		}
	}
	if _, err := os.Stat(outside); err != nil {
		t.Fatalf("file outside the store was touched: %v", err)
	}
}

func TestAppendRequiresExistingBlob(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := s.Append("missing.webm", []byte("x")); err == nil {
		t.Fatal("append to a missing blob must error")
	}
}
