package fsutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	// raw path unaffected
	if got, err := ExpandHome("/tmp"); err != nil || got != "/tmp" {
		t.Fatalf("got %q err=%v", got, err)
	}
	// empty path
	if got, err := ExpandHome(""); err != nil || got != "" {
		t.Fatalf("got %q err=%v", got, err)
	}
	// ~ expansion
	if p, err := ExpandHome("~"); err != nil || p != home {
		t.Fatalf("expected %q, got %q err=%v", home, p, err)
	}
	// ~/subdir
	if p, err := ExpandHome("~/inbox"); err != nil || p != filepath.Join(home, "inbox") {
		t.Fatalf("unexpected expanded path %q err=%v", p, err)
	}
}

func TestResolve(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	if p, err := Resolve("~/a/../b"); err != nil || p != filepath.Join(home, "b") {
		t.Fatalf("got %q err=%v", p, err)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if p, err := Resolve("rel"); err != nil || p != filepath.Join(wd, "rel") {
		t.Fatalf("got %q err=%v", p, err)
	}
}

func TestRegularFile(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "f.txt")
	if err := os.WriteFile(f, []byte("abc"), 0o644); err != nil {
		t.Fatal(err)
	}
	fi, err := RegularFile(f)
	if err != nil || fi.Size() != 3 {
		t.Fatalf("fi=%v err=%v", fi, err)
	}
	if _, err := RegularFile(dir); err == nil {
		t.Fatal("expected error for directory")
	}
	if _, err := RegularFile(filepath.Join(dir, "missing")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
