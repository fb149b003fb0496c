package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRotatingWriterRotatesAndKeepsBackups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "update_checker.log")
	rw, err := newRotatingWriter(path, 16, 2)
	if err != nil {
		t.Fatalf("newRotatingWriter: %v", err)
	}
	defer rw.Close()

	for _, line := range []string{"first line 0001\n", "second line 002\n", "third line 0003\n", "fourth line 004\n"} {
		if _, err := rw.Write([]byte(line)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	current, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read current: %v", err)
	}
	if !strings.Contains(string(current), "fourth") {
		t.Fatalf("current log = %q, want fourth line", current)
	}

	backup1, err := os.ReadFile(path + ".1")
	if err != nil {
		t.Fatalf("read .1: %v", err)
	}
	if !strings.Contains(string(backup1), "third") {
		t.Fatalf(".1 = %q, want third line", backup1)
	}

	if _, err := os.Stat(path + ".2"); err != nil {
		t.Fatalf("expected .2 backup: %v", err)
	}
	if _, err := os.Stat(path + ".3"); !os.IsNotExist(err) {
		t.Fatalf("expected no .3 backup, stat err = %v", err)
	}
}

func TestRotatingWriterAppendsToExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	if err := os.WriteFile(path, []byte("existing\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	rw, err := NewRotatingWriter(path, 1, 1)
	if err != nil {
		t.Fatalf("NewRotatingWriter: %v", err)
	}
	if _, err := rw.Write([]byte("appended\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	rw.Close()

	data, _ := os.ReadFile(path)
	if string(data) != "existing\nappended\n" {
		t.Fatalf("file = %q", data)
	}
}

func TestRotatingWriterRotatesOversizedFileOnOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "update_checker.log")
	if err := os.WriteFile(path, []byte("left over from an earlier run\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	rw, err := newRotatingWriter(path, 16, 1)
	if err != nil {
		t.Fatalf("newRotatingWriter: %v", err)
	}
	if _, err := rw.Write([]byte("new run\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	rw.Close()

	current, _ := os.ReadFile(path)
	if string(current) != "new run\n" {
		t.Fatalf("current log = %q", current)
	}
	old, err := os.ReadFile(path + ".1")
	if err != nil || !strings.Contains(string(old), "earlier run") {
		t.Fatalf(".1 = %q, err = %v", old, err)
	}
}
