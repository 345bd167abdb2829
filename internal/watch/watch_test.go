package watch

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherSubmitsSettledDocument(t *testing.T) {
	dir := t.TempDir()
	submitted := make(chan string, 1)

	w, err := New([]string{dir}, 50*time.Millisecond, slog.Default(), func(path string) {
		submitted <- path
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Stop()

	target := filepath.Join(dir, "scan.pdf")
	if err := os.WriteFile(target, []byte("pdf"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-submitted:
		if got != target {
			t.Errorf("submitted %q, want %q", got, target)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("document never submitted")
	}
}

func TestWatcherIgnoresNonDocuments(t *testing.T) {
	dir := t.TempDir()
	submitted := make(chan string, 1)

	w, err := New([]string{dir}, 50*time.Millisecond, slog.Default(), func(path string) {
		submitted <- path
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-submitted:
		t.Fatalf("unexpected submission: %q", got)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherCancelsRemovedDocument(t *testing.T) {
	dir := t.TempDir()
	submitted := make(chan string, 1)

	w, err := New([]string{dir}, 200*time.Millisecond, slog.Default(), func(path string) {
		submitted <- path
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Stop()

	target := filepath.Join(dir, "scan.pdf")
	if err := os.WriteFile(target, []byte("pdf"), 0o644); err != nil {
		t.Fatal(err)
	}
	// Remove before the settle period elapses.
	if err := os.Remove(target); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-submitted:
		t.Fatalf("removed document was submitted: %q", got)
	case <-time.After(600 * time.Millisecond):
	}
}
