package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestFileRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewFile(t.TempDir())
	if err != nil {
		t.Fatalf("NewFile failed: %v", err)
	}

	if err := s.Set(ctx, "auth-storage", []byte(`{"v":1}`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := s.Set(ctx, "auth-storage", []byte(`{"v":1,"refresh_token":"R2"}`)); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	got, err := s.Get(ctx, "auth-storage")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != `{"v":1,"refresh_token":"R2"}` {
		t.Fatalf("unexpected value %q", got)
	}

	entries, err := os.ReadDir(s.Dir())
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "auth-storage.json" {
		t.Fatalf("expected a single record file and no temp leftovers, got %v", entries)
	}
}

func TestFilePermissionsOwnerOnly(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions only")
	}
	dir := filepath.Join(t.TempDir(), "nested", "state")
	s, err := NewFile(dir)
	if err != nil {
		t.Fatalf("NewFile failed: %v", err)
	}
	if err := s.Set(context.Background(), "auth-storage", []byte("{}")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	dirInfo, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("Stat dir failed: %v", err)
	}
	if perm := dirInfo.Mode().Perm(); perm&0o077 != 0 {
		t.Fatalf("directory readable by others: %v", perm)
	}
	fileInfo, err := os.Stat(filepath.Join(dir, "auth-storage.json"))
	if err != nil {
		t.Fatalf("Stat file failed: %v", err)
	}
	if perm := fileInfo.Mode().Perm(); perm != 0o600 {
		t.Fatalf("expected 0600, got %v", perm)
	}
}

func TestFileMissingAndRemove(t *testing.T) {
	ctx := context.Background()
	s, err := NewFile(t.TempDir())
	if err != nil {
		t.Fatalf("NewFile failed: %v", err)
	}

	if _, err := s.Get(ctx, "auth-storage"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.Remove(ctx, "auth-storage"); err != nil {
		t.Fatalf("removing a missing record must succeed, got %v", err)
	}
	_ = s.Set(ctx, "auth-storage", []byte("{}"))
	if err := s.Remove(ctx, "auth-storage"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := s.Get(ctx, "auth-storage"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after remove, got %v", err)
	}
}

func TestFileRejectsUnsafeKeys(t *testing.T) {
	s, err := NewFile(t.TempDir())
	if err != nil {
		t.Fatalf("NewFile failed: %v", err)
	}
	for _, key := range []string{"", ".", "..", "../escape", "a/b", `a\b`, ".hidden"} {
		if err := s.Set(context.Background(), key, []byte("{}")); !errors.Is(err, ErrInvalidKey) {
			t.Fatalf("key %q: expected ErrInvalidKey, got %v", key, err)
		}
	}
}

func TestFileHonoursCancelledContext(t *testing.T) {
	s, err := NewFile(t.TempDir())
	if err != nil {
		t.Fatalf("NewFile failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Set(ctx, "auth-storage", []byte("{}")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNewFileRequiresDirectory(t *testing.T) {
	if _, err := NewFile("  "); err == nil {
		t.Fatal("expected error for blank directory")
	}
}
