package fileio

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newFS(t *testing.T) *FS {
	t.Helper()
	fs, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return fs
}

func TestWriteReadRoundTrip(t *testing.T) {
	fs := newFS(t)
	ctx := context.Background()

	out, err := fs.Execute(ctx, map[string]any{
		"operation": "write",
		"path":      "notes/todo.txt",
		"content":   "buy milk",
	})
	if err != nil {
		t.Fatal(err)
	}
	if out.(map[string]any)["bytes_written"] != len("buy milk") {
		t.Errorf("write output = %v", out)
	}

	out, err = fs.Execute(ctx, map[string]any{"operation": "read", "path": "notes/todo.txt"})
	if err != nil {
		t.Fatal(err)
	}
	if out.(map[string]any)["content"] != "buy milk" {
		t.Errorf("read output = %v", out)
	}
}

func TestListAndDelete(t *testing.T) {
	fs := newFS(t)
	ctx := context.Background()

	for _, name := range []string{"a.txt", "b.txt"} {
		if _, err := fs.Execute(ctx, map[string]any{"operation": "write", "path": name, "content": "x"}); err != nil {
			t.Fatal(err)
		}
	}

	out, err := fs.Execute(ctx, map[string]any{"operation": "list"})
	if err != nil {
		t.Fatal(err)
	}
	entries := out.(map[string]any)["entries"].([]map[string]any)
	if len(entries) != 2 {
		t.Fatalf("entries = %v", entries)
	}

	if _, err := fs.Execute(ctx, map[string]any{"operation": "delete", "path": "a.txt"}); err != nil {
		t.Fatal(err)
	}
	if _, err := fs.Execute(ctx, map[string]any{"operation": "read", "path": "a.txt"}); err == nil {
		t.Error("expected read of deleted file to fail")
	}
}

func TestTraversalRejected(t *testing.T) {
	fs := newFS(t)
	ctx := context.Background()

	tests := []string{
		"../outside.txt",
		"notes/../../outside.txt",
		"/etc/passwd",
	}
	for _, path := range tests {
		if _, err := fs.Execute(ctx, map[string]any{"operation": "read", "path": path}); err == nil {
			t.Errorf("path %q: expected rejection", path)
		}
	}

	// Nothing may have been created outside the root either.
	parent := filepath.Dir(fs.root)
	if _, err := os.Stat(filepath.Join(parent, "outside.txt")); err == nil {
		t.Error("file escaped the sandbox")
	}
}

func TestDeleteRefusesDirectories(t *testing.T) {
	fs := newFS(t)
	ctx := context.Background()

	if _, err := fs.Execute(ctx, map[string]any{"operation": "write", "path": "dir/f.txt", "content": "x"}); err != nil {
		t.Fatal(err)
	}
	_, err := fs.Execute(ctx, map[string]any{"operation": "delete", "path": "dir"})
	if err == nil || !strings.Contains(err.Error(), "directory") {
		t.Fatalf("err = %v", err)
	}
}

func TestBadOperations(t *testing.T) {
	fs := newFS(t)
	ctx := context.Background()

	if _, err := fs.Execute(ctx, map[string]any{"path": "x"}); err == nil {
		t.Error("expected error for missing operation")
	}
	if _, err := fs.Execute(ctx, map[string]any{"operation": "chmod", "path": "x"}); err == nil {
		t.Error("expected error for unknown operation")
	}
	if _, err := fs.Execute(ctx, map[string]any{"operation": "read"}); err == nil {
		t.Error("expected error for missing path")
	}
}

func TestEntryDescriptor(t *testing.T) {
	entry := Entry(newFS(t))
	if entry.Descriptor.ID != "file_io" || entry.Plugin == nil {
		t.Errorf("entry = %+v", entry)
	}
}
