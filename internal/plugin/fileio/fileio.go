// Package fileio implements a sandboxed filesystem plugin. Every path
// the model supplies is resolved strictly inside a configured root
// directory; requests that escape the root are rejected before any
// filesystem call happens.
package fileio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/libreassistant/libreassistant/internal/plugin"
	"github.com/libreassistant/libreassistant/internal/registry"
)

const maxReadBytes = 1 << 20

// FS executes file operations rooted at a single directory.
type FS struct {
	root string
}

// New returns a sandbox rooted at dir. The directory is created if it
// does not exist yet.
func New(dir string) (*FS, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("fileio: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("fileio: create root: %w", err)
	}
	return &FS{root: abs}, nil
}

// resolve maps a model-supplied relative path to an absolute path
// inside the root. Absolute paths and any form of traversal out of the
// root are errors.
func (f *FS) resolve(rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("path is required")
	}
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("absolute paths are not allowed")
	}
	abs := filepath.Join(f.root, filepath.Clean(rel))
	if abs != f.root && !strings.HasPrefix(abs, f.root+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes the sandbox root")
	}
	return abs, nil
}

// Execute dispatches on input["operation"]: read, write, list or
// delete. Paths are interpreted relative to the sandbox root.
func (f *FS) Execute(ctx context.Context, input map[string]any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	op, _ := input["operation"].(string)
	path, _ := input["path"].(string)

	switch op {
	case "read":
		return f.read(path)
	case "write":
		content, _ := input["content"].(string)
		return f.write(path, content)
	case "list":
		if path == "" {
			path = "."
		}
		return f.list(path)
	case "delete":
		return f.remove(path)
	case "":
		return nil, fmt.Errorf("operation is required (read, write, list, delete)")
	default:
		return nil, fmt.Errorf("unknown operation %q", op)
	}
}

func (f *FS) read(rel string) (any, error) {
	abs, err := f.resolve(rel)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if info.Size() > maxReadBytes {
		return nil, fmt.Errorf("file %q is too large to read (%d bytes)", rel, info.Size())
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, err
	}
	return map[string]any{"path": rel, "content": string(data)}, nil
}

func (f *FS) write(rel, content string) (any, error) {
	abs, err := f.resolve(rel)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		return nil, err
	}
	return map[string]any{"path": rel, "bytes_written": len(content)}, nil
}

func (f *FS) list(rel string) (any, error) {
	abs, err := f.resolve(rel)
	if err != nil {
		return nil, err
	}
	dirents, err := os.ReadDir(abs)
	if err != nil {
		return nil, err
	}
	entries := make([]map[string]any, 0, len(dirents))
	for _, d := range dirents {
		e := map[string]any{"name": d.Name(), "dir": d.IsDir()}
		if info, err := d.Info(); err == nil && !d.IsDir() {
			e["size"] = info.Size()
		}
		entries = append(entries, e)
	}
	return map[string]any{"path": rel, "entries": entries}, nil
}

func (f *FS) remove(rel string) (any, error) {
	abs, err := f.resolve(rel)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%q is a directory; only files can be deleted", rel)
	}
	if err := os.Remove(abs); err != nil {
		return nil, err
	}
	return map[string]any{"path": rel, "deleted": true}, nil
}

var _ plugin.Plugin = (*FS)(nil)

// Entry returns the registry entry for the sandbox plugin.
func Entry(fs *FS) registry.Entry {
	return registry.Entry{
		Descriptor: registry.Descriptor{
			ID:          "file_io",
			Name:        "File I/O",
			Description: "Read, write, list and delete files inside the assistant workspace directory.",
			InputExample: map[string]any{
				"operation": "write",
				"path":      "notes/todo.txt",
				"content":   "buy milk",
			},
		},
		Plugin: fs,
	}
}
