package remote

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	pkgplugin "github.com/libreassistant/libreassistant/pkg/plugin"
)

type upperHandler struct{}

func (upperHandler) Manifest() pkgplugin.ManifestMsg {
	return pkgplugin.ManifestMsg{
		ID:          "upper",
		Name:        "Upper",
		Description: "Uppercases text",
	}
}

func (upperHandler) Execute(input map[string]any) (any, error) {
	text, _ := input["text"].(string)
	out := make([]rune, 0, len(text))
	for _, r := range text {
		if r >= 'a' && r <= 'z' {
			r -= 'a' - 'A'
		}
		out = append(out, r)
	}
	return map[string]any{"text": string(out)}, nil
}

// startTestPlugin serves a handler on a unix socket in a temp dir and
// returns its address.
func startTestPlugin(t *testing.T, h pkgplugin.Handler) string {
	t.Helper()
	sock := filepath.Join(t.TempDir(), "plugin.sock")
	ln, err := net.Listen("unix", sock)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go pkgplugin.ServeConn(h, conn)
		}
	}()
	return sock
}

func TestClientManifestAndExecute(t *testing.T) {
	addr := startTestPlugin(t, upperHandler{})

	c, err := Dial("unix", addr, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if c.Manifest().ID != "upper" {
		t.Errorf("Manifest().ID = %q", c.Manifest().ID)
	}

	out, err := c.Execute(context.Background(), map[string]any{"text": "hello"})
	if err != nil {
		t.Fatal(err)
	}
	m, ok := out.(map[string]any)
	if !ok || m["text"] != "HELLO" {
		t.Errorf("output = %#v", out)
	}
}

func TestClientExecuteCancelled(t *testing.T) {
	addr := startTestPlugin(t, upperHandler{})

	c, err := Dial("unix", addr, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.Execute(ctx, map[string]any{"text": "x"}); err == nil {
		t.Error("expected error from cancelled context")
	}
}

func TestDetectMode(t *testing.T) {
	tests := []struct {
		path string
		want pluginMode
	}{
		{"./bin/search-plugin", modeBinary},
		{"tcp://localhost:9001", modeTCP},
		{"ws://localhost:9002/plugin", modeWebSocket},
		{"wss://plugins.example.com/legal", modeWebSocket},
	}
	for _, tt := range tests {
		if got := detectMode(tt.path); got != tt.want {
			t.Errorf("detectMode(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
