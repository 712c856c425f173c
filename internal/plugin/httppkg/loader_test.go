package httppkg

import (
	"os"
	"path/filepath"
	"testing"
)

const packagesYAML = `packages:
  - id: weather
    description: current weather by city
    method: GET
    url: https://wttr.in/{{input.city}}?format=j1
    timeout: 8s
    input_example:
      city: London
  - id: webhook
    description: post a message to a webhook
    method: POST
    url: ${WEBHOOK_URL}
    body: '{"text":"{{input.text}}"}'
`

func writePackages(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "packages.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	pkgs, err := LoadFile(writePackages(t, packagesYAML))
	if err != nil {
		t.Fatal(err)
	}
	if len(pkgs) != 2 {
		t.Fatalf("got %d packages", len(pkgs))
	}
	if pkgs[0].ID != "weather" || pkgs[1].ID != "webhook" {
		t.Errorf("ids = %q, %q", pkgs[0].ID, pkgs[1].ID)
	}
	if pkgs[0].Timeout != "8s" {
		t.Errorf("timeout = %q", pkgs[0].Timeout)
	}
}

func TestLoadFileRejectsIncomplete(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing id", "packages:\n  - url: https://example.com\n"},
		{"missing url", "packages:\n  - id: nourl\n"},
		{"bad yaml", "packages: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadFile(writePackages(t, tt.yaml)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestEntries(t *testing.T) {
	path := writePackages(t, packagesYAML)
	entries, err := Entries([]string{path})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries", len(entries))
	}
	for _, e := range entries {
		if e.Plugin == nil {
			t.Errorf("entry %q has no executor", e.Descriptor.ID)
		}
	}

	if _, err := Entries([]string{filepath.Join(t.TempDir(), "missing.yaml")}); err == nil {
		t.Error("expected error for missing file")
	}
}
