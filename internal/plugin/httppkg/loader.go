package httppkg

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/libreassistant/libreassistant/internal/registry"
)

type packageFile struct {
	Packages []Package `yaml:"packages"`
}

// LoadFile reads one YAML file holding a list of packages.
func LoadFile(path string) ([]Package, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read package file: %w", err)
	}
	var f packageFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for _, p := range f.Packages {
		if p.ID == "" || p.URL == "" {
			return nil, fmt.Errorf("%s: every package needs id and url", path)
		}
	}
	return f.Packages, nil
}

// Entries loads every configured package file and converts the
// packages into registry entries.
func Entries(paths []string) ([]registry.Entry, error) {
	var entries []registry.Entry
	for _, path := range paths {
		pkgs, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		for _, pkg := range pkgs {
			entry, err := Entry(pkg)
			if err != nil {
				return nil, err
			}
			entries = append(entries, entry)
		}
	}
	return entries, nil
}
