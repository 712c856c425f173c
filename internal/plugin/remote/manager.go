package remote

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/libreassistant/libreassistant/internal/registry"
	pkgplugin "github.com/libreassistant/libreassistant/pkg/plugin"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultDialTimeout      = 5 * time.Second
	defaultStopGrace        = 5 * time.Second
)

// Entry holds the config for one remote plugin. Path is either a
// binary path, "tcp://host:port", or "ws://host/path".
type Entry struct {
	Name    string
	Path    string
	Enabled bool
	Timeout time.Duration
}

type managed struct {
	entry   Entry
	process *Process
	closer  interface{ Close() error }
}

// Manager launches remote plugins at startup and yields registry
// entries for them. It keeps process handles so StopAll can shut the
// subprocesses down on exit.
type Manager struct {
	mu      sync.Mutex
	plugins map[string]*managed
}

func NewManager() *Manager {
	return &Manager{plugins: make(map[string]*managed)}
}

// LoadAll launches every enabled plugin and returns the registry
// entries for those that came up. A plugin that fails to start is
// logged and skipped; the rest still load.
func (m *Manager) LoadAll(ctx context.Context, entries []Entry) []registry.Entry {
	var out []registry.Entry
	for _, e := range entries {
		if !e.Enabled {
			log.Printf("plugin-manager: %s disabled, skipping", e.Name)
			continue
		}
		re, err := m.load(ctx, e)
		if err != nil {
			log.Printf("plugin-manager: %s: %v", e.Name, err)
			continue
		}
		out = append(out, re)
	}
	return out
}

func (m *Manager) load(ctx context.Context, entry Entry) (registry.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.plugins[entry.Name]; exists {
		return registry.Entry{}, fmt.Errorf("already loaded")
	}

	var (
		re   registry.Entry
		proc *Process
		err  error
	)

	switch mode := detectMode(entry.Path); mode {
	case modeBinary:
		var client *Client
		proc, client, err = launchBinary(ctx, entry)
		if err == nil {
			re = manifestEntry(entry, client.Manifest())
			re.Plugin = client
			m.plugins[entry.Name] = &managed{entry: entry, process: proc, closer: client}
		}
	case modeTCP:
		var client *Client
		client, err = Dial("tcp", strings.TrimPrefix(entry.Path, "tcp://"), defaultDialTimeout)
		if err == nil {
			re = manifestEntry(entry, client.Manifest())
			re.Plugin = client
			m.plugins[entry.Name] = &managed{entry: entry, closer: client}
		}
	case modeWebSocket:
		var ws *WSClient
		ws, err = DialWS(ctx, entry.Path)
		if err == nil {
			re = manifestEntry(entry, ws.Manifest())
			re.Plugin = ws
			m.plugins[entry.Name] = &managed{entry: entry, closer: ws}
		}
	default:
		err = fmt.Errorf("unsupported plugin mode %q", mode)
	}
	if err != nil {
		return registry.Entry{}, err
	}

	log.Printf("plugin-manager: loaded %s (%s)", entry.Name, entry.Path)
	return re, nil
}

func launchBinary(ctx context.Context, entry Entry) (*Process, *Client, error) {
	proc := NewProcess(entry.Path)
	hs, err := proc.Start(ctx, defaultHandshakeTimeout)
	if err != nil {
		return nil, nil, fmt.Errorf("start: %w", err)
	}

	client, err := DialFromHandshake(hs, defaultDialTimeout)
	if err != nil {
		_ = proc.Stop(defaultStopGrace)
		return nil, nil, fmt.Errorf("dial: %w", err)
	}
	return proc, client, nil
}

// StopAll gracefully shuts down all managed plugins.
func (m *Manager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, mg := range m.plugins {
		if mg.closer != nil {
			_ = mg.closer.Close()
		}
		if mg.process != nil {
			if err := mg.process.Stop(defaultStopGrace); err != nil {
				log.Printf("plugin-manager: stop %s: %v", name, err)
			}
		}
		delete(m.plugins, name)
	}
}

// List returns the names of all loaded plugins.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.plugins))
	for name := range m.plugins {
		names = append(names, name)
	}
	return names
}

// manifestEntry builds a registry entry from a plugin's manifest,
// falling back to the config name when the manifest omits an id.
func manifestEntry(entry Entry, m pkgplugin.ManifestMsg) registry.Entry {
	id := m.ID
	if id == "" {
		id = entry.Name
	}
	name := m.Name
	if name == "" {
		name = id
	}
	return registry.Entry{
		Descriptor: registry.Descriptor{
			ID:           id,
			Name:         name,
			Description:  m.Description,
			InputExample: m.InputExample,
			Timeout:      entry.Timeout,
		},
	}
}

type pluginMode string

const (
	modeBinary    pluginMode = "binary"
	modeTCP       pluginMode = "tcp"
	modeWebSocket pluginMode = "websocket"
)

func detectMode(path string) pluginMode {
	lower := strings.ToLower(path)
	switch {
	case strings.HasPrefix(lower, "tcp://"):
		return modeTCP
	case strings.HasPrefix(lower, "ws://"), strings.HasPrefix(lower, "wss://"):
		return modeWebSocket
	default:
		return modeBinary
	}
}
