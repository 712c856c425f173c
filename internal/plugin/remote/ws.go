package remote

import (
	"context"
	"fmt"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	pkgplugin "github.com/libreassistant/libreassistant/pkg/plugin"
)

// WSClient talks to a network-hosted plugin over a websocket. Each
// protocol message is one JSON websocket frame; the request/response
// shapes are the same as the socket protocol.
type WSClient struct {
	mu       sync.Mutex
	conn     *websocket.Conn
	url      string
	manifest pkgplugin.ManifestMsg
	seq      int
}

// DialWS connects to a plugin at a ws:// or wss:// URL and fetches its
// manifest.
func DialWS(ctx context.Context, url string) (*WSClient, error) {
	dialCtx, cancel := context.WithTimeout(ctx, defaultDialTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial plugin at %s: %w", url, err)
	}
	conn.SetReadLimit(pkgplugin.MaxMessageSize)

	c := &WSClient{conn: conn, url: url}
	if err := c.fetchManifest(ctx); err != nil {
		_ = conn.Close(websocket.StatusProtocolError, "manifest")
		return nil, err
	}
	return c, nil
}

func (c *WSClient) fetchManifest(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultDialTimeout)
	defer cancel()

	if err := wsjson.Write(ctx, c.conn, pkgplugin.Request{Method: pkgplugin.MethodManifest}); err != nil {
		return fmt.Errorf("request manifest: %w", err)
	}
	var resp pkgplugin.Response
	if err := wsjson.Read(ctx, c.conn, &resp); err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}
	if resp.Error != "" {
		return fmt.Errorf("manifest error: %s", resp.Error)
	}
	if resp.Manifest == nil {
		return fmt.Errorf("plugin at %s returned empty manifest", c.url)
	}
	c.manifest = *resp.Manifest
	return nil
}

// Manifest returns the plugin's self-description.
func (c *WSClient) Manifest() pkgplugin.ManifestMsg { return c.manifest }

// Execute sends one invocation over the websocket and waits for the
// reply. Calls are serialized; ctx bounds the round trip.
func (c *WSClient) Execute(ctx context.Context, input map[string]any) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	req := pkgplugin.Request{
		Method: pkgplugin.MethodExecute,
		ID:     fmt.Sprintf("call-%d", c.seq),
		Input:  input,
	}
	if err := wsjson.Write(ctx, c.conn, req); err != nil {
		return nil, fmt.Errorf("write: %w", err)
	}
	var resp pkgplugin.Response
	if err := wsjson.Read(ctx, c.conn, &resp); err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("%s", resp.Error)
	}
	return resp.Output, nil
}

// Close closes the websocket with a normal closure.
func (c *WSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Close(websocket.StatusNormalClosure, "shutdown")
}
