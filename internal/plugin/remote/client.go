// Package remote hosts out-of-process plugins: subprocess plugins that
// speak the length-prefixed JSON protocol over a Unix or TCP socket,
// and network plugins reachable over a websocket.
package remote

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	pkgplugin "github.com/libreassistant/libreassistant/pkg/plugin"
)

// Client connects to a running plugin over a Unix socket or TCP and
// implements plugin.Plugin. Calls are serialized over one connection.
type Client struct {
	mu       sync.Mutex
	conn     net.Conn
	manifest pkgplugin.ManifestMsg
	seq      int
}

// Dial connects to a plugin at the given network/address and fetches
// its manifest.
func Dial(network, address string, timeout time.Duration) (*Client, error) {
	conn, err := net.DialTimeout(network, address, timeout)
	if err != nil {
		return nil, fmt.Errorf("dial plugin at %s://%s: %w", network, address, err)
	}

	c := &Client{conn: conn}
	if err := c.fetchManifest(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return c, nil
}

// DialFromHandshake connects using information from a handshake.
func DialFromHandshake(hs pkgplugin.Handshake, timeout time.Duration) (*Client, error) {
	return Dial(hs.Network, hs.Address, timeout)
}

func (c *Client) fetchManifest() error {
	req := pkgplugin.Request{Method: pkgplugin.MethodManifest}
	if err := pkgplugin.WriteMessage(c.conn, &req); err != nil {
		return fmt.Errorf("request manifest: %w", err)
	}

	var resp pkgplugin.Response
	if err := pkgplugin.ReadMessage(c.conn, &resp); err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}
	if resp.Error != "" {
		return fmt.Errorf("manifest error: %s", resp.Error)
	}
	if resp.Manifest == nil {
		return fmt.Errorf("plugin returned empty manifest")
	}

	c.manifest = *resp.Manifest
	return nil
}

// Manifest returns the plugin's self-description.
func (c *Client) Manifest() pkgplugin.ManifestMsg { return c.manifest }

// Execute sends one invocation to the plugin and waits for its reply.
// The connection is request/response so calls are serialized; ctx
// cancellation abandons the wait (the runner's timeout still applies).
func (c *Client) Execute(ctx context.Context, input map[string]any) (any, error) {
	type reply struct {
		output any
		err    error
	}
	done := make(chan reply, 1)

	go func() {
		c.mu.Lock()
		defer c.mu.Unlock()

		c.seq++
		req := pkgplugin.Request{
			Method: pkgplugin.MethodExecute,
			ID:     fmt.Sprintf("call-%d", c.seq),
			Input:  input,
		}
		if err := pkgplugin.WriteMessage(c.conn, &req); err != nil {
			done <- reply{err: fmt.Errorf("write: %w", err)}
			return
		}
		var resp pkgplugin.Response
		if err := pkgplugin.ReadMessage(c.conn, &resp); err != nil {
			done <- reply{err: fmt.Errorf("read: %w", err)}
			return
		}
		if resp.Error != "" {
			done <- reply{err: fmt.Errorf("%s", resp.Error)}
			return
		}
		done <- reply{output: resp.Output}
	}()

	select {
	case r := <-done:
		return r.output, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close terminates the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Close()
}
