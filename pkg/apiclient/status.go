package apiclient

import (
	"context"
	"net/url"
	"strconv"

	"github.com/marmos91/dittosmb/pkg/adapter/smb"
	"github.com/marmos91/dittosmb/pkg/history"
)

// Health is the data of GET /health.
type Health struct {
	Service string `json:"service"`
	Uptime  string `json:"uptime"`
}

// Health calls the liveness probe.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.get(ctx, "/health", &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// Ready returns nil when the SMB listener is accepting connections, or
// the server's reason otherwise.
func (c *Client) Ready(ctx context.Context) error {
	return c.get(ctx, "/health/ready", nil)
}

// Connections lists live connections, oldest first.
func (c *Client) Connections(ctx context.Context) ([]smb.ConnectionInfo, error) {
	var list struct {
		Connections []smb.ConnectionInfo `json:"connections"`
	}
	if err := c.get(ctx, "/api/v1/connections", &list); err != nil {
		return nil, err
	}
	return list.Connections, nil
}

// Connection returns one live connection.
func (c *Client) Connection(ctx context.Context, id string) (*smb.ConnectionInfo, error) {
	var info smb.ConnectionInfo
	if err := c.get(ctx, "/api/v1/connections/"+url.PathEscape(id), &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// History lists closed connections, newest first. limit 0 uses the
// server default.
func (c *Client) History(ctx context.Context, limit int) ([]history.Entry, error) {
	path := "/api/v1/history"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}

	var entries []history.Entry
	if err := c.get(ctx, path, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// HistoryEntry returns the journal record of one closed connection.
func (c *Client) HistoryEntry(ctx context.Context, id string) (*history.Entry, error) {
	var e history.Entry
	if err := c.get(ctx, "/api/v1/history/"+url.PathEscape(id), &e); err != nil {
		return nil, err
	}
	return &e, nil
}
