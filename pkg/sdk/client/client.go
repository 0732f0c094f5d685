// Package client talks to a running tallyd over its control socket.
package client

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"tally/pkg/sdk/types"
)

const envSocket = "TALLYD_SOCKET"

// DefaultSocketPath returns the control socket location, honoring
// TALLYD_SOCKET.
func DefaultSocketPath() string {
	if fromEnv := strings.TrimSpace(os.Getenv(envSocket)); fromEnv != "" {
		return fromEnv
	}
	if runtime.GOOS == "darwin" {
		return "/tmp/tallyd.sock"
	}
	return "/var/run/tallyd.sock"
}

// Client is an HTTP client bound to the daemon's unix socket.
type Client struct {
	httpc *http.Client
}

// NewUnix creates a client for the daemon listening at socketPath.
func NewUnix(socketPath string) *Client {
	return &Client{
		httpc: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					var d net.Dialer
					return d.DialContext(ctx, "unix", socketPath)
				},
			},
		},
	}
}

// Stats fetches the live counter set. filter, when non-empty, is a glob
// matched server-side against rendered keys.
func (c *Client) Stats(ctx context.Context, filter string) ([]types.StatRow, error) {
	endpoint := "/stats"
	if filter != "" {
		endpoint += "?filter=" + url.QueryEscape(filter)
	}
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return parseStats(body)
}

// Prune triggers an administrative publish-and-prune pass.
func (c *Client) Prune(ctx context.Context) (types.PruneResult, error) {
	var res types.PruneResult
	err := c.postJSON(ctx, "/prune", nil, &res)
	return res, err
}

// Health fetches the daemon's health report.
func (c *Client) Health(ctx context.Context) (types.Health, error) {
	body, err := c.get(ctx, "/healthz")
	if err != nil {
		return types.Health{}, err
	}
	defer body.Close()

	var health types.Health
	if err := json.NewDecoder(body).Decode(&health); err != nil {
		return types.Health{}, fmt.Errorf("decode health: %w", err)
	}
	return health, nil
}

// Reload applies new statistics options to the running daemon.
func (c *Client) Reload(ctx context.Context, req types.ReloadRequest) error {
	return c.postJSON(ctx, "/reload", req, nil)
}

func (c *Client) get(ctx context.Context, endpoint string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://tallyd"+endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connect to daemon: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, httpError(resp)
	}
	return resp.Body, nil
}

func (c *Client) postJSON(ctx context.Context, endpoint string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = strings.NewReader(string(data))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://tallyd"+endpoint, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("connect to daemon: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return httpError(resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func httpError(resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	text := strings.TrimSpace(string(msg))
	if text == "" {
		text = resp.Status
	}
	return fmt.Errorf("daemon: %s", text)
}

func parseStats(r io.Reader) ([]types.StatRow, error) {
	cr := csv.NewReader(r)
	cr.Comma = ';'

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse stats: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	rows := make([]types.StatRow, 0, len(records)-1)
	for _, rec := range records[1:] { // skip header
		if len(rec) != 6 {
			return nil, fmt.Errorf("parse stats: row has %d fields, want 6", len(rec))
		}
		value, err := strconv.ParseInt(rec[5], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse stats value %q: %w", rec[5], err)
		}
		rows = append(rows, types.StatRow{
			Kind:     rec[0],
			Source:   rec[1],
			ID:       rec[2],
			Instance: rec[3],
			State:    rec[4],
			Value:    value,
		})
	}
	return rows, nil
}
