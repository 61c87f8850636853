// Package client implements RPC stubs: one for a single storage backend and
// one for the front-end service. The storage stub satisfies store.Storage so
// the layers above never care whether a store is local or remote.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"tribbler/internal/rpc"
	"tribbler/internal/store"
)

// Client is the RPC stub for one storage backend. Transport errors are
// propagated verbatim; the replicated layer decides what to do with them.
type Client struct {
	addr       string
	httpClient *http.Client
}

// New creates a stub for the backend at addr (host:port).
func New(addr string) *Client {
	return &Client{
		addr: addr,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Addr returns the backend address this stub talks to.
func (c *Client) Addr() string { return c.addr }

// post performs one unary call: marshal payload, POST, decode into out.
func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request body: %w", err)
	}

	url := fmt.Sprintf("http://%s%s", c.addr, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("backend %s: HTTP %d", c.addr, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Get fetches a value. The backend sends "" for an absent key; that is
// translated back to store.ErrNotFound here.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	var resp rpc.Value
	if err := c.post(ctx, "/storage/get", rpc.Key{Key: key}, &resp); err != nil {
		return "", err
	}
	if resp.Value == "" {
		return "", store.ErrNotFound
	}
	return resp.Value, nil
}

func (c *Client) Set(ctx context.Context, kv store.KeyValue) (bool, error) {
	var resp rpc.Bool
	if err := c.post(ctx, "/storage/set", rpc.KeyValue{Key: kv.Key, Value: kv.Value}, &resp); err != nil {
		return false, err
	}
	return resp.Value, nil
}

func (c *Client) Keys(ctx context.Context, p store.Pattern) ([]string, error) {
	var resp rpc.StringList
	if err := c.post(ctx, "/storage/keys", rpc.Pattern{Prefix: p.Prefix, Suffix: p.Suffix}, &resp); err != nil {
		return nil, err
	}
	return resp.List, nil
}

func (c *Client) ListGet(ctx context.Context, key string) ([]string, error) {
	var resp rpc.StringList
	if err := c.post(ctx, "/storage/list-get", rpc.Key{Key: key}, &resp); err != nil {
		return nil, err
	}
	return resp.List, nil
}

func (c *Client) ListAppend(ctx context.Context, kv store.KeyValue) (bool, error) {
	var resp rpc.Bool
	if err := c.post(ctx, "/storage/list-append", rpc.KeyValue{Key: kv.Key, Value: kv.Value}, &resp); err != nil {
		return false, err
	}
	return resp.Value, nil
}

func (c *Client) ListRemove(ctx context.Context, kv store.KeyValue) (uint32, error) {
	var resp rpc.ListRemoveResponse
	if err := c.post(ctx, "/storage/list-remove", rpc.KeyValue{Key: kv.Key, Value: kv.Value}, &resp); err != nil {
		return 0, err
	}
	return resp.Removed, nil
}

func (c *Client) ListKeys(ctx context.Context, p store.Pattern) ([]string, error) {
	var resp rpc.StringList
	if err := c.post(ctx, "/storage/list-keys", rpc.Pattern{Prefix: p.Prefix, Suffix: p.Suffix}, &resp); err != nil {
		return nil, err
	}
	return resp.List, nil
}

func (c *Client) Clock(ctx context.Context, atLeast uint64) (uint64, error) {
	var resp rpc.Clock
	if err := c.post(ctx, "/storage/clock", rpc.Clock{Timestamp: atLeast}, &resp); err != nil {
		return 0, err
	}
	return resp.Timestamp, nil
}
