package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"tribbler/internal/front"
	"tribbler/internal/rpc"
)

// FrontClient is the stub for the front-end service, used by tribctl.
type FrontClient struct {
	addr       string
	httpClient *http.Client
}

func NewFront(addr string) *FrontClient {
	return &FrontClient{
		addr: addr,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// call performs one unary request. Non-200 responses carry a JSON error
// payload whose message is surfaced to the caller.
func (c *FrontClient) call(ctx context.Context, method, path string, payload, out any) error {
	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	url := fmt.Sprintf("http://%s%s", c.addr, path)
	req, err := http.NewRequestWithContext(ctx, method, url, body)
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
		var errBody struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errBody); err == nil && errBody.Error != "" {
			return fmt.Errorf("%s", errBody.Error)
		}
		return fmt.Errorf("front-end %s: HTTP %d", c.addr, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *FrontClient) SignUp(ctx context.Context, user string) error {
	return c.call(ctx, http.MethodPost, "/trib/sign-up", rpc.Username{User: user}, nil)
}

func (c *FrontClient) ListUsers(ctx context.Context) ([]string, error) {
	var resp rpc.StringList
	if err := c.call(ctx, http.MethodGet, "/trib/users", nil, &resp); err != nil {
		return nil, err
	}
	return resp.List, nil
}

func (c *FrontClient) Post(ctx context.Context, who, message string, clock uint64) error {
	return c.call(ctx, http.MethodPost, "/trib/post", rpc.PostRequest{Who: who, Message: message, Clock: clock}, nil)
}

func (c *FrontClient) Tribs(ctx context.Context, user string) ([]*front.Trib, error) {
	var resp rpc.TribList
	if err := c.call(ctx, http.MethodPost, "/trib/tribs", rpc.Username{User: user}, &resp); err != nil {
		return nil, err
	}
	return resp.Tribs, nil
}

func (c *FrontClient) Follow(ctx context.Context, who, whom string) error {
	return c.call(ctx, http.MethodPost, "/trib/follow", rpc.WhoWhom{Who: who, Whom: whom}, nil)
}

func (c *FrontClient) Unfollow(ctx context.Context, who, whom string) error {
	return c.call(ctx, http.MethodPost, "/trib/unfollow", rpc.WhoWhom{Who: who, Whom: whom}, nil)
}

func (c *FrontClient) IsFollowing(ctx context.Context, who, whom string) (bool, error) {
	var resp rpc.Bool
	if err := c.call(ctx, http.MethodPost, "/trib/is-following", rpc.WhoWhom{Who: who, Whom: whom}, &resp); err != nil {
		return false, err
	}
	return resp.Value, nil
}

func (c *FrontClient) Following(ctx context.Context, who string) ([]string, error) {
	var resp rpc.StringList
	if err := c.call(ctx, http.MethodPost, "/trib/following", rpc.Username{User: who}, &resp); err != nil {
		return nil, err
	}
	return resp.List, nil
}

func (c *FrontClient) Home(ctx context.Context, user string) ([]*front.Trib, error) {
	var resp rpc.TribList
	if err := c.call(ctx, http.MethodPost, "/trib/home", rpc.Username{User: user}, &resp); err != nil {
		return nil, err
	}
	return resp.Tribs, nil
}
