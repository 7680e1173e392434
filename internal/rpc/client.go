package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/nhath/ezquery/internal/backend"
	"github.com/nhath/ezquery/internal/core"
)

// Client invokes commands on a remote Server.
type Client struct {
	baseURL string
	http    *http.Client
}

var _ backend.Invoker = (*Client)(nil)

// NewClient targets baseURL. A nil httpClient uses http.DefaultClient.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// Invoke sends command and decodes the data of the envelope into out.
// Remote errors are rebuilt with their original kind.
func (c *Client) Invoke(ctx context.Context, command string, args any, out any) error {
	var body io.Reader
	if args != nil {
		b, err := json.Marshal(args)
		if err != nil {
			return core.Invalid("args", err.Error())
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/invoke/"+url.PathEscape(command), body)
	if err != nil {
		return core.WrapConnectivity(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return core.WrapConnectivity(fmt.Errorf("ezquery server: %w", err))
	}
	defer resp.Body.Close()

	var env Envelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes<<4)).Decode(&env); err != nil {
		return core.WrapConnectivity(fmt.Errorf("ezquery server: %s: %w", resp.Status, err))
	}
	if env.Error != nil {
		return core.FromKind(env.Error.Kind, env.Error.Message)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return core.WrapExecution(fmt.Errorf("decode %s response: %w", command, err))
	}
	return nil
}

// NewBackend returns a typed Backend talking to baseURL.
func NewBackend(baseURL string, httpClient *http.Client) *backend.Client {
	return backend.NewClient(NewClient(baseURL, httpClient))
}
