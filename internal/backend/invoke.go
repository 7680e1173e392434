package backend

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nhath/ezquery/internal/core"
)

// Invoker sends one named command with JSON-encodable args and decodes the
// response into out. out may be nil for commands without output.
type Invoker interface {
	Invoke(ctx context.Context, command string, args any, out any) error
}

// Client adapts an Invoker to the typed Backend interface.
type Client struct {
	inv Invoker
}

// NewClient wraps inv.
func NewClient(inv Invoker) *Client {
	return &Client{inv: inv}
}

var _ Backend = (*Client)(nil)

func (c *Client) ListDatabases(ctx context.Context) ([]core.Connection, error) {
	var out []core.Connection
	if err := c.inv.Invoke(ctx, CmdListDatabases, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AddDatabase(ctx context.Context, draft core.Draft) (core.Connection, error) {
	var out core.Connection
	err := c.inv.Invoke(ctx, CmdAddDatabase, draft, &out)
	return out, err
}

func (c *Client) UpdateDatabase(ctx context.Context, id string, patch core.Patch) (core.Connection, error) {
	var out core.Connection
	err := c.inv.Invoke(ctx, CmdUpdateDatabase, UpdateRequest{ID: id, Patch: patch}, &out)
	return out, err
}

func (c *Client) DeleteDatabase(ctx context.Context, id string) error {
	return c.inv.Invoke(ctx, CmdDeleteDatabase, DatabaseRef{DatabaseID: id}, nil)
}

func (c *Client) TestConnection(ctx context.Context, probe core.Probe) (bool, error) {
	var ok bool
	err := c.inv.Invoke(ctx, CmdTestConnection, probe, &ok)
	return ok, err
}

func (c *Client) GetDatabaseMetadata(ctx context.Context, id string) (*core.Metadata, error) {
	var out core.Metadata
	if err := c.inv.Invoke(ctx, CmdGetMetadata, DatabaseRef{DatabaseID: id}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RefreshMetadata(ctx context.Context, id string) (*core.Metadata, error) {
	var out core.Metadata
	if err := c.inv.Invoke(ctx, CmdRefreshMetadata, DatabaseRef{DatabaseID: id}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RunSQLQuery(ctx context.Context, id, sql string) (*core.QueryResult, error) {
	var out core.QueryResult
	if err := c.inv.Invoke(ctx, CmdRunSQLQuery, QueryRequest{DatabaseID: id, SQL: sql}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CancelQuery(ctx context.Context, id string) error {
	return c.inv.Invoke(ctx, CmdCancelQuery, DatabaseRef{DatabaseID: id}, nil)
}

func (c *Client) GenerateSQLFromNL(ctx context.Context, id, prompt string) (string, error) {
	var out string
	err := c.inv.Invoke(ctx, CmdGenerateSQLFromNL, PromptRequest{DatabaseID: id, Prompt: prompt}, &out)
	return out, err
}

func (c *Client) RunNLQuery(ctx context.Context, id, prompt string) (*core.NLQueryResponse, error) {
	var out core.NLQueryResponse
	if err := c.inv.Invoke(ctx, CmdRunNLQuery, PromptRequest{DatabaseID: id, Prompt: prompt}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Dispatch decodes raw JSON args for command and calls the matching Backend
// method. The returned value is the command output, nil for commands
// without one.
func Dispatch(ctx context.Context, b Backend, command string, raw json.RawMessage) (any, error) {
	decode := func(v any) error {
		if len(raw) == 0 {
			return core.Invalid("args", "missing arguments for "+command)
		}
		if err := json.Unmarshal(raw, v); err != nil {
			return core.Invalid("args", fmt.Sprintf("decode %s arguments: %v", command, err))
		}
		return nil
	}

	switch command {
	case CmdListDatabases:
		return b.ListDatabases(ctx)

	case CmdAddDatabase:
		var draft core.Draft
		if err := decode(&draft); err != nil {
			return nil, err
		}
		return b.AddDatabase(ctx, draft)

	case CmdUpdateDatabase:
		var req UpdateRequest
		if err := decode(&req); err != nil {
			return nil, err
		}
		return b.UpdateDatabase(ctx, req.ID, req.Patch)

	case CmdDeleteDatabase:
		var ref DatabaseRef
		if err := decode(&ref); err != nil {
			return nil, err
		}
		return nil, b.DeleteDatabase(ctx, ref.DatabaseID)

	case CmdTestConnection:
		var probe core.Probe
		if err := decode(&probe); err != nil {
			return nil, err
		}
		return b.TestConnection(ctx, probe)

	case CmdGetMetadata, CmdRefreshMetadata:
		var ref DatabaseRef
		if err := decode(&ref); err != nil {
			return nil, err
		}
		if command == CmdRefreshMetadata {
			return b.RefreshMetadata(ctx, ref.DatabaseID)
		}
		return b.GetDatabaseMetadata(ctx, ref.DatabaseID)

	case CmdRunSQLQuery:
		var req QueryRequest
		if err := decode(&req); err != nil {
			return nil, err
		}
		return b.RunSQLQuery(ctx, req.DatabaseID, req.SQL)

	case CmdCancelQuery:
		var ref DatabaseRef
		if err := decode(&ref); err != nil {
			return nil, err
		}
		return nil, b.CancelQuery(ctx, ref.DatabaseID)

	case CmdGenerateSQLFromNL, CmdRunNLQuery:
		var req PromptRequest
		if err := decode(&req); err != nil {
			return nil, err
		}
		if command == CmdRunNLQuery {
			return b.RunNLQuery(ctx, req.DatabaseID, req.Prompt)
		}
		return b.GenerateSQLFromNL(ctx, req.DatabaseID, req.Prompt)
	}

	return nil, core.Invalid("command", "unknown command "+command)
}
