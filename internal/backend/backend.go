// Package backend defines the command boundary between the orchestration
// layer and whatever executes database work.
package backend

import (
	"context"

	"github.com/nhath/ezquery/internal/core"
)

// Command names, as understood by every Backend transport.
const (
	CmdListDatabases     = "list_databases"
	CmdAddDatabase       = "add_database"
	CmdUpdateDatabase    = "update_database"
	CmdDeleteDatabase    = "delete_database"
	CmdTestConnection    = "test_connection"
	CmdGetMetadata       = "get_database_metadata"
	CmdRefreshMetadata   = "refresh_metadata"
	CmdRunSQLQuery       = "run_sql_query"
	CmdCancelQuery       = "cancel_query"
	CmdGenerateSQLFromNL = "generate_sql_from_nl"
	CmdRunNLQuery        = "run_nl_query"
)

// Commands lists every command name in table order.
var Commands = []string{
	CmdListDatabases,
	CmdAddDatabase,
	CmdUpdateDatabase,
	CmdDeleteDatabase,
	CmdTestConnection,
	CmdGetMetadata,
	CmdRefreshMetadata,
	CmdRunSQLQuery,
	CmdCancelQuery,
	CmdGenerateSQLFromNL,
	CmdRunNLQuery,
}

// Backend executes the commands. Every method is a suspension point.
type Backend interface {
	ListDatabases(ctx context.Context) ([]core.Connection, error)
	AddDatabase(ctx context.Context, draft core.Draft) (core.Connection, error)
	UpdateDatabase(ctx context.Context, id string, patch core.Patch) (core.Connection, error)
	DeleteDatabase(ctx context.Context, id string) error
	TestConnection(ctx context.Context, probe core.Probe) (bool, error)
	GetDatabaseMetadata(ctx context.Context, id string) (*core.Metadata, error)
	RefreshMetadata(ctx context.Context, id string) (*core.Metadata, error)
	RunSQLQuery(ctx context.Context, id, sql string) (*core.QueryResult, error)
	CancelQuery(ctx context.Context, id string) error
	GenerateSQLFromNL(ctx context.Context, id, prompt string) (string, error)
	RunNLQuery(ctx context.Context, id, prompt string) (*core.NLQueryResponse, error)
}

// DatabaseRef is the argument of commands addressing one connection.
type DatabaseRef struct {
	DatabaseID string `json:"databaseId"`
}

// QueryRequest is the argument of run_sql_query.
type QueryRequest struct {
	DatabaseID string `json:"databaseId"`
	SQL        string `json:"sql"`
}

// PromptRequest is the argument of generate_sql_from_nl and run_nl_query.
type PromptRequest struct {
	DatabaseID string `json:"databaseId"`
	Prompt     string `json:"prompt"`
}

// UpdateRequest is the argument of update_database: the id plus a flat patch.
type UpdateRequest struct {
	ID string `json:"id"`
	core.Patch
}
