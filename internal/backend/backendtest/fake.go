// Package backendtest provides an in-memory Backend for tests.
package backendtest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nhath/ezquery/internal/backend"
	"github.com/nhath/ezquery/internal/core"
)

// Fake is a programmable Backend. Zero-value hooks fall back to simple
// in-memory behavior; set a hook to control a command precisely.
type Fake struct {
	mu     sync.Mutex
	conns  []core.Connection
	meta   map[string]*core.Metadata
	calls  map[string]int
	nextID int

	// Cancels receives the database id of every cancel_query call.
	Cancels chan string

	OnAdd      func(ctx context.Context, draft core.Draft) (core.Connection, error)
	OnUpdate   func(ctx context.Context, id string, patch core.Patch) (core.Connection, error)
	OnDelete   func(ctx context.Context, id string) error
	OnTest     func(ctx context.Context, probe core.Probe) (bool, error)
	OnMetadata func(ctx context.Context, id string, forced bool) (*core.Metadata, error)
	OnRunSQL   func(ctx context.Context, id, sql string) (*core.QueryResult, error)
	OnCancel   func(ctx context.Context, id string) error
	OnGenerate func(ctx context.Context, id, prompt string) (string, error)
	OnRunNL    func(ctx context.Context, id, prompt string) (*core.NLQueryResponse, error)
}

var _ backend.Backend = (*Fake)(nil)

// New returns a Fake seeded with conns.
func New(conns ...core.Connection) *Fake {
	return &Fake{
		conns:   append([]core.Connection(nil), conns...),
		meta:    make(map[string]*core.Metadata),
		calls:   make(map[string]int),
		Cancels: make(chan string, 16),
	}
}

// Conn builds a connected postgres Connection for seeding.
func Conn(id, name string) core.Connection {
	return core.Connection{
		ID:           id,
		Name:         name,
		Type:         core.Postgres,
		Host:         "localhost",
		Port:         5432,
		DatabaseName: name,
		User:         "postgres",
		Status:       core.StatusConnected,
	}
}

// Schema builds a small Metadata with the given table names.
func Schema(id string, tables ...string) *core.Metadata {
	m := &core.Metadata{ConnectionID: id, ExtractedAt: time.Now()}
	for _, name := range tables {
		m.Tables = append(m.Tables, core.Table{
			Schema:    "public",
			Name:      name,
			TableType: "BASE TABLE",
			Columns: []core.Column{
				{Name: "id", DataType: "integer", IsPrimaryKey: true, OrdinalPosition: 1},
			},
			PrimaryKeys: []string{"id"},
		})
	}
	return m
}

// SetMetadata seeds the metadata returned by the default metadata hooks.
func (f *Fake) SetMetadata(m *core.Metadata) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.meta[m.ConnectionID] = m
}

// Calls returns how many times command was invoked.
func (f *Fake) Calls(command string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[command]
}

func (f *Fake) record(command string) {
	f.mu.Lock()
	f.calls[command]++
	f.mu.Unlock()
}

func (f *Fake) ListDatabases(ctx context.Context) ([]core.Connection, error) {
	f.record(backend.CmdListDatabases)
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.Connection(nil), f.conns...), nil
}

func (f *Fake) AddDatabase(ctx context.Context, draft core.Draft) (core.Connection, error) {
	f.record(backend.CmdAddDatabase)
	if f.OnAdd != nil {
		return f.OnAdd(ctx, draft)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	c := core.Connection{
		ID:           fmt.Sprintf("db-%d", f.nextID),
		Name:         draft.Name,
		Type:         draft.Type,
		Host:         draft.Host,
		Port:         draft.Port,
		DatabaseName: draft.DatabaseName,
		User:         draft.User,
		Status:       core.StatusConnected,
	}
	f.conns = append(f.conns, c)
	return c, nil
}

func (f *Fake) UpdateDatabase(ctx context.Context, id string, patch core.Patch) (core.Connection, error) {
	f.record(backend.CmdUpdateDatabase)
	if f.OnUpdate != nil {
		return f.OnUpdate(ctx, id, patch)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range f.conns {
		if c.ID == id {
			f.conns[i] = patch.Apply(c)
			return f.conns[i], nil
		}
	}
	return core.Connection{}, core.ErrNotFound
}

func (f *Fake) DeleteDatabase(ctx context.Context, id string) error {
	f.record(backend.CmdDeleteDatabase)
	if f.OnDelete != nil {
		return f.OnDelete(ctx, id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range f.conns {
		if c.ID == id {
			f.conns = append(f.conns[:i], f.conns[i+1:]...)
			delete(f.meta, id)
			return nil
		}
	}
	return core.ErrNotFound
}

func (f *Fake) TestConnection(ctx context.Context, probe core.Probe) (bool, error) {
	f.record(backend.CmdTestConnection)
	if f.OnTest != nil {
		return f.OnTest(ctx, probe)
	}
	return true, nil
}

func (f *Fake) GetDatabaseMetadata(ctx context.Context, id string) (*core.Metadata, error) {
	f.record(backend.CmdGetMetadata)
	return f.metadata(ctx, id, false)
}

func (f *Fake) RefreshMetadata(ctx context.Context, id string) (*core.Metadata, error) {
	f.record(backend.CmdRefreshMetadata)
	return f.metadata(ctx, id, true)
}

func (f *Fake) metadata(ctx context.Context, id string, forced bool) (*core.Metadata, error) {
	if f.OnMetadata != nil {
		return f.OnMetadata(ctx, id, forced)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.meta[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (f *Fake) RunSQLQuery(ctx context.Context, id, sql string) (*core.QueryResult, error) {
	f.record(backend.CmdRunSQLQuery)
	if f.OnRunSQL != nil {
		return f.OnRunSQL(ctx, id, sql)
	}
	return &core.QueryResult{Columns: []string{"?column?"}, Rows: []core.Row{{"?column?": 1}}, Total: 1, SQL: sql}, nil
}

func (f *Fake) CancelQuery(ctx context.Context, id string) error {
	f.record(backend.CmdCancelQuery)
	select {
	case f.Cancels <- id:
	default:
	}
	if f.OnCancel != nil {
		return f.OnCancel(ctx, id)
	}
	return nil
}

func (f *Fake) GenerateSQLFromNL(ctx context.Context, id, prompt string) (string, error) {
	f.record(backend.CmdGenerateSQLFromNL)
	if f.OnGenerate != nil {
		return f.OnGenerate(ctx, id, prompt)
	}
	return "SELECT 1", nil
}

func (f *Fake) RunNLQuery(ctx context.Context, id, prompt string) (*core.NLQueryResponse, error) {
	f.record(backend.CmdRunNLQuery)
	if f.OnRunNL != nil {
		return f.OnRunNL(ctx, id, prompt)
	}
	return &core.NLQueryResponse{
		GeneratedSQL: "SELECT 1",
		Result:       &core.QueryResult{Columns: []string{"?column?"}, Rows: []core.Row{{"?column?": 1}}, Total: 1, SQL: "SELECT 1"},
	}, nil
}
