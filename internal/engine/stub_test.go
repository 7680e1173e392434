package engine

import (
	"context"
	"strings"
	"time"

	"github.com/nhath/ezquery/internal/core"
	"github.com/nhath/ezquery/internal/db"
)

// stubDriver is a db.Driver without a database. When block is set, queries
// starting with blockPrefix signal on it and wait for cancellation. Other
// queries take delay to finish.
type stubDriver struct {
	connectErr  error
	connects    int
	block       chan struct{}
	blockPrefix string
	delay       time.Duration
}

func (s *stubDriver) Connect(ctx context.Context, params db.ConnectParams) error {
	s.connects++
	return s.connectErr
}

func (s *stubDriver) Close() error { return nil }

func (s *stubDriver) Ping(ctx context.Context) error { return nil }

func (s *stubDriver) Type() core.DriverType { return core.Postgres }

func (s *stubDriver) Query(ctx context.Context, query string, maxRows int) (*core.QueryResult, error) {
	if s.block != nil && strings.HasPrefix(query, s.blockPrefix) {
		s.block <- struct{}{}
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return &core.QueryResult{Columns: []string{"?column?"}, Rows: []core.Row{{"?column?": int64(1)}}, Total: 1, SQL: query}, nil
}

func (s *stubDriver) ExtractMetadata(ctx context.Context, id string) (*core.Metadata, error) {
	return &core.Metadata{ConnectionID: id, ExtractedAt: time.Now()}, nil
}

type stubGenerator struct {
	sql     string
	meta    *core.Metadata
	dialect core.DriverType
}

func (g *stubGenerator) Generate(ctx context.Context, prompt string, meta *core.Metadata, dialect core.DriverType) (string, error) {
	g.meta = meta
	g.dialect = dialect
	return g.sql, nil
}

// slowCancel delays cancel_query like a backend behind a network hop.
type slowCancel struct {
	*Engine
	delay time.Duration
}

func (b slowCancel) CancelQuery(ctx context.Context, id string) error {
	time.Sleep(b.delay)
	return b.Engine.CancelQuery(ctx, id)
}
