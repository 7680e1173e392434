package engine

import (
	"context"
	"errors"
	"time"

	"github.com/nhath/ezquery/internal/core"
	"github.com/nhath/ezquery/internal/history"
	"github.com/nhath/ezquery/internal/sqlguard"
)

var errNoGenerator = errors.New("natural language queries are not configured")

// RunSQLQuery runs a script statement by statement and returns the last
// result. DDL is rejected and SELECTs without a limit receive one.
func (e *Engine) RunSQLQuery(ctx context.Context, id, sql string) (*core.QueryResult, error) {
	if err := core.ValidateID(id); err != nil {
		return nil, err
	}
	return e.run(ctx, id, sql, history.KindSQL, "")
}

// GenerateSQLFromNL asks the generator for SQL over the connection's schema.
func (e *Engine) GenerateSQLFromNL(ctx context.Context, id, prompt string) (string, error) {
	if err := core.ValidateID(id); err != nil {
		return "", err
	}
	if err := core.ValidatePrompt(prompt); err != nil {
		return "", err
	}
	if e.generator == nil {
		return "", core.WrapExecution(errNoGenerator)
	}

	meta, err := e.GetDatabaseMetadata(ctx, id)
	if err != nil {
		return "", err
	}
	rec, err := e.store.GetConnection(ctx, id)
	if err != nil {
		return "", core.WrapExecution(err)
	}

	ctx, done := e.track(ctx, id)
	defer done()
	sql, err := e.generator.Generate(ctx, prompt, meta, rec.Type)
	if err != nil {
		return "", cancelled(ctx, core.WrapExecution(err))
	}
	e.logger.Info("sql generated", "connection", id)
	return sql, nil
}

// RunNLQuery generates SQL for prompt and runs it.
func (e *Engine) RunNLQuery(ctx context.Context, id, prompt string) (*core.NLQueryResponse, error) {
	sql, err := e.GenerateSQLFromNL(ctx, id, prompt)
	if err != nil {
		return nil, err
	}
	res, err := e.run(ctx, id, sql, history.KindNaturalLanguage, prompt)
	if err != nil {
		return nil, err
	}
	return &core.NLQueryResponse{GeneratedSQL: sql, Result: res}, nil
}

func (e *Engine) run(ctx context.Context, id, script string, kind history.Kind, prompt string) (*core.QueryResult, error) {
	plan, err := sqlguard.Prepare(script, e.rowLimit)
	if err != nil {
		return nil, err
	}
	d, _, err := e.driverFor(ctx, id)
	if err != nil {
		return nil, err
	}

	ctx, done := e.track(ctx, id)
	defer done()

	start := time.Now()
	var res *core.QueryResult
	for i, stmt := range plan.Statements {
		res, err = d.Query(ctx, stmt, e.rowLimit)
		if err != nil {
			err = cancelled(ctx, core.WrapExecution(err))
			e.record(id, kind, script, prompt, start, 0, err)
			return nil, err
		}
		if plan.Limited[i] && res.Total >= e.rowLimit {
			res.Truncated = true
		}
	}
	res.ExecTimeMs = time.Since(start).Milliseconds()

	e.record(id, kind, script, prompt, start, res.Total, nil)
	e.logger.Debug("query finished", "connection", id, "statements", len(plan.Statements), "rows", res.Total, "ms", res.ExecTimeMs)
	return res, nil
}

// record writes a history entry. History failures never fail the query.
func (e *Engine) record(id string, kind history.Kind, sql, prompt string, start time.Time, rows int, runErr error) {
	entry := &history.Entry{
		ConnectionID: id,
		Kind:         kind,
		SQL:          sql,
		Prompt:       prompt,
		ExecutedAt:   start,
		DurationMs:   time.Since(start).Milliseconds(),
		RowCount:     rows,
		Status:       history.StatusSuccess,
	}
	if runErr != nil {
		entry.Status = history.StatusError
		entry.ErrorMessage = core.Message(runErr)
	}
	// The caller's context may already be cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.history.Add(ctx, entry); err != nil {
		e.logger.Warn("record history", "connection", id, "error", err)
	}
}
