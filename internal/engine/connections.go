package engine

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nhath/ezquery/internal/core"
	"github.com/nhath/ezquery/internal/db"
	"github.com/nhath/ezquery/internal/store"
)

// ListDatabases returns every registered connection.
func (e *Engine) ListDatabases(ctx context.Context) ([]core.Connection, error) {
	records, err := e.store.ListConnections(ctx)
	if err != nil {
		return nil, core.WrapExecution(err)
	}
	conns := make([]core.Connection, len(records))
	for i, r := range records {
		conns[i] = r.Connection
	}
	return conns, nil
}

// AddDatabase verifies connectivity and persists a new connection. The
// verified driver is kept in the pool.
func (e *Engine) AddDatabase(ctx context.Context, draft core.Draft) (core.Connection, error) {
	if err := draft.Validate(); err != nil {
		return core.Connection{}, err
	}
	draft = normalizeDraft(draft)

	d, err := e.probe(ctx, draft.Probe())
	if err != nil {
		return core.Connection{}, err
	}

	now := time.Now().UTC()
	rec := store.Record{
		Connection: core.Connection{
			ID:           uuid.NewString(),
			Name:         draft.Name,
			Type:         draft.Type,
			Host:         draft.Host,
			Port:         draft.Port,
			DatabaseName: draft.DatabaseName,
			User:         draft.User,
			Status:       core.StatusConnected,
			Tunnel:       draft.Tunnel,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		Password: draft.Password,
	}
	if err := e.store.SaveConnection(ctx, rec); err != nil {
		d.Close()
		return core.Connection{}, core.WrapExecution(err)
	}

	e.mu.Lock()
	e.pool[rec.ID] = d
	e.mu.Unlock()
	e.logger.Info("connection added", "connection", rec.ID, "name", rec.Name, "type", rec.Type)
	return rec.Connection, nil
}

// UpdateDatabase applies patch. When the target changes the connection is
// re-tested and its status recorded; a failed test does not reject the update.
func (e *Engine) UpdateDatabase(ctx context.Context, id string, patch core.Patch) (core.Connection, error) {
	if err := core.ValidateID(id); err != nil {
		return core.Connection{}, err
	}
	if err := patch.Validate(); err != nil {
		return core.Connection{}, err
	}
	rec, err := e.store.GetConnection(ctx, id)
	if err != nil {
		return core.Connection{}, core.WrapExecution(err)
	}

	rec.Connection = patch.Apply(rec.Connection)
	if patch.Password != nil {
		rec.Password = *patch.Password
	}
	merged := core.Draft{
		Name:         rec.Name,
		Type:         rec.Type,
		Host:         rec.Host,
		Port:         rec.Port,
		DatabaseName: rec.DatabaseName,
		User:         rec.User,
		Password:     rec.Password,
		Tunnel:       rec.Tunnel,
	}
	if err := merged.Validate(); err != nil {
		return core.Connection{}, err
	}
	rec.UpdatedAt = time.Now().UTC()

	if patch.TouchesTarget() {
		e.drop(id)
		if err := e.store.DeleteMetadata(ctx, id); err != nil {
			e.logger.Warn("drop metadata snapshot", "connection", id, "error", err)
		}
		d, err := e.probe(ctx, rec.Probe())
		if err != nil {
			e.logger.Warn("connection re-test failed", "connection", id, "error", err)
			rec.Status = core.StatusFailed
		} else {
			rec.Status = core.StatusConnected
			e.mu.Lock()
			e.pool[id] = d
			e.mu.Unlock()
		}
	}

	if err := e.store.SaveConnection(ctx, rec); err != nil {
		return core.Connection{}, core.WrapExecution(err)
	}
	e.logger.Info("connection updated", "connection", id, "status", rec.Status)
	return rec.Connection, nil
}

// DeleteDatabase removes a connection with its metadata and history.
func (e *Engine) DeleteDatabase(ctx context.Context, id string) error {
	if err := core.ValidateID(id); err != nil {
		return err
	}
	if err := e.CancelQuery(ctx, id); err != nil {
		return err
	}
	e.drop(id)
	if err := e.store.DeleteConnection(ctx, id); err != nil {
		return core.WrapExecution(err)
	}
	e.logger.Info("connection deleted", "connection", id)
	return nil
}

// TestConnection opens and pings a throwaway driver. Nothing is persisted.
func (e *Engine) TestConnection(ctx context.Context, probe core.Probe) (bool, error) {
	if err := probe.Validate(); err != nil {
		return false, err
	}
	d, err := e.probe(ctx, probe)
	if err != nil {
		return false, err
	}
	d.Close()
	return true, nil
}

// probe connects and pings within the test timeout.
func (e *Engine) probe(ctx context.Context, p core.Probe) (db.Driver, error) {
	ctx, cancel := context.WithTimeout(ctx, e.testTimeout)
	defer cancel()

	d, err := e.connect(ctx, p)
	if err != nil {
		return nil, err
	}
	if err := d.Ping(ctx); err != nil {
		d.Close()
		return nil, core.WrapConnectivity(err)
	}
	return d, nil
}

func normalizeDraft(d core.Draft) core.Draft {
	d.Name = strings.TrimSpace(d.Name)
	d.Host = strings.TrimSpace(d.Host)
	d.User = strings.TrimSpace(d.User)
	d.DatabaseName = strings.TrimSpace(d.DatabaseName)
	if d.Type == "" {
		d.Type = core.Postgres
	}
	if d.Tunnel != nil && d.Tunnel.Host == "" {
		d.Tunnel = nil
	}
	return d
}
