package engine

import (
	"context"

	"github.com/nhath/ezquery/internal/core"
)

// GetDatabaseMetadata returns the stored snapshot, extracting on first use.
func (e *Engine) GetDatabaseMetadata(ctx context.Context, id string) (*core.Metadata, error) {
	if err := core.ValidateID(id); err != nil {
		return nil, err
	}
	meta, err := e.store.LoadMetadata(ctx, id)
	if err != nil {
		return nil, core.WrapExecution(err)
	}
	if meta != nil {
		return meta, nil
	}
	return e.extract(ctx, id)
}

// RefreshMetadata re-extracts and overwrites the snapshot.
func (e *Engine) RefreshMetadata(ctx context.Context, id string) (*core.Metadata, error) {
	if err := core.ValidateID(id); err != nil {
		return nil, err
	}
	return e.extract(ctx, id)
}

func (e *Engine) extract(ctx context.Context, id string) (*core.Metadata, error) {
	d, _, err := e.driverFor(ctx, id)
	if err != nil {
		return nil, err
	}

	ctx, done := e.track(ctx, id)
	defer done()

	meta, err := d.ExtractMetadata(ctx, id)
	if err != nil {
		return nil, cancelled(ctx, core.WrapExecution(err))
	}
	meta.ConnectionID = id
	if err := e.store.SaveMetadata(ctx, meta); err != nil {
		return nil, core.WrapExecution(err)
	}
	e.logger.Info("metadata extracted", "connection", id, "tables", len(meta.Tables), "views", len(meta.Views))
	return meta, nil
}
