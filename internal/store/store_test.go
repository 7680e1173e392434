package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhath/ezquery/internal/config"
	"github.com/nhath/ezquery/internal/core"
	"github.com/nhath/ezquery/internal/testutil"
)

func openStore(t *testing.T) (*Store, string) {
	t.Helper()
	cipher, err := config.NewCipherWithKey(make([]byte, 32))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "data", "ezquery.db")
	s, err := Open(context.Background(), path, cipher, testutil.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func record(id, name string) Record {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	return Record{
		Connection: core.Connection{
			ID:           id,
			Name:         name,
			Type:         core.Postgres,
			Host:         "db.internal",
			Port:         5432,
			DatabaseName: "shop",
			User:         "app",
			Status:       core.StatusConnected,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		Password: "s3cret",
	}
}

func TestConnectionRoundTrip(t *testing.T) {
	s, _ := openStore(t)
	ctx := context.Background()
	r := record("c1", "shop")
	r.Tunnel = &core.Tunnel{Host: "bastion", Port: 22, User: "ops", KeyPath: "~/.ssh/id_ed25519"}

	require.NoError(t, s.SaveConnection(ctx, r))

	got, err := s.GetConnection(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, r.Name, got.Name)
	assert.Equal(t, "s3cret", got.Password)
	assert.Equal(t, r.Tunnel, got.Tunnel)
	assert.True(t, r.CreatedAt.Equal(got.CreatedAt))

	var raw string
	require.NoError(t, s.DB().QueryRow(`SELECT password FROM connections WHERE id = 'c1'`).Scan(&raw))
	assert.NotEqual(t, "s3cret", raw)
}

func TestSaveConnectionUpdates(t *testing.T) {
	s, _ := openStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveConnection(ctx, record("c1", "shop")))

	r := record("c1", "shop-renamed")
	r.Port = 6432
	require.NoError(t, s.SaveConnection(ctx, r))
	require.NoError(t, s.UpdateStatus(ctx, "c1", core.StatusFailed))

	list, err := s.ListConnections(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "shop-renamed", list[0].Name)
	assert.Equal(t, 6432, list[0].Port)
	assert.Equal(t, core.StatusFailed, list[0].Status)
}

func TestGetUnknownConnection(t *testing.T) {
	s, _ := openStore(t)

	_, err := s.GetConnection(context.Background(), "nope")
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, s.DeleteConnection(context.Background(), "nope"), core.ErrNotFound)
}

func TestDeleteCascadesMetadata(t *testing.T) {
	s, _ := openStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveConnection(ctx, record("c1", "shop")))
	meta := &core.Metadata{
		ConnectionID: "c1",
		Tables:       []core.Table{{Schema: "public", Name: "users"}},
		ExtractedAt:  time.Now().UTC(),
	}
	require.NoError(t, s.SaveMetadata(ctx, meta))

	got, err := s.LoadMetadata(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "users", got.Tables[0].Name)

	require.NoError(t, s.DeleteConnection(ctx, "c1"))

	got, err = s.LoadMetadata(ctx, "c1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestReopenKeepsData(t *testing.T) {
	s, path := openStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveConnection(ctx, record("c1", "shop")))
	require.NoError(t, s.Close())

	cipher, err := config.NewCipherWithKey(make([]byte, 32))
	require.NoError(t, err)
	s2, err := Open(ctx, path, cipher, nil)
	require.NoError(t, err)
	defer s2.Close()

	list, err := s2.ListConnections(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
