package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhath/ezquery/internal/backend"
	"github.com/nhath/ezquery/internal/backend/backendtest"
	"github.com/nhath/ezquery/internal/core"
	"github.com/nhath/ezquery/internal/notify"
	"github.com/nhath/ezquery/internal/testutil"
)

func newRegistry(t *testing.T, fake *backendtest.Fake) (*Registry, *notify.Recorder) {
	t.Helper()
	rec := &notify.Recorder{}
	r := New(fake, WithNotifier(rec), WithLogger(testutil.NewTestLogger(t)))
	_, err := r.List(context.Background())
	require.NoError(t, err)
	return r, rec
}

func TestAddAppendsConfirmedConnection(t *testing.T) {
	fake := backendtest.New(backendtest.Conn("a", "alpha"))
	r, rec := newRegistry(t, fake)

	conn, err := r.Add(context.Background(), core.Draft{
		Name: "beta", Host: "localhost", Port: 5432, DatabaseName: "beta", User: "postgres", Password: "pw",
	})

	require.NoError(t, err)
	assert.Len(t, r.Connections(), 2)
	got, ok := r.Get(conn.ID)
	require.True(t, ok)
	assert.Equal(t, "beta", got.Name)
	last, _ := rec.Last()
	assert.Equal(t, notify.Success, last.Level)
}

func TestAddValidatesLocally(t *testing.T) {
	fake := backendtest.New()
	r, _ := newRegistry(t, fake)

	_, err := r.Add(context.Background(), core.Draft{Name: "x", Host: "h", Port: 0, DatabaseName: "d", User: "u"})

	var ve *core.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, 0, fake.Calls(backend.CmdAddDatabase))
	assert.Empty(t, r.Connections())
}

func TestFailedMutationLeavesListUnchanged(t *testing.T) {
	fake := backendtest.New(backendtest.Conn("a", "alpha"))
	fake.OnAdd = func(context.Context, core.Draft) (core.Connection, error) {
		return core.Connection{}, core.WrapConnectivity(errors.New("password authentication failed"))
	}
	fake.OnDelete = func(context.Context, string) error {
		return core.WrapExecution(errors.New("database is locked"))
	}
	r, rec := newRegistry(t, fake)
	before := r.Connections()

	_, err := r.Add(context.Background(), core.Draft{Name: "b", Host: "h", Port: 5432, DatabaseName: "d", User: "u"})
	assert.Equal(t, core.KindConnectivity, core.KindOf(err))

	err = r.Delete(context.Background(), "a")
	assert.Equal(t, core.KindExecution, core.KindOf(err))

	assert.Equal(t, before, r.Connections())
	for _, n := range rec.Notices() {
		assert.Equal(t, notify.Error, n.Level)
	}
}

func TestUpdateReplacesEntry(t *testing.T) {
	fake := backendtest.New(backendtest.Conn("a", "alpha"))
	r, _ := newRegistry(t, fake)
	host := "db.internal"

	conn, err := r.Update(context.Background(), "a", core.Patch{Host: &host})

	require.NoError(t, err)
	assert.Equal(t, "db.internal", conn.Host)
	got, _ := r.Get("a")
	assert.Equal(t, "db.internal", got.Host)
	assert.Equal(t, "alpha", got.Name)
}

func TestDeleteRemovesEntry(t *testing.T) {
	fake := backendtest.New(backendtest.Conn("a", "alpha"), backendtest.Conn("b", "beta"))
	r, _ := newRegistry(t, fake)

	require.NoError(t, r.Delete(context.Background(), "a"))

	_, ok := r.Get("a")
	assert.False(t, ok)
	assert.Len(t, r.Connections(), 1)
}

func TestTestNeverMutates(t *testing.T) {
	fake := backendtest.New(backendtest.Conn("a", "alpha"))
	fake.OnTest = func(context.Context, core.Probe) (bool, error) { return false, nil }
	r, _ := newRegistry(t, fake)

	ok, err := r.Test(context.Background(), core.Probe{Host: "h", Port: 5432, DatabaseName: "d", User: "u"})

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, r.Connections(), 1)
	assert.Equal(t, 1, fake.Calls(backend.CmdListDatabases))
}
