package rpc

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhath/ezquery/internal/backend"
	"github.com/nhath/ezquery/internal/backend/backendtest"
	"github.com/nhath/ezquery/internal/core"
	"github.com/nhath/ezquery/internal/testutil"
)

func serve(t *testing.T, fake *backendtest.Fake) *backend.Client {
	t.Helper()
	srv := httptest.NewServer(NewServer(fake, testutil.NewTestLogger(t)).Routes())
	t.Cleanup(srv.Close)
	return NewBackend(srv.URL, srv.Client())
}

func TestRoundTrip(t *testing.T) {
	fake := backendtest.New(backendtest.Conn("a", "alpha"))
	fake.SetMetadata(backendtest.Schema("a", "users"))
	fake.OnRunNL = func(ctx context.Context, id, prompt string) (*core.NLQueryResponse, error) {
		return &core.NLQueryResponse{
			GeneratedSQL: "SELECT * FROM users LIMIT 100",
			Result:       &core.QueryResult{Columns: []string{"id"}, Rows: []core.Row{{"id": float64(1)}}, Total: 1},
		}, nil
	}
	b := serve(t, fake)
	ctx := context.Background()

	conns, err := b.ListDatabases(ctx)
	require.NoError(t, err)
	require.Len(t, conns, 1)
	assert.Equal(t, "alpha", conns[0].Name)

	meta, err := b.GetDatabaseMetadata(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "users", meta.Tables[0].Name)

	resp, err := b.RunNLQuery(ctx, "a", "列出所有用户")
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM users LIMIT 100", resp.GeneratedSQL)
	assert.Equal(t, float64(1), resp.Result.Rows[0]["id"])

	require.NoError(t, b.CancelQuery(ctx, "a"))
	assert.Equal(t, "a", <-fake.Cancels)
}

func TestErrorKindsSurvive(t *testing.T) {
	fake := backendtest.New(backendtest.Conn("a", "alpha"))
	fake.OnRunSQL = func(ctx context.Context, id, sql string) (*core.QueryResult, error) {
		return nil, core.WrapExecution(errors.New(`syntax error at or near "SELEC"`))
	}
	fake.OnTest = func(ctx context.Context, probe core.Probe) (bool, error) {
		return false, core.WrapConnectivity(errors.New("connection refused"))
	}
	fake.OnDelete = func(ctx context.Context, id string) error {
		return core.Invalid("id", "connection id is required")
	}
	fake.OnGenerate = func(ctx context.Context, id, prompt string) (string, error) {
		return "", core.ErrNotFound
	}
	b := serve(t, fake)
	ctx := context.Background()

	_, err := b.RunSQLQuery(ctx, "a", "SELEC 1")
	assert.Equal(t, core.KindExecution, core.KindOf(err))
	assert.Equal(t, `syntax error at or near "SELEC"`, core.Message(err))

	ok, err := b.TestConnection(ctx, core.Probe{Host: "h", Port: 1, DatabaseName: "d", User: "u"})
	assert.False(t, ok)
	assert.Equal(t, core.KindConnectivity, core.KindOf(err))

	err = b.DeleteDatabase(ctx, "")
	var ve *core.ValidationError
	assert.ErrorAs(t, err, &ve)

	_, err = b.GenerateSQLFromNL(ctx, "zzz", "x")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestUnknownCommand(t *testing.T) {
	srv := httptest.NewServer(NewServer(backendtest.New(), nil).Routes())
	defer srv.Close()

	err := NewClient(srv.URL, nil).Invoke(context.Background(), "drop_everything", nil, nil)

	assert.Equal(t, core.KindValidation, core.KindOf(err))
}

func TestHealthz(t *testing.T) {
	srv := httptest.NewServer(NewServer(backendtest.New(), nil).Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUnreachableServer(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewBackend(url, nil).ListDatabases(context.Background())

	assert.Equal(t, core.KindConnectivity, core.KindOf(err))
}
