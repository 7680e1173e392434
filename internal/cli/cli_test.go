package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhath/ezquery/internal/backend"
	"github.com/nhath/ezquery/internal/backend/backendtest"
	"github.com/nhath/ezquery/internal/core"
	"github.com/nhath/ezquery/internal/history"
	"github.com/nhath/ezquery/internal/registry"
	"github.com/nhath/ezquery/internal/rpc"
	"github.com/nhath/ezquery/internal/testutil"
)

func TestNewRootCmd(t *testing.T) {
	cmd := NewRootCmd()

	assert.Equal(t, "ezquery", cmd.Use)
	for _, flag := range []string{"config", "remote", "debug"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), "flag %q should exist", flag)
	}

	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"serve", "conn", "exec", "history"} {
		assert.True(t, names[want], "subcommand %q should exist", want)
	}
}

func TestNewConnAddCommand(t *testing.T) {
	cmd := newConnAddCmd(&options{})

	assert.NotEmpty(t, cmd.Example)
	for _, flag := range []string{"dsn", "ssh-host", "ssh-port", "ssh-user", "ssh-key"} {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q should exist", flag)
	}
}

func TestTunnelFlags(t *testing.T) {
	assert.Nil(t, (&tunnelFlags{}).tunnel())

	f := tunnelFlags{host: "bastion", port: 22, user: "ops"}
	assert.Equal(t, &core.Tunnel{Host: "bastion", Port: 22, User: "ops"}, f.tunnel())
}

func TestResolveConnection(t *testing.T) {
	fake := backendtest.New(backendtest.Conn("id-1", "alpha"), backendtest.Conn("alpha", "beta"))
	reg := registry.New(fake, registry.WithLogger(testutil.NewTestLogger(t)))
	ctx := context.Background()

	c, err := resolveConnection(ctx, reg, "alpha")
	require.NoError(t, err)
	assert.Equal(t, "beta", c.Name, "an exact id wins over a name")

	c, err = resolveConnection(ctx, reg, "id-1")
	require.NoError(t, err)
	assert.Equal(t, "alpha", c.Name)

	_, err = resolveConnection(ctx, reg, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestRenderResult(t *testing.T) {
	var buf bytes.Buffer
	renderResult(&buf, &core.QueryResult{
		Columns:    []string{"id", "name"},
		Rows:       []core.Row{{"id": int64(1), "name": nil}},
		Total:      1,
		ExecTimeMs: 3,
		Truncated:  true,
	})

	out := buf.String()
	assert.Contains(t, out, "name")
	assert.Contains(t, out, "NULL")
	assert.Contains(t, out, "1 rows (3 ms), truncated")
}

func TestRenderHistoryEmpty(t *testing.T) {
	var buf bytes.Buffer
	renderHistory(&buf, []history.Entry{}, 0, false)
	assert.Contains(t, buf.String(), "No history")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}

// runRemote executes args against a Fake served over HTTP
func runRemote(t *testing.T, fake *backendtest.Fake, args ...string) (string, error) {
	t.Helper()
	srv := httptest.NewServer(rpc.NewServer(fake, testutil.NewTestLogger(t)).Routes())
	t.Cleanup(srv.Close)

	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", cfgPath, "--remote", srv.URL}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestConnListRemote(t *testing.T) {
	fake := backendtest.New(backendtest.Conn("a", "alpha"), backendtest.Conn("b", "beta"))

	out, err := runRemote(t, fake, "conn", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "alpha")
	assert.Contains(t, out, "beta")
}

func TestExecRemote(t *testing.T) {
	fake := backendtest.New(backendtest.Conn("a", "alpha"))

	out, err := runRemote(t, fake, "exec", "alpha", "SELECT 1")
	require.NoError(t, err)
	assert.Contains(t, out, "1 rows")
	assert.Equal(t, 1, fake.Calls(backend.CmdRunSQLQuery))
}

func TestHistoryNeedsLocalBackend(t *testing.T) {
	fake := backendtest.New(backendtest.Conn("a", "alpha"))

	_, err := runRemote(t, fake, "history", "alpha")
	assert.ErrorIs(t, err, errRemoteHistory)
}

func TestServeNeedsLocalBackend(t *testing.T) {
	_, err := runRemote(t, backendtest.New(), "serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "local backend")
}
