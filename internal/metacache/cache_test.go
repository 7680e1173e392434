package metacache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhath/ezquery/internal/backend"
	"github.com/nhath/ezquery/internal/backend/backendtest"
	"github.com/nhath/ezquery/internal/core"
	"github.com/nhath/ezquery/internal/testutil"
)

func newCache(t *testing.T, fake *backendtest.Fake) *Cache {
	t.Helper()
	return New(fake, WithLogger(testutil.NewTestLogger(t)), WithTimeout(5*time.Second))
}

func TestLoadTwiceReturnsIdenticalMetadata(t *testing.T) {
	fake := backendtest.New()
	fake.SetMetadata(backendtest.Schema("a", "users", "orders"))
	c := newCache(t, fake)

	first, err := c.Load(context.Background(), "a")
	require.NoError(t, err)
	second, err := c.Load(context.Background(), "a")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, fake.Calls(backend.CmdGetMetadata))
}

func TestRefreshNeverReusesCache(t *testing.T) {
	fake := backendtest.New()
	fake.SetMetadata(backendtest.Schema("a", "users"))
	c := newCache(t, fake)

	_, err := c.Load(context.Background(), "a")
	require.NoError(t, err)

	fake.SetMetadata(backendtest.Schema("a", "users", "orders"))
	fresh, err := c.Refresh(context.Background(), "a")
	require.NoError(t, err)

	assert.Len(t, fresh.Tables, 2)
	assert.Equal(t, 1, fake.Calls(backend.CmdRefreshMetadata))
	cached, ok := c.Peek("a")
	require.True(t, ok)
	assert.Same(t, fresh, cached)
}

func TestFailedRefreshKeepsPreviousSnapshot(t *testing.T) {
	fake := backendtest.New()
	good := backendtest.Schema("a", "users")
	fake.OnMetadata = func(ctx context.Context, id string, forced bool) (*core.Metadata, error) {
		if forced {
			return nil, core.WrapConnectivity(errors.New("connection refused"))
		}
		return good, nil
	}
	c := newCache(t, fake)

	loaded, err := c.Load(context.Background(), "a")
	require.NoError(t, err)

	_, err = c.Refresh(context.Background(), "a")
	require.Error(t, err)

	st := c.State("a")
	assert.Same(t, loaded, st.Metadata)
	assert.True(t, st.Stale)
	assert.Error(t, st.Err)

	again, err := c.Load(context.Background(), "a")
	require.NoError(t, err)
	assert.Same(t, loaded, again)
}

func TestLoadWaitsForInFlightRefresh(t *testing.T) {
	fake := backendtest.New()
	release := make(chan struct{})
	started := make(chan struct{})
	var extractions atomic.Int32
	fake.OnMetadata = func(ctx context.Context, id string, forced bool) (*core.Metadata, error) {
		extractions.Add(1)
		close(started)
		<-release
		return backendtest.Schema(id, "users"), nil
	}
	c := newCache(t, fake)

	refreshed := make(chan *core.Metadata, 1)
	go func() {
		m, _ := c.Refresh(context.Background(), "a")
		refreshed <- m
	}()
	<-started
	assert.True(t, c.State("a").Loading)

	loaded := make(chan *core.Metadata, 1)
	go func() {
		m, _ := c.Load(context.Background(), "a")
		loaded <- m
	}()

	close(release)
	r := <-refreshed
	l := <-loaded

	assert.Same(t, r, l)
	assert.Equal(t, int32(1), extractions.Load())
}

func TestConcurrentRefreshesShareExtraction(t *testing.T) {
	fake := backendtest.New()
	release := make(chan struct{})
	var extractions atomic.Int32
	fake.OnMetadata = func(ctx context.Context, id string, forced bool) (*core.Metadata, error) {
		extractions.Add(1)
		<-release
		return backendtest.Schema(id, "users"), nil
	}
	c := newCache(t, fake)

	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Refresh(context.Background(), "a")
			assert.NoError(t, err)
		}()
	}
	require.Eventually(t, func() bool { return c.State("a").Loading }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), extractions.Load())
}

func TestForgetPreventsResurrection(t *testing.T) {
	fake := backendtest.New()
	release := make(chan struct{})
	started := make(chan struct{})
	fake.OnMetadata = func(ctx context.Context, id string, forced bool) (*core.Metadata, error) {
		close(started)
		<-release
		return backendtest.Schema(id, "users"), nil
	}
	c := newCache(t, fake)

	done := make(chan struct{})
	go func() {
		_, _ = c.Load(context.Background(), "a")
		close(done)
	}()
	<-started
	c.Forget("a")
	close(release)
	<-done

	_, ok := c.Peek("a")
	assert.False(t, ok)
}

func TestWarmLoadsEveryConnection(t *testing.T) {
	fake := backendtest.New()
	for _, id := range []string{"a", "b", "c"} {
		fake.SetMetadata(backendtest.Schema(id, "t_"+id))
	}
	c := newCache(t, fake)

	require.NoError(t, c.Warm(context.Background(), []string{"a", "b", "c"}))

	for _, id := range []string{"a", "b", "c"} {
		m, ok := c.Peek(id)
		require.True(t, ok, id)
		assert.Equal(t, "t_"+id, m.Tables[0].Name)
	}
}

func TestLoadRejectsEmptyID(t *testing.T) {
	c := newCache(t, backendtest.New())

	_, err := c.Load(context.Background(), "")

	assert.Equal(t, core.KindValidation, core.KindOf(err))
}
