package query

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeromicro/go-zero/core/logx"
)

func TestMain(m *testing.M) {
	logx.Disable()
	os.Exit(m.Run())
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestClient(t *testing.T, clock *fakeClock) *Client {
	t.Helper()
	c, err := NewClient(Options{StaleTime: time.Minute, CacheTime: time.Hour, Now: clock.Now})
	require.NoError(t, err)
	return c
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "loading", StatusLoading.String())
	assert.Equal(t, "fetch failed", StatusFetchFailed.String())
	assert.Equal(t, "ready", StatusReady.String())
}

func TestFetchReady(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	q := New(newTestClient(t, clock), "k", func(ctx context.Context) ([]int, error) {
		return []int{1, 2, 3}, nil
	})
	assert.Equal(t, StatusLoading, q.Result().Status)

	res := q.Fetch(context.Background())
	assert.Equal(t, StatusReady, res.Status)
	assert.Equal(t, []int{1, 2, 3}, res.Data)
	assert.NoError(t, res.Err)
	assert.False(t, res.Fetching)
	assert.Equal(t, time.Unix(1000, 0), res.UpdatedAt)
}

func TestFetchFailedWithoutDataRetriesWithBackoff(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	client, err := NewClient(Options{StaleTime: time.Minute, Retries: 2, RetryDelay: time.Second, Now: clock.Now})
	require.NoError(t, err)

	boom := errors.New("boom")
	var calls atomic.Int32
	q := New(client, "k", func(ctx context.Context) ([]int, error) {
		calls.Add(1)
		return nil, boom
	})
	settled := func(n int32) func() bool {
		return func() bool { return calls.Load() == n && !q.Result().Fetching }
	}

	res := q.Fetch(context.Background())
	assert.Equal(t, StatusFetchFailed, res.Status)
	assert.ErrorIs(t, res.Err, boom)
	assert.Nil(t, res.Data)

	q.RefetchIfStale(context.Background())
	assert.False(t, q.Result().Fetching)

	clock.Advance(time.Second)
	q.RefetchIfStale(context.Background())
	require.Eventually(t, settled(2), 2*time.Second, 5*time.Millisecond)

	// The second retry waits twice as long.
	clock.Advance(time.Second)
	q.RefetchIfStale(context.Background())
	assert.False(t, q.Result().Fetching)
	clock.Advance(time.Second)
	q.RefetchIfStale(context.Background())
	require.Eventually(t, settled(3), 2*time.Second, 5*time.Millisecond)

	clock.Advance(time.Hour)
	q.RefetchIfStale(context.Background())
	assert.False(t, q.Result().Fetching)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, StatusFetchFailed, q.Result().Status)
}

func TestRetryRecoversToReady(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	var calls atomic.Int32
	q := New(newTestClient(t, clock), "k", func(ctx context.Context) (string, error) {
		if calls.Add(1) == 1 {
			return "", errors.New("connection reset")
		}
		return "v1", nil
	})

	require.Equal(t, StatusFetchFailed, q.Fetch(context.Background()).Status)

	clock.Advance(time.Second)
	q.RefetchIfStale(context.Background())
	require.Eventually(t, func() bool {
		return q.Result().Status == StatusReady
	}, 2*time.Second, 5*time.Millisecond)

	res := q.Result()
	assert.Equal(t, "v1", res.Data)
	assert.NoError(t, res.Err)
}

func TestRetryDelay(t *testing.T) {
	c, err := NewClient(Options{RetryDelay: 10 * time.Second})
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, c.retryDelay(1))
	assert.Equal(t, 20*time.Second, c.retryDelay(2))
	assert.Equal(t, maxRetryDelay, c.retryDelay(3))
	assert.Equal(t, maxRetryDelay, c.retryDelay(50))
	assert.Equal(t, defaultRetries, c.opts.Retries)

	c, err = NewClient(Options{Retries: -1})
	require.NoError(t, err)
	assert.Equal(t, 0, c.opts.Retries)
}

func TestFailedRefetchKeepsData(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	var fail atomic.Bool
	q := New(newTestClient(t, clock), "k", func(ctx context.Context) (string, error) {
		if fail.Load() {
			return "", errors.New("upstream down")
		}
		return "v1", nil
	})

	require.Equal(t, StatusReady, q.Fetch(context.Background()).Status)

	fail.Store(true)
	res := q.Fetch(context.Background())
	assert.Equal(t, StatusReady, res.Status)
	assert.Equal(t, "v1", res.Data)
	assert.Error(t, res.Err)
}

func TestFetchPanicIsContained(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	q := New(newTestClient(t, clock), "k", func(ctx context.Context) ([]int, error) {
		var m map[string][]int
		m["x"] = nil
		return nil, nil
	})

	res := q.Fetch(context.Background())
	assert.Equal(t, StatusFetchFailed, res.Status)
	assert.ErrorIs(t, res.Err, ErrPanicked)
}

func TestStartFetchesInBackground(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	release := make(chan struct{})
	q := New(newTestClient(t, clock), "k", func(ctx context.Context) (int, error) {
		<-release
		return 42, nil
	})

	q.Start(context.Background())
	res := q.Result()
	assert.Equal(t, StatusLoading, res.Status)
	assert.True(t, res.Fetching)

	// A second start while in flight does not issue another request.
	q.RefetchIfStale(context.Background())

	close(release)
	require.Eventually(t, func() bool {
		return q.Result().Status == StatusReady
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 42, q.Result().Data)
}

func TestCachedDataSharedAcrossQueries(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	client := newTestClient(t, clock)
	var calls atomic.Int32
	fetch := func(ctx context.Context) (string, error) {
		calls.Add(1)
		return "fresh", nil
	}

	require.Equal(t, StatusReady, New(client, "k", fetch).Fetch(context.Background()).Status)

	second := New(client, "k", fetch)
	second.Start(context.Background())
	res := second.Result()
	assert.Equal(t, StatusReady, res.Status)
	assert.Equal(t, "fresh", res.Data)
	assert.False(t, res.Fetching)
	assert.Equal(t, int32(1), calls.Load())

	client.Invalidate("k")
	third := New(client, "k", fetch)
	third.Start(context.Background())
	require.Eventually(t, func() bool {
		return third.Result().Status == StatusReady
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(2), calls.Load())
}

func TestConcurrentQueriesShareOneRequest(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	client := newTestClient(t, clock)

	var calls atomic.Int32
	started := make(chan struct{}, 2)
	release := make(chan struct{})
	fetch := func(ctx context.Context) (string, error) {
		calls.Add(1)
		started <- struct{}{}
		<-release
		return "shared", nil
	}

	a := New(client, "k", fetch)
	b := New(client, "k", fetch)
	a.Refetch(context.Background())
	<-started
	b.Refetch(context.Background())
	// Give b time to join the request a has in flight.
	time.Sleep(50 * time.Millisecond)
	close(release)

	ready := func(q *Query[string]) func() bool {
		return func() bool { return q.Result().Status == StatusReady }
	}
	require.Eventually(t, ready(a), 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, ready(b), 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "shared", a.Result().Data)
	assert.Equal(t, "shared", b.Result().Data)
	assert.Equal(t, a.Result().UpdatedAt, b.Result().UpdatedAt)
}

func TestRefetchWhenStale(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	var calls atomic.Int32
	q := New(newTestClient(t, clock), "k", func(ctx context.Context) (int32, error) {
		return calls.Add(1), nil
	})
	require.Equal(t, int32(1), q.Fetch(context.Background()).Data)

	clock.Advance(30 * time.Second)
	q.RefetchIfStale(context.Background())
	assert.False(t, q.Result().Fetching)

	clock.Advance(31 * time.Second)
	q.RefetchIfStale(context.Background())
	require.Eventually(t, func() bool {
		res := q.Result()
		return !res.Fetching && res.Data == 2
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, clock.Now(), q.Result().UpdatedAt)
}
