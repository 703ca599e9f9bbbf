package query

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zeromicro/go-zero/core/collection"
	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/syncx"
	"github.com/zeromicro/go-zero/core/threading"
)

// Status is the coarse state of a query. Failures are not classified further.
type Status int

const (
	StatusLoading Status = iota
	StatusFetchFailed
	StatusReady
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusFetchFailed:
		return "fetch failed"
	case StatusReady:
		return "ready"
	default:
		return "unknown"
	}
}

const (
	defaultStaleTime  = 5 * time.Minute
	defaultCacheTime  = 30 * time.Minute
	defaultCacheLimit = 16
	defaultRetries    = 3
	defaultRetryDelay = time.Second
	maxRetryDelay     = 30 * time.Second
)

// ErrPanicked is returned when a fetch function panics.
var ErrPanicked = errors.New("fetch panicked")

// Options configures a Client.
type Options struct {
	// StaleTime is how old data may get before a background refetch is issued.
	StaleTime time.Duration
	// CacheTime is how long fetched data is retained for new queries.
	CacheTime time.Duration
	// CacheLimit caps the number of retained keys.
	CacheLimit int
	// Retries is how many times a query that failed without data is tried
	// again. Zero means the default; a negative value disables retries.
	Retries int
	// RetryDelay is the wait before the first retry. It doubles with every
	// further failure, up to 30s.
	RetryDelay time.Duration
	// Now overrides the clock.
	Now func() time.Time
}

// Client holds the cache and the in-flight requests shared by every query.
type Client struct {
	cache  *collection.Cache
	flight syncx.SingleFlight
	opts   Options
}

type entry struct {
	data any
	at   time.Time
}

func NewClient(opts Options) (*Client, error) {
	if opts.StaleTime <= 0 {
		opts.StaleTime = defaultStaleTime
	}
	if opts.CacheTime <= 0 {
		opts.CacheTime = defaultCacheTime
	}
	if opts.CacheLimit <= 0 {
		opts.CacheLimit = defaultCacheLimit
	}
	switch {
	case opts.Retries == 0:
		opts.Retries = defaultRetries
	case opts.Retries < 0:
		opts.Retries = 0
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = defaultRetryDelay
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	cache, err := collection.NewCache(opts.CacheTime, collection.WithLimit(opts.CacheLimit))
	if err != nil {
		return nil, fmt.Errorf("create query cache: %w", err)
	}
	return &Client{
		cache:  cache,
		flight: syncx.NewSingleFlight(),
		opts:   opts,
	}, nil
}

// fetch runs fn for key, joining a request already in flight for the same key.
func (c *Client) fetch(key string, fn func() (any, error)) (entry, error) {
	v, err := c.flight.Do(key, func() (any, error) {
		data, err := fn()
		if err != nil {
			return nil, err
		}
		e := entry{data: data, at: c.opts.Now()}
		c.cache.Set(key, e)
		return e, nil
	})
	if err != nil {
		return entry{}, err
	}
	return v.(entry), nil
}

func (c *Client) cached(key string) (entry, bool) {
	v, ok := c.cache.Get(key)
	if !ok {
		return entry{}, false
	}
	e, ok := v.(entry)
	return e, ok
}

// retryDelay returns the backoff after the given number of consecutive failures.
func (c *Client) retryDelay(failures int) time.Duration {
	d := c.opts.RetryDelay
	for i := 1; i < failures && d < maxRetryDelay; i++ {
		d *= 2
	}
	return min(d, maxRetryDelay)
}

// Invalidate drops the retained data for key.
func (c *Client) Invalidate(key string) {
	c.cache.Del(key)
}

// FetchFunc performs the actual request.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Result is a snapshot of a query.
type Result[T any] struct {
	Status    Status
	Data      T
	Err       error
	UpdatedAt time.Time
	// Fetching is set while a request is outstanding, including background
	// refetches of data that is already Ready.
	Fetching bool
}

// Query tracks the state of one keyed request. Data that is Ready stays
// visible while a refetch runs and survives a failed refetch; only a failure
// with nothing to show is reported as StatusFetchFailed.
type Query[T any] struct {
	client *Client
	key    string
	fetchF FetchFunc[T]

	mu          sync.RWMutex
	result      Result[T]
	lastAttempt time.Time
	// failures counts consecutive failed fetches.
	failures int
}

func New[T any](client *Client, key string, fetch FetchFunc[T]) *Query[T] {
	return &Query[T]{
		client: client,
		key:    key,
		fetchF: fetch,
		result: Result[T]{Status: StatusLoading},
	}
}

func (q *Query[T]) Key() string {
	return q.key
}

// Result returns the current snapshot. Data is replaced by reference on each
// successful fetch and never modified in place.
func (q *Query[T]) Result() Result[T] {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.result
}

// Start serves retained data if there is any and issues a fetch in the
// background when there is none or it has gone stale.
func (q *Query[T]) Start(ctx context.Context) {
	if e, ok := q.client.cached(q.key); ok {
		if data, ok := e.data.(T); ok {
			q.mu.Lock()
			q.result = Result[T]{Status: StatusReady, Data: data, UpdatedAt: e.at}
			q.mu.Unlock()
			logx.WithContext(ctx).Infof("query %s: served from cache, fetched at %s", q.key, e.at.Format(time.RFC3339))
		}
	}
	q.RefetchIfStale(ctx)
}

// RefetchIfStale issues a background refetch when the data is older than the
// stale time. A query that failed without data is retried with backoff until
// the client's retries are used up.
func (q *Query[T]) RefetchIfStale(ctx context.Context) {
	q.mu.RLock()
	res, last, failures := q.result, q.lastAttempt, q.failures
	q.mu.RUnlock()

	switch {
	case res.Fetching:
		return
	case res.Status == StatusFetchFailed:
		if failures <= q.client.opts.Retries &&
			q.client.opts.Now().Sub(last) >= q.client.retryDelay(failures) {
			q.Refetch(ctx)
		}
		return
	case res.Status == StatusLoading && last.IsZero():
		q.Refetch(ctx)
		return
	}

	ref := res.UpdatedAt
	if last.After(ref) {
		ref = last
	}
	if q.client.opts.Now().Sub(ref) >= q.client.opts.StaleTime {
		q.Refetch(ctx)
	}
}

// Refetch issues a background fetch unless one is already outstanding.
func (q *Query[T]) Refetch(ctx context.Context) {
	q.mu.Lock()
	if q.result.Fetching {
		q.mu.Unlock()
		return
	}
	q.result.Fetching = true
	q.lastAttempt = q.client.opts.Now()
	q.mu.Unlock()

	threading.GoSafe(func() {
		q.run(ctx)
	})
}

// Fetch runs a fetch synchronously and returns the resulting snapshot.
func (q *Query[T]) Fetch(ctx context.Context) Result[T] {
	q.mu.Lock()
	q.result.Fetching = true
	q.lastAttempt = q.client.opts.Now()
	q.mu.Unlock()

	q.run(ctx)
	return q.Result()
}

func (q *Query[T]) run(ctx context.Context) {
	start := time.Now()
	e, err := q.client.fetch(q.key, func() (data any, err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("%w: %v", ErrPanicked, p)
			}
		}()
		return q.fetchF(ctx)
	})

	logger := logx.WithContext(ctx).WithDuration(time.Since(start))
	if err != nil {
		logger.Errorf("query %s: %v", q.key, err)
	} else {
		logger.Infof("query %s: ok", q.key)
	}
	q.apply(e, err)
}

func (q *Query[T]) apply(e entry, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.result.Fetching = false
	if err != nil {
		q.failures++
		q.result.Err = err
		if q.result.Status != StatusReady {
			q.result.Status = StatusFetchFailed
		}
		return
	}

	data, ok := e.data.(T)
	if !ok {
		q.failures++
		q.result.Err = fmt.Errorf("query %s: cached %T is not %T", q.key, e.data, data)
		if q.result.Status != StatusReady {
			q.result.Status = StatusFetchFailed
		}
		return
	}
	q.failures = 0
	q.result = Result[T]{Status: StatusReady, Data: data, UpdatedAt: e.at}
}
