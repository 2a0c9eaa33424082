// Package robots decides whether a URL may be fetched according to the
// origin's robots.txt.
//
// A Cache is safe for concurrent use and is meant to be shared by every
// check in the process. Lookups for the same origin are collapsed into a
// single fetch; lookups for different origins never wait on each other.
// Any failure to obtain robots.txt allows access.
package robots

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/JakeFAU/redprobe/internal/metrics"
)

// Lookup results recorded in metrics.
const (
	resultHit     = "hit"
	resultStored  = "stored"
	resultFetched = "fetched"
	resultFailed  = "failed"
)

const maxRobotsBytes = 1 << 20

// Store persists robots.txt bodies keyed by origin.
type Store interface {
	Read(ctx context.Context, key string) ([]byte, bool, error)
	Write(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Fetcher retrieves a robots.txt document.
type Fetcher interface {
	Fetch(ctx context.Context, robotsURL string) (status int, body []byte, err error)
}

// Config controls cache behaviour.
type Config struct {
	// Agent is the token matched against User-agent groups.
	Agent string
	// UserAgent is sent on robots.txt requests.
	UserAgent string
	// TTL bounds how long a document is reused.
	TTL time.Duration
	// FetchTimeout bounds one shared fetch, including retries.
	FetchTimeout time.Duration
	// MaxRetries is the number of retries for transient failures.
	MaxRetries int
}

// Option customises a Cache.
type Option func(*Cache)

// WithStore adds a persistence layer behind the in-memory map.
func WithStore(store Store) Option {
	return func(c *Cache) { c.store = store }
}

// WithFetcher replaces the default net/http fetcher.
func WithFetcher(f Fetcher) Option {
	return func(c *Cache) {
		if f != nil {
			c.fetcher = f
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithNow overrides the clock used for expiry.
func WithNow(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithBackOff overrides the retry schedule.
func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(c *Cache) {
		if newBackOff != nil {
			c.newBackOff = newBackOff
		}
	}
}

type entry struct {
	data    *robotstxt.RobotsData
	expires time.Time
}

// Cache holds parsed robots.txt documents per origin.
type Cache struct {
	cfg        Config
	store      Store
	fetcher    Fetcher
	logger     *zap.Logger
	now        func() time.Time
	newBackOff func() backoff.BackOff

	mu      sync.Mutex
	entries map[string]entry
	group   singleflight.Group
}

// New builds a Cache.
func New(cfg Config, opts ...Option) *Cache {
	if cfg.Agent == "" {
		cfg.Agent = "RED"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Minute
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	c := &Cache{
		cfg:     cfg,
		logger:  zap.NewNop(),
		now:     time.Now,
		entries: make(map[string]entry),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 250 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			return b
		},
	}
	c.fetcher = &HTTPFetcher{
		Client:    &http.Client{Timeout: cfg.FetchTimeout},
		UserAgent: cfg.UserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Origin returns the cache key for u: lower-cased scheme and host.
func Origin(u *url.URL) string {
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host)
}

// Allowed reports whether the configured agent may fetch u.
func (c *Cache) Allowed(ctx context.Context, u *url.URL) bool {
	if c == nil || u == nil {
		return true
	}
	if u.Path == "/robots.txt" {
		return true
	}
	data := c.lookup(ctx, Origin(u))
	if data == nil {
		return true
	}
	group := data.FindGroup(c.cfg.Agent)
	if group == nil {
		return true
	}
	target := u.EscapedPath()
	if target == "" {
		target = "/"
	}
	if u.RawQuery != "" {
		target += "?" + u.RawQuery
	}
	return group.Test(target)
}

// Forget drops origin from memory and the store.
func (c *Cache) Forget(ctx context.Context, origin string) {
	c.mu.Lock()
	delete(c.entries, origin)
	c.mu.Unlock()
	if c.store == nil {
		return
	}
	if err := c.store.Delete(ctx, origin); err != nil {
		c.logger.Warn("robots store delete failed", zap.String("origin", origin), zap.Error(err))
	}
}

func (c *Cache) cached(origin string) (*robotstxt.RobotsData, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[origin]
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, origin)
		return nil, false
	}
	return e.data, true
}

func (c *Cache) remember(origin string, data *robotstxt.RobotsData) {
	c.mu.Lock()
	c.entries[origin] = entry{data: data, expires: c.now().Add(c.cfg.TTL)}
	c.mu.Unlock()
}

func (c *Cache) lookup(ctx context.Context, origin string) *robotstxt.RobotsData {
	if data, ok := c.cached(origin); ok {
		c.logger.Debug("robots cache hit", zap.String("origin", origin))
		metrics.ObserveRobotsLookup(resultHit)
		return data
	}
	ch := c.group.DoChan(origin, func() (any, error) {
		if data, ok := c.cached(origin); ok {
			metrics.ObserveRobotsLookup(resultHit)
			return data, nil
		}
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.FetchTimeout)
		defer cancel()
		return c.load(shared, origin), nil
	})
	select {
	case res := <-ch:
		data, _ := res.Val.(*robotstxt.RobotsData)
		return data
	case <-ctx.Done():
		return nil
	}
}

func (c *Cache) load(ctx context.Context, origin string) *robotstxt.RobotsData {
	if c.store != nil {
		body, ok, err := c.store.Read(ctx, origin)
		switch {
		case err != nil:
			c.logger.Warn("robots store read failed", zap.String("origin", origin), zap.Error(err))
		case ok:
			if data, perr := robotstxt.FromBytes(body); perr == nil {
				c.logger.Debug("robots loaded from store", zap.String("origin", origin))
				metrics.ObserveRobotsLookup(resultStored)
				c.remember(origin, data)
				return data
			}
		}
	}

	c.logger.Debug("robots cache miss; fetching", zap.String("origin", origin))
	body, err := c.fetch(ctx, origin)
	if err != nil {
		c.logger.Warn("robots fetch failed; allowing access", zap.String("origin", origin), zap.Error(err))
		metrics.ObserveRobotsLookup(resultFailed)
		data, _ := robotstxt.FromBytes(nil)
		c.remember(origin, data)
		return data
	}
	data, err := robotstxt.FromBytes(body)
	if err != nil {
		c.logger.Warn("robots parse failed; allowing access", zap.String("origin", origin), zap.Error(err))
		metrics.ObserveRobotsLookup(resultFailed)
		body = nil
		data, _ = robotstxt.FromBytes(nil)
	} else {
		metrics.ObserveRobotsLookup(resultFetched)
	}
	c.remember(origin, data)
	if c.store != nil {
		if werr := c.store.Write(ctx, origin, body, c.cfg.TTL); werr != nil {
			c.logger.Warn("robots store write failed", zap.String("origin", origin), zap.Error(werr))
		}
	}
	return data
}

// errTransient marks a status worth retrying.
var errTransient = errors.New("transient robots status")

// fetch returns the robots.txt body for origin. Non-2xx answers yield an
// empty body, which allows everything.
func (c *Cache) fetch(ctx context.Context, origin string) ([]byte, error) {
	robotsURL := origin + "/robots.txt"
	var (
		status int
		body   []byte
	)
	op := func() error {
		s, b, err := c.fetcher.Fetch(ctx, robotsURL)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		status, body = s, b
		if s == http.StatusTooManyRequests || s >= 500 {
			return fmt.Errorf("%w: %d", errTransient, s)
		}
		return nil
	}
	b := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), uint64(c.cfg.MaxRetries)), ctx)
	err := backoff.RetryNotify(op, b, func(err error, wait time.Duration) {
		c.logger.Debug("robots fetch retry", zap.String("url", robotsURL), zap.Duration("wait", wait), zap.Error(err))
	})
	if err != nil && !errors.Is(err, errTransient) {
		return nil, fmt.Errorf("fetch robots: %w", err)
	}
	if status < 200 || status > 299 {
		return nil, nil
	}
	return body, nil
}

// HTTPFetcher fetches robots.txt with net/http.
type HTTPFetcher struct {
	Client    *http.Client
	UserAgent string
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, robotsURL string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("new robots request: %w", err)
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("do robots request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read robots body: %w", err)
	}
	return resp.StatusCode, body, nil
}
