// Package fetch retrieves module sources from the local filesystem and over HTTP.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.trai.ch/knit/internal/build"
	"go.trai.ch/knit/internal/core/domain"
	"go.trai.ch/knit/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultRetryInterval is the first delay between attempts of a remote fetch.
	DefaultRetryInterval = 250 * time.Millisecond

	// DefaultMemoSize is the number of remote sources kept in memory.
	DefaultMemoSize = 512

	// maxSourceSize bounds the body of a remote module.
	maxSourceSize = 64 << 20
)

// Options configures a Fetcher.
type Options struct {
	// UseCache allows remote sources to be served from the on-disk cache.
	// Fetched sources are stored either way.
	UseCache bool
	// Timeout bounds one remote fetch including its retries. Zero disables the deadline.
	Timeout time.Duration
	// Retries is the number of retries after a transient failure.
	Retries int
	// RetryInterval is the initial backoff interval. Zero selects DefaultRetryInterval.
	RetryInterval time.Duration
	// UserAgent overrides the default knit/<version> header.
	UserAgent string
}

// Option configures optional collaborators of a Fetcher.
type Option func(*Fetcher)

// WithClient replaces the HTTP client.
func WithClient(c *http.Client) Option {
	return func(f *Fetcher) {
		f.client = c
	}
}

// WithClock replaces the clock used to timestamp cache entries.
func WithClock(now func() time.Time) Option {
	return func(f *Fetcher) {
		f.now = now
	}
}

// Fetcher implements ports.Fetcher.
type Fetcher struct {
	store  ports.CacheStore
	logger ports.Logger
	opts   Options

	client *http.Client
	now    func() time.Time
	memo   *lru.Cache[domain.ModuleID, []byte]
	group  singleflight.Group

	mu      sync.Mutex
	flights map[string]*flight
}

// flight is the context of a shared remote fetch. It is cancelled once every
// caller waiting on the fetch has returned.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// New creates a Fetcher. A nil store disables the on-disk cache.
func New(store ports.CacheStore, logger ports.Logger, opts Options, options ...Option) (*Fetcher, error) {
	memo, err := lru.New[domain.ModuleID, []byte](DefaultMemoSize)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to create fetch memo")
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = DefaultRetryInterval
	}
	if opts.UserAgent == "" {
		opts.UserAgent = domain.AppName + "/" + build.Version
	}

	f := &Fetcher{
		store:   store,
		logger:  logger,
		opts:    opts,
		client:  http.DefaultClient,
		now:     time.Now,
		memo:    memo,
		flights: make(map[string]*flight),
	}
	for _, o := range options {
		o(f)
	}
	return f, nil
}

// Fetch returns the source of a local or remote module.
func (f *Fetcher) Fetch(ctx context.Context, id domain.ModuleID) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !id.IsRemote() {
		return readLocal(id)
	}

	if src, ok := f.memo.Get(id); ok {
		return src, nil
	}

	key := id.String()
	fl := f.join(ctx, key)
	defer f.leave(key, fl)

	ch := f.group.DoChan(key, func() (any, error) {
		return f.fetchRemote(fl.ctx, id)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

// join registers a caller of the fetch for key. The shared fetch keeps the
// values of the first caller's context but not its cancellation.
func (f *Fetcher) join(ctx context.Context, key string) *flight {
	f.mu.Lock()
	defer f.mu.Unlock()

	fl, ok := f.flights[key]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		fl = &flight{ctx: fctx, cancel: cancel}
		f.flights[key] = fl
	}
	fl.waiters++
	return fl
}

// leave unregisters a caller. The last caller out cancels the fetch and lets
// the next Fetch of key start a new one.
func (f *Fetcher) leave(key string, fl *flight) {
	f.mu.Lock()
	defer f.mu.Unlock()

	fl.waiters--
	if fl.waiters > 0 {
		return
	}
	fl.cancel()
	if f.flights[key] == fl {
		delete(f.flights, key)
	}
	f.group.Forget(key)
}

func readLocal(id domain.ModuleID) ([]byte, error) {
	path := id.String()
	//nolint:gosec // Path is a resolved module identity
	src, err := os.ReadFile(path)
	if err == nil {
		return src, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.NewError(domain.ErrModuleNotFound, err, "path", path)
	}
	return nil, domain.NewError(domain.ErrReadError, err, "path", path)
}

func (f *Fetcher) fetchRemote(ctx context.Context, id domain.ModuleID) ([]byte, error) {
	url := id.String()

	if f.opts.UseCache && f.store != nil {
		entry, err := f.store.Get(url)
		if err != nil {
			f.logger.Warn(fmt.Sprintf("ignoring unreadable cache entry for %s: %v", url, err))
		} else if entry != nil {
			f.logger.Debug("cache hit " + url)
			f.memo.Add(id, entry.Source)
			return entry.Source, nil
		}
	}

	src, err := f.download(ctx, url)
	if err != nil {
		return nil, err
	}
	f.memo.Add(id, src)

	if f.store != nil {
		if err := f.store.Put(domain.NewCacheEntry(url, src, f.now())); err != nil {
			f.logger.Warn(fmt.Sprintf("failed to cache %s: %v", url, err))
		}
	}
	return src, nil
}

// download performs the GET with retries. Transport errors, 429 and 5xx are
// retried; any other failure is returned at once.
func (f *Fetcher) download(parent context.Context, url string) ([]byte, error) {
	ctx := parent
	if f.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, f.opts.Timeout)
		defer cancel()
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.opts.RetryInterval
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(max(f.opts.Retries, 0))), ctx)

	attempts := 0
	var src []byte
	err := backoff.RetryNotify(func() error {
		attempts++
		var err error
		src, err = f.get(ctx, url)
		return err
	}, policy, func(err error, next time.Duration) {
		f.logger.Debug(fmt.Sprintf("retrying %s in %s: %v", url, next, err))
	})
	if err == nil {
		f.logger.Debug(fmt.Sprintf("fetched %s (%d bytes)", url, len(src)))
		return src, nil
	}

	switch {
	case parent.Err() != nil:
		return nil, parent.Err()
	case ctx.Err() != nil:
		return nil, domain.NewError(domain.ErrFetchTimeout, err, "url", url, "timeout", f.opts.Timeout.String())
	case errors.Is(err, domain.ErrFetchError):
		return nil, zerr.With(err, "attempts", attempts)
	default:
		return nil, domain.NewError(domain.ErrFetchError, err, "url", url, "attempts", attempts)
	}
}

// get performs one attempt. Errors wrapped in backoff.Permanent are not retried.
func (f *Fetcher) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		statusErr := domain.NewError(domain.ErrFetchError, nil, "url", url, "status_code", resp.StatusCode)
		if transientStatus(resp.StatusCode) {
			return nil, statusErr
		}
		return nil, backoff.Permanent(statusErr)
	}

	src, err := io.ReadAll(io.LimitReader(resp.Body, maxSourceSize+1))
	if err != nil {
		return nil, err
	}
	if len(src) > maxSourceSize {
		return nil, backoff.Permanent(domain.NewError(domain.ErrFetchError, nil, "url", url, "limit", maxSourceSize))
	}
	return src, nil
}

func transientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
