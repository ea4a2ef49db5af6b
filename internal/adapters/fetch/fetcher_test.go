package fetch_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/knit/internal/adapters/cas"
	"go.trai.ch/knit/internal/adapters/fetch"
	"go.trai.ch/knit/internal/core/domain"
	"go.trai.ch/knit/internal/core/ports/mocks"
	"go.trai.ch/zerr"
	"go.uber.org/mock/gomock"
)

// server serves fixed bodies and counts requests per path.
type server struct {
	*httptest.Server
	hits    sync.Map // path -> *atomic.Int32
	handler http.HandlerFunc
}

func newServer(t *testing.T, handler http.HandlerFunc) *server {
	t.Helper()
	s := &server{handler: handler}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n, _ := s.hits.LoadOrStore(r.URL.Path, &atomic.Int32{})
		n.(*atomic.Int32).Add(1)
		s.handler(w, r)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *server) hitCount(path string) int {
	n, ok := s.hits.Load(path)
	if !ok {
		return 0
	}
	return int(n.(*atomic.Int32).Load())
}

func (s *server) id(path string) domain.ModuleID {
	return domain.NewRemoteID(s.URL + path)
}

func quietLogger(t *testing.T) *mocks.MockLogger {
	t.Helper()
	logger := mocks.NewMockLogger(gomock.NewController(t))
	logger.EXPECT().Debug(gomock.Any()).AnyTimes()
	logger.EXPECT().Warn(gomock.Any()).AnyTimes()
	return logger
}

func newFetcher(t *testing.T, store *cas.Store, opts fetch.Options) *fetch.Fetcher {
	t.Helper()
	if opts.RetryInterval == 0 {
		opts.RetryInterval = time.Millisecond
	}
	var f *fetch.Fetcher
	var err error
	if store == nil {
		f, err = fetch.New(nil, quietLogger(t), opts)
	} else {
		f, err = fetch.New(store, quietLogger(t), opts)
	}
	require.NoError(t, err)
	return f
}

func TestFetcher_Local(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.js")
	require.NoError(t, os.WriteFile(path, []byte("export const a = 1;\n"), domain.FilePerm))

	f := newFetcher(t, nil, fetch.Options{})

	src, err := f.Fetch(t.Context(), domain.NewLocalID(path))
	require.NoError(t, err)
	assert.Equal(t, "export const a = 1;\n", string(src))

	_, err = f.Fetch(t.Context(), domain.NewLocalID(filepath.Join(dir, "missing.js")))
	require.ErrorIs(t, err, domain.ErrModuleNotFound)

	_, err = f.Fetch(t.Context(), domain.NewLocalID(dir))
	require.ErrorIs(t, err, domain.ErrReadError)
}

func TestFetcher_Remote_UserAgent(t *testing.T) {
	var agent atomic.Value
	s := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		agent.Store(r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("export default 1;\n"))
	})

	f := newFetcher(t, nil, fetch.Options{UserAgent: "knit-test/1"})
	_, err := f.Fetch(t.Context(), s.id("/x.js"))
	require.NoError(t, err)
	assert.Equal(t, "knit-test/1", agent.Load())
}

func TestFetcher_Remote_OneRetrievalPerIdentity(t *testing.T) {
	release := make(chan struct{})
	s := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		<-release
		_, _ = w.Write([]byte("export const x = 1;\n"))
	})
	f := newFetcher(t, nil, fetch.Options{})

	var wg sync.WaitGroup
	results := make([][]byte, 8)
	for i := range results {
		wg.Go(func() {
			src, err := f.Fetch(t.Context(), s.id("/lib.js"))
			assert.NoError(t, err)
			results[i] = src
		})
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	src, err := f.Fetch(t.Context(), s.id("/lib.js"))
	require.NoError(t, err)

	assert.Equal(t, 1, s.hitCount("/lib.js"))
	for _, r := range results {
		assert.Equal(t, src, r)
	}
}

func TestFetcher_Remote_SharedFetchOutlivesFirstCaller(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	s := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		close(started)
		select {
		case <-release:
			_, _ = w.Write([]byte("export const x = 1;\n"))
		case <-r.Context().Done():
		}
	})
	f := newFetcher(t, nil, fetch.Options{})

	first, cancel := context.WithCancel(t.Context())
	firstErr := make(chan error, 1)
	go func() {
		_, err := f.Fetch(first, s.id("/lib.js"))
		firstErr <- err
	}()
	<-started

	type result struct {
		src []byte
		err error
	}
	second := make(chan result, 1)
	go func() {
		src, err := f.Fetch(t.Context(), s.id("/lib.js"))
		second <- result{src, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	require.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	res := <-second
	require.NoError(t, res.err)
	assert.Equal(t, "export const x = 1;\n", string(res.src))
	assert.Equal(t, 1, s.hitCount("/lib.js"))
}

func TestFetcher_Remote_RetriesAfterAbandonedFetch(t *testing.T) {
	var calls atomic.Int32
	s := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			<-r.Context().Done()
			return
		}
		_, _ = w.Write([]byte("export const x = 2;\n"))
	})
	f := newFetcher(t, nil, fetch.Options{})

	ctx, cancel := context.WithCancel(t.Context())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := f.Fetch(ctx, s.id("/lib.js"))
	require.ErrorIs(t, err, context.Canceled)

	src, err := f.Fetch(t.Context(), s.id("/lib.js"))
	require.NoError(t, err)
	assert.Equal(t, "export const x = 2;\n", string(src))
}

func TestFetcher_Remote_Cache(t *testing.T) {
	s := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("export const x = 1;\n"))
	})
	store, err := cas.NewStore(t.TempDir())
	require.NoError(t, err)

	// A cold run stores the source.
	_, err = newFetcher(t, store, fetch.Options{UseCache: true}).Fetch(t.Context(), s.id("/x.js"))
	require.NoError(t, err)
	entry, err := store.Get(s.URL + "/x.js")
	require.NoError(t, err)
	require.NotNil(t, entry)

	// A warm run in a new process does not touch the network.
	src, err := newFetcher(t, store, fetch.Options{UseCache: true}).Fetch(t.Context(), s.id("/x.js"))
	require.NoError(t, err)
	assert.Equal(t, "export const x = 1;\n", string(src))
	assert.Equal(t, 1, s.hitCount("/x.js"))

	// Without cache reuse the module is downloaded again.
	_, err = newFetcher(t, store, fetch.Options{UseCache: false}).Fetch(t.Context(), s.id("/x.js"))
	require.NoError(t, err)
	assert.Equal(t, 2, s.hitCount("/x.js"))
}

func TestFetcher_Remote_CachePutFailureWarns(t *testing.T) {
	s := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("1"))
	})
	ctrl := gomock.NewController(t)
	store := mocks.NewMockCacheStore(ctrl)
	store.EXPECT().Get(gomock.Any()).Return(nil, nil)
	store.EXPECT().Put(gomock.Any()).Return(domain.ErrCacheWriteFailed)

	logger := mocks.NewMockLogger(ctrl)
	logger.EXPECT().Debug(gomock.Any()).AnyTimes()
	logger.EXPECT().Warn(gomock.Any()).Times(1)

	f, err := fetch.New(store, logger, fetch.Options{UseCache: true})
	require.NoError(t, err)

	src, err := f.Fetch(t.Context(), s.id("/x.js"))
	require.NoError(t, err)
	assert.Equal(t, "1", string(src))
}

func TestFetcher_Remote_Retries(t *testing.T) {
	var calls atomic.Int32
	s := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})
	f := newFetcher(t, nil, fetch.Options{Retries: 3})

	src, err := f.Fetch(t.Context(), s.id("/flaky.js"))
	require.NoError(t, err)
	assert.Equal(t, "ok", string(src))
	assert.Equal(t, 3, s.hitCount("/flaky.js"))
}

func TestFetcher_Remote_Failures(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		retries      int
		wantHits     int
		wantAttempts int
	}{
		{name: "not found is not retried", status: http.StatusNotFound, retries: 3, wantHits: 1, wantAttempts: 1},
		{name: "server error exhausts retries", status: http.StatusBadGateway, retries: 2, wantHits: 3, wantAttempts: 3},
		{name: "rate limit exhausts retries", status: http.StatusTooManyRequests, retries: 1, wantHits: 2, wantAttempts: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			})
			f := newFetcher(t, nil, fetch.Options{Retries: tt.retries})

			_, err := f.Fetch(t.Context(), s.id("/x.js"))
			require.ErrorIs(t, err, domain.ErrFetchError)
			assert.Equal(t, tt.wantHits, s.hitCount("/x.js"))

			var z *zerr.Error
			require.True(t, errors.As(err, &z))
			assert.Equal(t, tt.status, z.Metadata()["status_code"])
			assert.Equal(t, tt.wantAttempts, z.Metadata()["attempts"])
			assert.Equal(t, s.URL+"/x.js", z.Metadata()["url"])
		})
	}
}

func TestFetcher_Remote_Timeout(t *testing.T) {
	s := newServer(t, func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	f := newFetcher(t, nil, fetch.Options{Timeout: 50 * time.Millisecond, Retries: 1})

	_, err := f.Fetch(t.Context(), s.id("/slow.js"))
	require.ErrorIs(t, err, domain.ErrFetchTimeout)
}

func TestFetcher_Remote_Cancelled(t *testing.T) {
	s := newServer(t, func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	f := newFetcher(t, nil, fetch.Options{Timeout: time.Minute})

	ctx, cancel := context.WithCancel(t.Context())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := f.Fetch(ctx, s.id("/slow.js"))
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, domain.ErrFetchTimeout)
}
