package app_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/knit/internal/adapters/cas"
	"go.trai.ch/knit/internal/adapters/telemetry"
	"go.trai.ch/knit/internal/app"
	"go.trai.ch/knit/internal/core/domain"
	"go.trai.ch/knit/internal/core/ports"
	"go.trai.ch/knit/internal/core/ports/mocks"
	"go.trai.ch/knit/internal/engine/emitter"
	"go.trai.ch/knit/internal/engine/parser"
	"go.trai.ch/knit/internal/engine/resolver"
	"go.uber.org/mock/gomock"
)

var project = map[string]string{
	"e.js": "import a from './a.js';\nimport { b } from './b.js';\nconsole.log(a, b);\n",
	"a.js": "import { c } from './c.js';\nexport default c + 1;\n",
	"b.js": "import { c } from './c.js';\nexport const b = c;\n",
	"c.js": "export const c = 1;\n",
}

type fixture struct {
	app       *app.App
	dir       string
	config    *domain.Config
	optimizer *mocks.MockOptimizer
	stdout    *bytes.Buffer
	// builds counts the bundles written.
	builds *atomic.Int32
}

func newFixture(t *testing.T, files map[string]string, store ports.CacheStore) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	dir := t.TempDir()
	writeFiles(t, dir, files)

	cfg := domain.DefaultConfig(dir)
	cfg.CacheEnabled = store != nil

	opt := mocks.NewMockOptimizer(ctrl)
	builds := &atomic.Int32{}
	log := mocks.NewMockLogger(ctrl)
	log.EXPECT().Debug(gomock.Any()).AnyTimes()
	log.EXPECT().Warn(gomock.Any()).AnyTimes()
	log.EXPECT().Error(gomock.Any()).AnyTimes()
	log.EXPECT().Info(gomock.Any()).Do(func(msg string) {
		if strings.HasPrefix(msg, "wrote ") {
			builds.Add(1)
		}
	}).AnyTimes()

	stdout := &bytes.Buffer{}
	a := app.New(cfg, resolver.New(), parser.New(), emitter.New(), store, opt, telemetry.NewNoOpTracer(), log).
		WithWorkingDir(dir).
		WithStdout(stdout)

	return &fixture{app: a, dir: dir, config: cfg, optimizer: opt, stdout: stdout, builds: builds}
}

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, src := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), domain.DirPerm))
		require.NoError(t, os.WriteFile(path, []byte(src), domain.FilePerm))
	}
}

func boolPtr(v bool) *bool {
	return &v
}

func TestApp_Build(t *testing.T) {
	f := newFixture(t, project, nil)

	res, err := f.app.Build(t.Context(), "e.js", app.BuildOptions{})
	require.NoError(t, err)

	want := filepath.Join(f.dir, "e.bundle.js")
	assert.Equal(t, want, res.Output)
	assert.Equal(t, 4, res.Modules)

	data, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.Len(t, data, res.Bytes)

	out := string(data)
	c := strings.Index(out, "// c.js\n")
	a := strings.Index(out, "// a.js\n")
	b := strings.Index(out, "// b.js\n")
	e := strings.Index(out, "// e.js\n")
	require.NotEqual(t, -1, c)
	assert.Less(t, c, a)
	assert.Less(t, a, b)
	assert.Less(t, b, e)
}

func TestApp_Build_Deterministic(t *testing.T) {
	f := newFixture(t, project, nil)

	first, err := f.app.Build(t.Context(), "e.js", app.BuildOptions{Output: "one.js"})
	require.NoError(t, err)
	second, err := f.app.Build(t.Context(), "e.js", app.BuildOptions{Output: "two.js"})
	require.NoError(t, err)

	one, err := os.ReadFile(first.Output)
	require.NoError(t, err)
	two, err := os.ReadFile(second.Output)
	require.NoError(t, err)
	assert.Equal(t, one, two)
}

func TestApp_Build_OutputFromConfig(t *testing.T) {
	f := newFixture(t, project, nil)
	f.config.Output = filepath.Join(f.dir, "dist", "app.js")

	res, err := f.app.Build(t.Context(), "e.js", app.BuildOptions{})
	require.NoError(t, err)
	assert.Equal(t, f.config.Output, res.Output)
	assert.FileExists(t, f.config.Output)
}

func TestApp_Build_Stdout(t *testing.T) {
	f := newFixture(t, project, nil)

	res, err := f.app.Build(t.Context(), "e.js", app.BuildOptions{Output: domain.StdoutPath})
	require.NoError(t, err)
	assert.Equal(t, domain.StdoutPath, res.Output)
	assert.Equal(t, res.Bytes, f.stdout.Len())
	assert.NoFileExists(t, filepath.Join(f.dir, "e.bundle.js"))
}

func TestApp_Build_CycleWritesNothing(t *testing.T) {
	f := newFixture(t, map[string]string{
		"a.js": "import './b.js';\n",
		"b.js": "import './a.js';\n",
	}, nil)

	_, err := f.app.Build(t.Context(), "a.js", app.BuildOptions{})
	require.ErrorIs(t, err, domain.ErrCyclicDependency)

	var cycle *domain.CycleError
	require.True(t, errors.As(err, &cycle))
	assert.Equal(t, []domain.ModuleID{
		domain.NewLocalID(filepath.Join(f.dir, "a.js")),
		domain.NewLocalID(filepath.Join(f.dir, "b.js")),
		domain.NewLocalID(filepath.Join(f.dir, "a.js")),
	}, cycle.Path)
	assert.NoFileExists(t, filepath.Join(f.dir, "a.bundle.js"))
}

func TestApp_Build_InvalidEntry(t *testing.T) {
	f := newFixture(t, project, nil)

	_, err := f.app.Build(t.Context(), "", app.BuildOptions{})
	require.ErrorIs(t, err, domain.ErrInvalidEntry)
}

func TestApp_Build_Optimize(t *testing.T) {
	f := newFixture(t, project, nil)
	f.optimizer.EXPECT().Optimize(gomock.Any(), gomock.Any()).Return([]byte("minified"), nil)

	res, err := f.app.Build(t.Context(), "e.js", app.BuildOptions{Optimize: boolPtr(true)})
	require.NoError(t, err)

	data, err := os.ReadFile(res.Output)
	require.NoError(t, err)
	assert.Equal(t, "minified", string(data))
	assert.Equal(t, len("minified"), res.Bytes)
}

func TestApp_Build_OptimizeFromConfig(t *testing.T) {
	f := newFixture(t, project, nil)
	f.config.OptimizerEnabled = true
	f.optimizer.EXPECT().Optimize(gomock.Any(), gomock.Any()).Return([]byte("minified"), nil)

	_, err := f.app.Build(t.Context(), "e.js", app.BuildOptions{})
	require.NoError(t, err)

	// The flag wins over the config.
	_, err = f.app.Build(t.Context(), "e.js", app.BuildOptions{Optimize: boolPtr(false), Output: "plain.js"})
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(f.dir, "plain.js"))
	require.NoError(t, err)
	assert.NotEqual(t, "minified", string(data))
}

func TestApp_Build_OptimizerFailureWritesNothing(t *testing.T) {
	f := newFixture(t, project, nil)
	optErr := domain.NewError(domain.ErrOptimizerFailed, nil, "command", "terser")
	f.optimizer.EXPECT().Optimize(gomock.Any(), gomock.Any()).Return(nil, optErr)

	_, err := f.app.Build(t.Context(), "e.js", app.BuildOptions{Optimize: boolPtr(true)})
	require.ErrorIs(t, err, domain.ErrOptimizerFailed)
	assert.NoFileExists(t, filepath.Join(f.dir, "e.bundle.js"))
}

func TestApp_Build_WarmCacheIsIdempotent(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/lib/x.js":
			_, _ = w.Write([]byte("import { y } from './y.js';\nexport const x = y * 2;\n"))
		case "/lib/y.js":
			_, _ = w.Write([]byte("export const y = 21;\n"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	store, err := cas.NewStore(t.TempDir())
	require.NoError(t, err)
	files := map[string]string{
		"e.js": "import { x } from '" + srv.URL + "/lib/x.js';\nconsole.log(x);\n",
	}

	cold := newFixture(t, files, store)
	first, err := cold.app.Build(t.Context(), "e.js", app.BuildOptions{})
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())

	srv.Close()

	warm := newFixture(t, nil, store)
	second, err := warm.app.WithWorkingDir(cold.dir).Build(t.Context(), "e.js", app.BuildOptions{Output: "warm.js"})
	require.NoError(t, err)

	one, err := os.ReadFile(first.Output)
	require.NoError(t, err)
	two, err := os.ReadFile(second.Output)
	require.NoError(t, err)
	assert.Equal(t, one, two)
	assert.Equal(t, int32(2), hits.Load())

	entries, err := store.List()
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

// memFetcher serves module sources from memory.
func memFetcher(t *testing.T, files map[string]string) *mocks.MockFetcher {
	t.Helper()
	f := mocks.NewMockFetcher(gomock.NewController(t))
	f.EXPECT().Fetch(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, id domain.ModuleID) ([]byte, error) {
			src, ok := files[id.String()]
			if !ok {
				return nil, domain.NewError(domain.ErrModuleNotFound, nil, "path", id.String())
			}
			return []byte(src), nil
		}).AnyTimes()
	return f
}

var mixedProject = map[string]string{
	"/src/e.js": "import a from './a.js';\nimport { x } from 'https://cdn.example.com/x.js';\nconsole.log(a, x);\n",
	"/src/a.js": "import { x } from 'https://cdn.example.com/x.js';\nexport default x;\n",

	"https://cdn.example.com/x.js": "export const x = 1;\n",
}

func TestApp_Deps(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.app.WithFetcher(memFetcher(t, mixedProject)).WithWorkingDir("/src")

	var out bytes.Buffer
	require.NoError(t, f.app.Deps(t.Context(), "e.js", app.BuildOptions{}, &out))

	assert.Equal(t,
		"80f2b324001e65f8 https://cdn.example.com/x.js\n"+
			"9864290dcd3b5ee1 /src/a.js\n"+
			"fe5dbe2e9b9f8fc3 /src/e.js\n",
		out.String())
}

func TestApp_Graph(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.app.WithFetcher(memFetcher(t, mixedProject)).WithWorkingDir("/src")

	var out bytes.Buffer
	require.NoError(t, f.app.Graph(t.Context(), "e.js", app.BuildOptions{}, &out))

	g := goldie.New(t)
	g.Assert(t, t.Name(), out.Bytes())
}

func TestApp_Graph_MissingModule(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.app.WithFetcher(memFetcher(t, map[string]string{
		"/src/e.js": "import './gone.js';\n",
	})).WithWorkingDir("/src")

	var out bytes.Buffer
	err := f.app.Graph(t.Context(), "e.js", app.BuildOptions{}, &out)
	require.ErrorIs(t, err, domain.ErrModuleNotFound)
	assert.Empty(t, out.String())
}
