package commands_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/knit/cmd/knit/commands"
	"go.trai.ch/knit/internal/app"
	"go.trai.ch/knit/internal/build"
)

type mockApp struct {
	buildFunc  func(ctx context.Context, entry string, opts app.BuildOptions) (*app.BuildResult, error)
	depsFunc   func(ctx context.Context, entry string, opts app.BuildOptions, w io.Writer) error
	graphFunc  func(ctx context.Context, entry string, opts app.BuildOptions, w io.Writer) error
	watchFunc  func(ctx context.Context, entry string, opts app.BuildOptions) error
	listFunc   func(w io.Writer) error
	cleanFunc  func(ctx context.Context) error
	doctorFunc func(ctx context.Context, w io.Writer) error
}

func (m *mockApp) Build(ctx context.Context, entry string, opts app.BuildOptions) (*app.BuildResult, error) {
	if m.buildFunc != nil {
		return m.buildFunc(ctx, entry, opts)
	}
	return &app.BuildResult{}, nil
}

func (m *mockApp) Deps(ctx context.Context, entry string, opts app.BuildOptions, w io.Writer) error {
	if m.depsFunc != nil {
		return m.depsFunc(ctx, entry, opts, w)
	}
	return nil
}

func (m *mockApp) Graph(ctx context.Context, entry string, opts app.BuildOptions, w io.Writer) error {
	if m.graphFunc != nil {
		return m.graphFunc(ctx, entry, opts, w)
	}
	return nil
}

func (m *mockApp) Watch(ctx context.Context, entry string, opts app.BuildOptions) error {
	if m.watchFunc != nil {
		return m.watchFunc(ctx, entry, opts)
	}
	return nil
}

func (m *mockApp) CacheList(w io.Writer) error {
	if m.listFunc != nil {
		return m.listFunc(w)
	}
	return nil
}

func (m *mockApp) Clean(ctx context.Context) error {
	if m.cleanFunc != nil {
		return m.cleanFunc(ctx)
	}
	return nil
}

func (m *mockApp) Doctor(ctx context.Context, w io.Writer) error {
	if m.doctorFunc != nil {
		return m.doctorFunc(ctx, w)
	}
	return nil
}

type logSettings struct {
	called  bool
	verbose bool
	json    bool
}

func (l *logSettings) ConfigureLogging(verbose, json bool) {
	l.called = true
	l.verbose = verbose
	l.json = json
}

func execute(t *testing.T, a commands.Application, args ...string) (string, error) {
	t.Helper()
	cli := commands.New(a)
	buf := new(bytes.Buffer)
	cli.SetOutput(buf, buf)
	cli.SetArgs(args)
	err := cli.Execute(context.Background())
	return buf.String(), err
}

func TestCommands_Build(t *testing.T) {
	t.Run("wires flags correctly", func(t *testing.T) {
		var capturedOpts app.BuildOptions
		var capturedEntry string

		mock := &mockApp{
			buildFunc: func(_ context.Context, entry string, opts app.BuildOptions) (*app.BuildResult, error) {
				capturedEntry = entry
				capturedOpts = opts
				return &app.BuildResult{}, nil
			},
		}

		_, err := execute(t, mock, "build", "src/main.js",
			"-o", "dist/app.js", "--no-cache", "-j", "3", "--timeout", "5s", "--optimize")
		require.NoError(t, err)

		assert.Equal(t, "src/main.js", capturedEntry)
		assert.Equal(t, "dist/app.js", capturedOpts.Output)
		assert.True(t, capturedOpts.NoCache)
		assert.Equal(t, 3, capturedOpts.Concurrency)
		assert.Equal(t, 5*time.Second, capturedOpts.Timeout)
		require.NotNil(t, capturedOpts.Optimize)
		assert.True(t, *capturedOpts.Optimize)
	})

	t.Run("optimizer follows config without flags", func(t *testing.T) {
		var capturedOpts app.BuildOptions
		mock := &mockApp{
			buildFunc: func(_ context.Context, _ string, opts app.BuildOptions) (*app.BuildResult, error) {
				capturedOpts = opts
				return &app.BuildResult{}, nil
			},
		}

		_, err := execute(t, mock, "build", "main.js")
		require.NoError(t, err)
		assert.Nil(t, capturedOpts.Optimize)
		assert.Empty(t, capturedOpts.Output)
	})

	t.Run("no-optimize disables optimizer", func(t *testing.T) {
		var capturedOpts app.BuildOptions
		mock := &mockApp{
			buildFunc: func(_ context.Context, _ string, opts app.BuildOptions) (*app.BuildResult, error) {
				capturedOpts = opts
				return &app.BuildResult{}, nil
			},
		}

		_, err := execute(t, mock, "build", "main.js", "--no-optimize")
		require.NoError(t, err)
		require.NotNil(t, capturedOpts.Optimize)
		assert.False(t, *capturedOpts.Optimize)
	})

	t.Run("optimize flags are exclusive", func(t *testing.T) {
		_, err := execute(t, &mockApp{}, "build", "main.js", "--optimize", "--no-optimize")
		require.Error(t, err)
	})

	t.Run("requires an entry", func(t *testing.T) {
		_, err := execute(t, &mockApp{}, "build")
		require.Error(t, err)
	})

	t.Run("returns error on build failure", func(t *testing.T) {
		mock := &mockApp{
			buildFunc: func(_ context.Context, _ string, _ app.BuildOptions) (*app.BuildResult, error) {
				return nil, errors.New("simulated error")
			},
		}

		_, err := execute(t, mock, "build", "main.js")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "simulated error")
	})
}

func TestCommands_DepsAndGraph(t *testing.T) {
	mock := &mockApp{
		depsFunc: func(_ context.Context, entry string, opts app.BuildOptions, w io.Writer) error {
			_, _ = io.WriteString(w, "deps "+entry)
			assert.True(t, opts.NoCache)
			return nil
		},
		graphFunc: func(_ context.Context, entry string, _ app.BuildOptions, w io.Writer) error {
			_, _ = io.WriteString(w, "digraph "+entry)
			return nil
		},
	}

	out, err := execute(t, mock, "deps", "main.js", "--no-cache")
	require.NoError(t, err)
	assert.Equal(t, "deps main.js", out)

	out, err = execute(t, mock, "graph", "main.js")
	require.NoError(t, err)
	assert.Equal(t, "digraph main.js", out)

	// deps writes no bundle, so it has no output flag.
	_, err = execute(t, mock, "deps", "main.js", "-o", "x.js")
	require.Error(t, err)
}

func TestCommands_Watch(t *testing.T) {
	called := false
	mock := &mockApp{
		watchFunc: func(_ context.Context, entry string, opts app.BuildOptions) error {
			called = true
			assert.Equal(t, "main.js", entry)
			assert.Equal(t, "-", opts.Output)
			return nil
		},
	}

	_, err := execute(t, mock, "watch", "main.js", "-o", "-")
	require.NoError(t, err)
	assert.True(t, called)
}

func TestCommands_Cache(t *testing.T) {
	var cleaned int
	mock := &mockApp{
		listFunc: func(w io.Writer) error {
			_, _ = io.WriteString(w, "listing")
			return nil
		},
		cleanFunc: func(context.Context) error {
			cleaned++
			return nil
		},
	}

	out, err := execute(t, mock, "cache", "ls")
	require.NoError(t, err)
	assert.Equal(t, "listing", out)

	_, err = execute(t, mock, "cache", "clean")
	require.NoError(t, err)
	_, err = execute(t, mock, "clean")
	require.NoError(t, err)
	assert.Equal(t, 2, cleaned)
}

func TestCommands_Doctor(t *testing.T) {
	mock := &mockApp{
		doctorFunc: func(_ context.Context, w io.Writer) error {
			_, _ = io.WriteString(w, "✓ node")
			return errors.New("environment check failed")
		},
	}

	out, err := execute(t, mock, "doctor")
	require.Error(t, err)
	assert.Contains(t, out, "✓ node")
}

func TestCommands_LoggingFlags(t *testing.T) {
	logs := &logSettings{}
	cli := commands.New(&mockApp{}, commands.WithLogging(logs))
	cli.SetOutput(new(bytes.Buffer), new(bytes.Buffer))
	cli.SetArgs([]string{"build", "main.js", "--verbose", "--json"})

	require.NoError(t, cli.Execute(context.Background()))
	assert.True(t, logs.called)
	assert.True(t, logs.verbose)
	assert.True(t, logs.json)
}

func TestCommands_Version(t *testing.T) {
	out, err := execute(t, &mockApp{}, "version")
	require.NoError(t, err)
	assert.Contains(t, out, build.Version)
	assert.Contains(t, out, "knit version")
}
