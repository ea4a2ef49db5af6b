// Package optimizer runs an external minifier over a finished bundle.
package optimizer

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"

	"go.trai.ch/knit/internal/core/domain"
	"go.trai.ch/knit/internal/core/ports"
)

// maxStderr bounds the diagnostic output kept from a failing optimizer.
const maxStderr = 4 << 10

// Command implements ports.Optimizer by piping the bundle through an external
// command over stdin and stdout.
type Command struct {
	argv   []string
	logger ports.Logger
}

// NewCommand creates an optimizer running argv. An empty argv selects domain.DefaultOptimizerCommand.
func NewCommand(argv []string, logger ports.Logger) *Command {
	if len(argv) == 0 {
		argv = domain.DefaultOptimizerCommand
	}
	return &Command{argv: append([]string(nil), argv...), logger: logger}
}

// Check reports whether the optimizer executable can be found.
func (c *Command) Check(_ context.Context) error {
	if _, err := exec.LookPath(c.argv[0]); err != nil {
		return domain.NewError(domain.ErrOptimizerUnavailable, err, "command", c.argv[0])
	}
	return nil
}

// Optimize returns the command's output for src. When the executable is not
// installed a warning is logged and src is returned unchanged.
func (c *Command) Optimize(ctx context.Context, src []byte) ([]byte, error) {
	path, err := exec.LookPath(c.argv[0])
	if err != nil {
		c.logger.Warn("optimizer " + c.argv[0] + " not found, writing the unoptimized bundle")
		return src, nil
	}

	//nolint:gosec // The command comes from the project configuration
	cmd := exec.CommandContext(ctx, path, c.argv[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdin = bytes.NewReader(src)
	cmd.Stdout = &stdout
	cmd.Stderr = &limitedBuffer{max: maxStderr, buf: &stderr}

	c.logger.Debug("running " + strings.Join(c.argv, " "))
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		kv := []any{"command", strings.Join(c.argv, " ")}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			kv = append(kv, "exit_code", exitErr.ExitCode())
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			kv = append(kv, "stderr", msg)
		}
		return nil, domain.NewError(domain.ErrOptimizerFailed, err, kv...)
	}
	return stdout.Bytes(), nil
}

// limitedBuffer keeps the first max bytes written and discards the rest.
type limitedBuffer struct {
	max int
	buf *bytes.Buffer
}

func (l *limitedBuffer) Write(p []byte) (int, error) {
	if room := l.max - l.buf.Len(); room > 0 {
		l.buf.Write(p[:min(room, len(p))])
	}
	return len(p), nil
}
