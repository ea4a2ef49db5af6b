package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"go.trai.ch/knit/internal/adapters/cas"
	"go.trai.ch/knit/internal/core/domain"
	"go.trai.ch/knit/internal/ui/style"
)

const probeFile = ".doctor-probe"

var defaultLookPath = exec.LookPath

// CheckStatus is the outcome of one environment check.
type CheckStatus int

const (
	// CheckPassed means the check succeeded.
	CheckPassed CheckStatus = iota
	// CheckWarned means the check failed but builds still work.
	CheckWarned
	// CheckFailed means builds will fail.
	CheckFailed
)

// CheckResult describes one environment check.
type CheckResult struct {
	Name   string
	Status CheckStatus
	Detail string
}

var (
	passStyle = lipgloss.NewStyle().Foreground(style.Green)
	warnStyle = lipgloss.NewStyle().Foreground(style.Yellow)
	failStyle = lipgloss.NewStyle().Foreground(style.Red)
	muted     = lipgloss.NewStyle().Foreground(style.Muted)
)

func (r CheckResult) String() string {
	var icon string
	switch r.Status {
	case CheckPassed:
		icon = passStyle.Render(style.Check)
	case CheckWarned:
		icon = warnStyle.Render(style.Warning)
	default:
		icon = failStyle.Render(style.Cross)
	}
	return fmt.Sprintf("%s %-14s %s", icon, r.Name, muted.Render(r.Detail))
}

// Doctor checks the environment knit depends on and prints one line per check.
// It fails when a check that builds depend on fails.
func (a *App) Doctor(ctx context.Context, w io.Writer) error {
	results := []CheckResult{
		a.checkCache(),
		a.checkOptimizer(ctx),
		a.checkNode(),
	}

	failed := 0
	for _, r := range results {
		_, _ = fmt.Fprintln(w, r.String())
		if r.Status == CheckFailed {
			failed++
		}
	}
	if failed > 0 {
		return domain.NewError(domain.ErrDoctorFailed, nil, "failed_checks", failed)
	}
	return nil
}

func (a *App) checkCache() CheckResult {
	r := CheckResult{Name: "module cache"}
	if !a.cacheEnabled() {
		r.Status = CheckWarned
		r.Detail = "disabled"
		return r
	}

	probe := filepath.Join(a.store.Dir(), probeFile)
	if err := cas.WriteFileAtomic(probe, []byte(domain.AppName), domain.PrivateFilePerm); err != nil {
		r.Status = CheckFailed
		r.Detail = a.store.Dir() + " is not writable: " + err.Error()
		return r
	}
	_ = os.Remove(probe)

	r.Detail = a.store.Dir()
	return r
}

func (a *App) checkOptimizer(ctx context.Context) CheckResult {
	r := CheckResult{Name: "optimizer"}
	if err := a.optimizer.Check(ctx); err != nil {
		r.Detail = err.Error()
		if a.config.OptimizerEnabled {
			r.Status = CheckFailed
			return r
		}
		r.Status = CheckWarned
		r.Detail += " (disabled in config)"
		return r
	}

	r.Detail = "found"
	if !a.config.OptimizerEnabled {
		r.Detail += " (disabled in config)"
	}
	return r
}

// checkNode looks for a JavaScript runtime. Bundles do not need one to build.
func (a *App) checkNode() CheckResult {
	r := CheckResult{Name: "node"}
	path, err := a.lookPath("node")
	if err != nil {
		r.Status = CheckWarned
		r.Detail = "not found, needed only to run bundles locally"
		return r
	}
	r.Detail = path
	return r
}
