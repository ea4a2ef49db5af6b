package app

import "go.trai.ch/knit/internal/core/ports"

// logControl is implemented by loggers whose verbosity and format can change at runtime.
type logControl interface {
	SetVerbose(enable bool)
	SetJSON(enable bool)
}

// Components contains all the initialized application components.
// This struct provides controlled access to components needed by the CLI layer.
type Components struct {
	App    *App
	Logger ports.Logger
}

// NewComponents creates a new Components struct from dependencies.
func NewComponents(app *App, logger ports.Logger) *Components {
	return &Components{
		App:    app,
		Logger: logger,
	}
}

// ConfigureLogging switches the logger to debug level and/or JSON output.
// Loggers that cannot be reconfigured are left unchanged.
func (c *Components) ConfigureLogging(verbose, json bool) {
	ctl, ok := c.Logger.(logControl)
	if !ok {
		return
	}
	ctl.SetVerbose(verbose)
	ctl.SetJSON(json)
}
