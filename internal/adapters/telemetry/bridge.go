package telemetry

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.trai.ch/knit/internal/core/ports"
)

// LogBridge implements sdktrace.SpanProcessor by logging every finished span
// with its duration and attributes at debug level.
type LogBridge struct {
	logger ports.Logger
}

// NewLogBridge returns a new LogBridge.
func NewLogBridge(logger ports.Logger) *LogBridge {
	return &LogBridge{logger: logger}
}

// OnStart does nothing.
func (b *LogBridge) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

// OnEnd is called when a span ends.
func (b *LogBridge) OnEnd(s sdktrace.ReadOnlySpan) {
	if !s.SpanContext().IsValid() {
		return
	}

	attrs := make([]string, 0, len(s.Attributes()))
	for _, kv := range s.Attributes() {
		attrs = append(attrs, string(kv.Key)+"="+kv.Value.Emit())
	}
	slices.Sort(attrs)

	msg := fmt.Sprintf("%s took %s", s.Name(), s.EndTime().Sub(s.StartTime()))
	if len(attrs) > 0 {
		msg += " " + strings.Join(attrs, " ")
	}
	if s.Status().Code == codes.Error {
		msg += " (failed: " + s.Status().Description + ")"
	}
	b.logger.Debug(msg)
}

// ForceFlush does nothing.
func (b *LogBridge) ForceFlush(context.Context) error {
	return nil
}

// Shutdown does nothing.
func (b *LogBridge) Shutdown(context.Context) error {
	return nil
}
