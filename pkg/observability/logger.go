package observability

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// Log attribute keys added by TracingHandler.
const (
	attrTraceID = "trace_id"
	attrSpanID  = "span_id"
	attrService = "service"
	attrVersion = "version"
	attrMode    = "mode"
)

// TracingHandler decorates pybundle log records with the process identity
// (service, version and cli/watch/mcp mode) and, inside a span, with its
// trace_id and span_id. A log line of a watch rebuild or an MCP tool call
// can then be matched to its trace.
type TracingHandler struct {
	inner slog.Handler
}

// NewTracingHandler wraps inner. The identity attributes are bound before
// any group is opened, so they stay at the top level of every record. An
// empty version is left out.
func NewTracingHandler(inner slog.Handler, service, version string, appMode AppMode) *TracingHandler {
	identity := []slog.Attr{
		slog.String(attrService, service),
		slog.String(attrMode, string(appMode)),
	}

	if version != "" {
		identity = append(identity, slog.String(attrVersion, version))
	}

	return &TracingHandler{inner: inner.WithAttrs(identity)}
}

func (th *TracingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return th.inner.Enabled(ctx, level)
}

func (th *TracingHandler) Handle(ctx context.Context, record slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		record.AddAttrs(
			slog.String(attrTraceID, sc.TraceID().String()),
			slog.String(attrSpanID, sc.SpanID().String()),
		)
	}

	if err := th.inner.Handle(ctx, record); err != nil {
		return fmt.Errorf("log record: %w", err)
	}

	return nil
}

func (th *TracingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TracingHandler{inner: th.inner.WithAttrs(attrs)}
}

func (th *TracingHandler) WithGroup(name string) slog.Handler {
	return &TracingHandler{inner: th.inner.WithGroup(name)}
}
