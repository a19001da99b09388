package observability

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// spanNamespaces are the attribute key prefixes pybundle sets on its spans.
// Keys outside them are dropped before export, which keeps file contents and
// arbitrary caller data out of the trace backend.
var spanNamespaces = []string{
	"pybundle.",
	"bundle.",
	"module.",
	"strip.",
	"watch.",
	"mcp.",
	"error.",
}

// maxAttrValueLen caps string attribute values. Module paths fit; pasted
// source code does not.
const maxAttrValueLen = 512

// attributeFilter forwards spans to delegate with only the pybundle
// attributes left on them.
type attributeFilter struct {
	delegate sdktrace.SpanProcessor
	logger   *slog.Logger

	// warned holds the keys already reported, so each is logged once.
	warned sync.Map
}

// NewAttributeFilter wraps delegate with the pybundle attribute allow-list.
// When logger is non-nil, every dropped key is logged once at warn level;
// `--verbose` passes one so unexpected attributes show up during development.
func NewAttributeFilter(delegate sdktrace.SpanProcessor, logger *slog.Logger) sdktrace.SpanProcessor {
	return &attributeFilter{delegate: delegate, logger: logger}
}

func (f *attributeFilter) OnStart(parent context.Context, s sdktrace.ReadWriteSpan) {
	f.delegate.OnStart(parent, s)
}

// OnEnd hands the delegate a view of s restricted to allowed attributes.
func (f *attributeFilter) OnEnd(s sdktrace.ReadOnlySpan) {
	f.delegate.OnEnd(&filteredSpan{ReadOnlySpan: s, filter: f})
}

func (f *attributeFilter) Shutdown(ctx context.Context) error {
	if err := f.delegate.Shutdown(ctx); err != nil {
		return fmt.Errorf("attribute filter shutdown: %w", err)
	}

	return nil
}

func (f *attributeFilter) ForceFlush(ctx context.Context) error {
	if err := f.delegate.ForceFlush(ctx); err != nil {
		return fmt.Errorf("attribute filter flush: %w", err)
	}

	return nil
}

// keep reports whether key belongs to a pybundle namespace. The bare
// "error" key of the OTel conventions is kept as well.
func (f *attributeFilter) keep(key string) bool {
	if key == "error" {
		return true
	}

	for _, ns := range spanNamespaces {
		if strings.HasPrefix(key, ns) {
			return true
		}
	}

	if f.logger != nil {
		if _, seen := f.warned.LoadOrStore(key, struct{}{}); !seen {
			f.logger.Warn("span attribute blocked", "key", key)
		}
	}

	return false
}

// filteredSpan is a ReadOnlySpan whose attributes passed the filter.
type filteredSpan struct {
	sdktrace.ReadOnlySpan

	filter *attributeFilter
}

func (s *filteredSpan) Attributes() []attribute.KeyValue {
	all := s.ReadOnlySpan.Attributes()
	kept := make([]attribute.KeyValue, 0, len(all))

	for _, kv := range all {
		if !s.filter.keep(string(kv.Key)) {
			continue
		}

		kept = append(kept, truncate(kv))
	}

	return kept
}

// truncate shortens string values longer than maxAttrValueLen bytes,
// cutting at a rune boundary.
func truncate(kv attribute.KeyValue) attribute.KeyValue {
	if kv.Value.Type() != attribute.STRING {
		return kv
	}

	val := kv.Value.AsString()
	if len(val) <= maxAttrValueLen {
		return kv
	}

	cut := maxAttrValueLen
	for cut > 0 && !utf8.RuneStart(val[cut]) {
		cut--
	}

	return attribute.String(string(kv.Key), val[:cut]+"...")
}
