// Package bundle inlines the locally authored modules reachable from an
// entry script into one flat script, keeping external imports as
// deduplicated import statements at the top.
package bundle

import (
	"context"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/pybundle/pkg/pysyntax"
	"github.com/Sumatoshi-tech/pybundle/pkg/resolve"
	"github.com/Sumatoshi-tech/pybundle/pkg/toposort"
)

// Result is the outcome of a bundling run.
type Result struct {
	Document *Document
	Graph    *toposort.Graph
	Modules  []ModuleInfo
	// Cycle is set when the local modules import each other in a cycle and
	// Options.AllowCycles let the run continue.
	Cycle []string
}

// Bundle walks the script at entryPath and merges it with every local module
// it reaches. An import cycle fails the run with a *CycleError unless
// opts.AllowCycles is set.
func Bundle(ctx context.Context, resolver Resolver, parser *pysyntax.Parser, entryPath string, opts Options) (*Result, error) {
	entry, err := resolve.EntryModule(entryPath)
	if err != nil {
		return nil, err
	}

	src, err := os.ReadFile(entry.Path)
	if err != nil {
		return nil, fmt.Errorf("read entry: %w", err)
	}

	walker := NewWalker(resolver, parser, opts)

	ctx, span := walker.tracer.Start(ctx, "pybundle.bundle",
		trace.WithAttributes(attribute.String("bundle.entry", entry.Path)))
	defer span.End()

	tree, err := parser.Parse(ctx, entry.Path, src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	if err := walker.Walk(ctx, tree, entry); err != nil {
		return nil, err
	}

	result := &Result{
		Document: walker.Document(),
		Graph:    walker.Graph(),
		Modules:  walker.Modules(),
	}

	if cycle := result.Graph.Cycle(); cycle != nil {
		if !opts.AllowCycles {
			return nil, &CycleError{Path: cycle}
		}

		result.Cycle = cycle
		walker.logger.WarnContext(ctx, "import cycle", "cycle", (&CycleError{Path: cycle}).Error())
	}

	span.SetAttributes(
		attribute.Int("bundle.modules", len(result.Modules)),
		attribute.Int("bundle.imports", len(result.Document.Imports)),
	)
	walker.logger.InfoContext(ctx, "bundle assembled",
		"entry", entry.Path,
		"modules", len(result.Modules),
		"bodies", len(result.Document.Bodies),
		"imports", len(result.Document.Imports),
		"entry_size", humanize.Bytes(uint64(len(src))))

	return result, nil
}
