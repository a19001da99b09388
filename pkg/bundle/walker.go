package bundle

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	sitter "github.com/alexaandru/go-tree-sitter-bare"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/pybundle/pkg/pysyntax"
	"github.com/Sumatoshi-tech/pybundle/pkg/resolve"
	"github.com/Sumatoshi-tech/pybundle/pkg/toposort"
)

const tracerName = "github.com/Sumatoshi-tech/pybundle/pkg/bundle"

// nestedPlaceholder replaces a nested import whose modules were all inlined.
const nestedPlaceholder = "pass"

// Resolver resolves and classifies module references.
type Resolver interface {
	Classify(ctx context.Context, ref resolve.Ref) (resolve.Resolution, error)
	Lookup(name string) (*resolve.Module, bool)
	Source(ctx context.Context, mod *resolve.Module) ([]byte, error)
}

// Options tune a bundling run.
type Options struct {
	// DropMainGuards removes top-level `if __name__ == "__main__":` blocks
	// from inlined modules. The entry script keeps its guard.
	DropMainGuards bool
	// AllowCycles downgrades an import cycle from an error to a warning.
	AllowCycles bool

	// Logger is the structured logger. When nil, a discard logger is used.
	Logger *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}

	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ModuleInfo describes a module met during a walk.
type ModuleInfo struct {
	Name   string                 `json:"name"           yaml:"name"`
	Path   string                 `json:"path,omitempty" yaml:"path,omitempty"`
	Class  resolve.Classification `json:"class"          yaml:"class"`
	Reason resolve.Reason         `json:"reason"         yaml:"reason"`
}

// Walker performs the depth-first import traversal of one bundling run.
// A Walker is single use and not safe for concurrent use.
type Walker struct {
	resolver Resolver
	parser   *pysyntax.Parser
	opts     Options
	logger   *slog.Logger
	tracer   trace.Tracer

	visited      map[string]struct{}
	visitedPaths map[string]struct{}
	imports      *ImportSet
	bodies       []Body
	graph        *toposort.Graph
	modules      []ModuleInfo
	known        map[string]struct{}
}

// NewWalker creates a Walker.
func NewWalker(resolver Resolver, parser *pysyntax.Parser, opts Options) *Walker {
	return &Walker{
		resolver:     resolver,
		parser:       parser,
		opts:         opts,
		logger:       opts.logger(),
		tracer:       otel.Tracer(tracerName),
		visited:      make(map[string]struct{}),
		visitedPaths: make(map[string]struct{}),
		imports:      NewImportSet(),
		graph:        toposort.NewGraph(),
		known:        make(map[string]struct{}),
	}
}

// Walk inlines everything tree imports locally, then appends tree's own body.
// module is the module tree was parsed from; it is marked visited.
func (w *Walker) Walk(ctx context.Context, tree *pysyntax.Tree, module *resolve.Module) error {
	w.markVisited(module)
	w.note(module, resolve.Resolution{Class: resolve.Local, Reason: resolve.ReasonUnderRoot, Module: module})
	w.graph.AddNode(module.Name)

	return w.walk(ctx, tree, module, true)
}

// Document returns the merged imports and bodies collected so far.
func (w *Walker) Document() *Document {
	return &Document{
		Imports: w.imports.Specs(),
		Bodies:  append([]Body(nil), w.bodies...),
	}
}

// Graph returns the importer -> imported module graph.
func (w *Walker) Graph() *toposort.Graph {
	return w.graph
}

// Modules returns every module met, in discovery order.
func (w *Walker) Modules() []ModuleInfo {
	return append([]ModuleInfo(nil), w.modules...)
}

func (w *Walker) walk(ctx context.Context, tree *pysyntax.Tree, module *resolve.Module, entry bool) error {
	var guards []pysyntax.Statement

	if !entry && w.opts.DropMainGuards {
		for _, stmt := range tree.Statements() {
			if tree.IsMainGuard(stmt) {
				guards = append(guards, stmt)
			}
		}
	}

	var edits []pysyntax.Edit

	for _, imp := range tree.Imports() {
		// Imports of a dropped main guard never run in the bundle.
		if within(imp.Node, guards) {
			continue
		}

		edit, err := w.visitImport(ctx, module, imp)
		if err != nil {
			return err
		}

		if edit != nil {
			edits = append(edits, *edit)
		}
	}

	for _, stmt := range tree.Statements() {
		if stmt.IsImport() {
			continue
		}

		if within(stmt.Node, guards) {
			w.logger.DebugContext(ctx, "main guard dropped", "module", module.Name, "line", stmt.Line)

			continue
		}

		w.bodies = append(w.bodies, Body{Module: module.Name, Text: tree.TextWithEdits(stmt.Node, edits)})
	}

	return nil
}

// visitImport classifies the bindings of one import statement, walks the
// local ones and records the external ones. For a nested statement it
// returns the edit that drops the inlined bindings from the body text.
func (w *Walker) visitImport(ctx context.Context, module *resolve.Module, imp pysyntax.Import) (*pysyntax.Edit, error) {
	var external []pysyntax.ImportSpec

	switch imp.Kind {
	case pysyntax.ImportFuture:
		external = imp.Specs
	case pysyntax.ImportPlain:
		for _, spec := range imp.Specs {
			local, err := w.visitPlain(ctx, module, spec, imp.Line)
			if err != nil {
				return nil, err
			}

			if !local {
				external = append(external, spec)
			}
		}
	case pysyntax.ImportFrom:
		specs, err := w.visitFrom(ctx, module, imp)
		if err != nil {
			return nil, err
		}

		external = specs
	}

	if !imp.Guarded {
		for _, spec := range external {
			w.imports.Add(spec)
		}
	}

	if !imp.Nested || len(external) == len(imp.Specs) {
		return nil, nil
	}

	if len(external) == 0 {
		edit := pysyntax.Replace(imp.Node, nestedPlaceholder)

		return &edit, nil
	}

	// Only plain imports can mix local and external modules.
	kept := make([]string, len(external))
	for i, spec := range external {
		kept[i] = spec.Binding()
	}

	edit := pysyntax.Replace(imp.Node, "import "+strings.Join(kept, ", "))

	return &edit, nil
}

// visitPlain handles one module of a plain import. Every local package on
// the dotted path is inlined, outermost first.
func (w *Walker) visitPlain(ctx context.Context, module *resolve.Module, spec pysyntax.ImportSpec, line int) (bool, error) {
	res, err := w.classify(ctx, module, resolve.Ref{Name: spec.Module}, line)
	if err != nil {
		return false, err
	}

	if !res.IsLocal() {
		return false, nil
	}

	if spec.Alias != "" {
		w.logger.WarnContext(ctx, "aliased local import; references through the alias are not rewritten",
			"module", module.Name, "import", spec.String(), "line", line)
	}

	parts := strings.Split(spec.Module, ".")
	for i := 1; i < len(parts); i++ {
		parent, err := w.classify(ctx, module, resolve.Ref{Name: strings.Join(parts[:i], ".")}, line)
		if err != nil {
			return false, err
		}

		if parent.IsLocal() {
			if err := w.inline(ctx, module, parent.Module); err != nil {
				return false, err
			}
		}
	}

	return true, w.inline(ctx, module, res.Module)
}

// visitFrom handles a from-import and returns its external records. Members
// naming local submodules are inlined after the package itself.
func (w *Walker) visitFrom(ctx context.Context, module *resolve.Module, imp pysyntax.Import) ([]pysyntax.ImportSpec, error) {
	if len(imp.Specs) == 0 {
		return nil, nil
	}

	first := imp.Specs[0]

	res, err := w.classify(ctx, module, resolve.Ref{Name: first.Module, Level: first.Level, Importer: module}, imp.Line)
	if err != nil {
		return nil, err
	}

	if !res.IsLocal() {
		if first.Level == 0 {
			return imp.Specs, nil
		}

		// The bundle is a single top-level script; relative references cannot survive.
		specs := make([]pysyntax.ImportSpec, len(imp.Specs))
		for i, spec := range imp.Specs {
			spec.Module, spec.Level = res.Module.Name, 0
			specs[i] = spec
		}

		return specs, nil
	}

	if err := w.inline(ctx, module, res.Module); err != nil {
		return nil, err
	}

	for _, spec := range imp.Specs {
		if spec.Name == pysyntax.Wildcard {
			continue
		}

		name := res.Module.Name + "." + spec.Name
		if _, ok := w.resolver.Lookup(name); !ok {
			continue
		}

		sub, err := w.classify(ctx, module, resolve.Ref{Name: name}, imp.Line)
		if err != nil {
			return nil, err
		}

		if sub.IsLocal() {
			if err := w.inline(ctx, module, sub.Module); err != nil {
				return nil, err
			}
		}
	}

	return nil, nil
}

func (w *Walker) classify(ctx context.Context, importer *resolve.Module, ref resolve.Ref, line int) (resolve.Resolution, error) {
	res, err := w.resolver.Classify(ctx, ref)
	if err != nil {
		return resolve.Resolution{}, fmt.Errorf("%s:%d: %w", importer.Name, line, err)
	}

	w.note(res.Module, res)

	// A submodule importing from its own package does not depend on it:
	// the package is already initialising when the submodule runs.
	if !isAncestor(res.Module.Name, importer.Name) {
		w.graph.AddEdge(importer.Name, res.Module.Name)
	}

	return res, nil
}

// isAncestor reports whether pkg is a package enclosing the module name.
func isAncestor(pkg, name string) bool {
	return strings.HasPrefix(name, pkg+".")
}

// within reports whether n lies inside one of stmts.
func within(n sitter.Node, stmts []pysyntax.Statement) bool {
	for _, stmt := range stmts {
		if n.StartByte() >= stmt.Start() && n.EndByte() <= stmt.End() {
			return true
		}
	}

	return false
}

// inline parses and walks target unless it was visited before, then appends
// its body after the bodies of its own dependencies.
func (w *Walker) inline(ctx context.Context, importer, target *resolve.Module) error {
	if w.isVisited(target) {
		return nil
	}

	w.markVisited(target)

	if err := ctx.Err(); err != nil {
		return err
	}

	ctx, span := w.tracer.Start(ctx, "pybundle.module",
		trace.WithAttributes(
			attribute.String("module.name", target.Name),
			attribute.String("module.importer", importer.Name),
		))
	defer span.End()

	w.logger.DebugContext(ctx, "inlining module", "module", target.Name, "importer", importer.Name, "path", target.Path)

	src, err := w.resolver.Source(ctx, target)
	if err != nil {
		return err
	}

	if target.Namespace {
		return nil
	}

	tree, err := w.parser.Parse(ctx, target.Path, src)
	if err != nil {
		return err
	}
	defer tree.Close()

	return w.walk(ctx, tree, target, false)
}

// isVisited guards by dotted name and by file, since the same file can be
// reached under two names when the entry directory is below the root.
func (w *Walker) isVisited(mod *resolve.Module) bool {
	if _, ok := w.visited[mod.Name]; ok {
		return true
	}

	if mod.Path == "" {
		return false
	}

	_, ok := w.visitedPaths[mod.Path]

	return ok
}

func (w *Walker) markVisited(mod *resolve.Module) {
	w.visited[mod.Name] = struct{}{}
	if mod.Path != "" {
		w.visitedPaths[mod.Path] = struct{}{}
	}
}

func (w *Walker) note(mod *resolve.Module, res resolve.Resolution) {
	if _, ok := w.known[mod.Name]; ok {
		return
	}

	w.known[mod.Name] = struct{}{}
	w.modules = append(w.modules, ModuleInfo{
		Name:   mod.Name,
		Path:   mod.Path,
		Class:  res.Class,
		Reason: res.Reason,
	})
}
