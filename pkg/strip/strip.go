// Package strip removes type annotations from Python function signatures
// together with the imports of annotation-only modules such as typing.
package strip

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"strings"

	sitter "github.com/alexaandru/go-tree-sitter-bare"

	"github.com/Sumatoshi-tech/pybundle/pkg/pysyntax"
)

// DefaultModules are the annotation-only modules removed by default.
var DefaultModules = []string{"typing"}

const emptyBlock = "pass"

// Options configure a Stripper.
type Options struct {
	// Modules are the annotation-only modules whose imports are removed.
	// Empty means DefaultModules.
	Modules []string
	// AllParameters also strips positional-only, *args, keyword-only and
	// **kwargs annotations. By default only regular positional parameters
	// lose their annotation.
	AllParameters bool

	// Logger is the structured logger. When nil, a discard logger is used.
	Logger *slog.Logger
}

// Stats counts what a Strip call removed.
type Stats struct {
	Functions  int `json:"functions"`
	Parameters int `json:"parameters"`
	Returns    int `json:"returns"`
	Imports    int `json:"imports"`
}

// Changed reports whether anything was removed.
func (s Stats) Changed() bool {
	return s.Parameters+s.Returns+s.Imports > 0
}

// Stripper rewrites parsed trees without annotations. It holds no per-call
// state and is safe for concurrent use.
type Stripper struct {
	modules   []string
	allParams bool
	logger    *slog.Logger
}

// New creates a Stripper.
func New(opts Options) *Stripper {
	modules := opts.Modules
	if len(modules) == 0 {
		modules = DefaultModules
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Stripper{
		modules:   slices.Clone(modules),
		allParams: opts.AllParameters,
		logger:    logger,
	}
}

// Strip returns the source of tree with annotations removed. Text outside
// the rewritten ranges, comments included, is preserved byte for byte.
func (s *Stripper) Strip(ctx context.Context, tree *pysyntax.Tree) ([]byte, Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, Stats{}, err
	}

	pass := &rewrite{Stripper: s, tree: tree}
	pass.statements(tree.Root())

	s.logger.DebugContext(ctx, "annotations stripped",
		"file", tree.Filename,
		"functions", pass.stats.Functions,
		"parameters", pass.stats.Parameters,
		"returns", pass.stats.Returns,
		"imports", pass.stats.Imports)

	return pysyntax.Apply(tree.Source, pass.edits), pass.stats, nil
}

// StripSource parses src and strips it. Unparseable input fails with pysyntax.ErrSyntax.
func (s *Stripper) StripSource(ctx context.Context, parser *pysyntax.Parser, filename string, src []byte) ([]byte, Stats, error) {
	tree, err := parser.Parse(ctx, filename, src)
	if err != nil {
		return nil, Stats{}, err
	}
	defer tree.Close()

	return s.Strip(ctx, tree)
}

func (s *Stripper) isAnnotationModule(name string) bool {
	return slices.Contains(s.modules, name)
}

// rewrite accumulates the edits of one Strip call.
type rewrite struct {
	*Stripper

	tree  *pysyntax.Tree
	edits []pysyntax.Edit
	stats Stats
}

// statements visits a module or block. A block whose every statement is
// deleted keeps a pass statement in place of the first one.
func (r *rewrite) statements(list sitter.Node) {
	stmts := pysyntax.StatementsOf(list)

	var removed []sitter.Node

	for _, stmt := range stmts {
		if r.statement(stmt) {
			removed = append(removed, stmt.Node)
		}
	}

	emptied := len(removed) > 0 && len(removed) == len(stmts) && list.Type() == pysyntax.TypeBlock

	for i, n := range removed {
		if emptied && i == 0 {
			r.edits = append(r.edits, pysyntax.Replace(n, emptyBlock))

			continue
		}

		r.edits = append(r.edits, r.tree.DeleteStatement(n))
	}
}

// statement visits one statement and reports whether it is removed entirely.
func (r *rewrite) statement(stmt pysyntax.Statement) bool {
	switch stmt.Kind {
	case pysyntax.TypeImport:
		return r.plainImport(stmt.Node)
	case pysyntax.TypeImportFrom:
		return r.fromImport(stmt.Node)
	case pysyntax.TypeFunctionDef:
		r.function(stmt.Node)
	default:
		r.children(stmt.Node)
	}

	return false
}

// children descends into compound statements looking for nested blocks.
func (r *rewrite) children(n sitter.Node) {
	for idx := range n.NamedChildCount() {
		child := n.NamedChild(idx)

		switch child.Type() {
		case pysyntax.TypeBlock:
			r.statements(child)
		case pysyntax.TypeFunctionDef:
			r.function(child)
		default:
			r.children(child)
		}
	}
}

func (r *rewrite) plainImport(n sitter.Node) bool {
	imp, _ := r.tree.ImportAt(n)

	kept := make([]string, 0, len(imp.Specs))

	for _, spec := range imp.Specs {
		if r.isAnnotationModule(spec.Module) {
			continue
		}

		kept = append(kept, spec.Binding())
	}

	removed := len(imp.Specs) - len(kept)
	if removed == 0 {
		return false
	}

	r.stats.Imports += removed

	if len(kept) == 0 {
		return true
	}

	r.edits = append(r.edits, pysyntax.Replace(n, "import "+strings.Join(kept, ", ")))

	return false
}

func (r *rewrite) fromImport(n sitter.Node) bool {
	imp, _ := r.tree.ImportAt(n)
	if len(imp.Specs) == 0 {
		return false
	}

	first := imp.Specs[0]
	if first.Level != 0 || !r.isAnnotationModule(first.Module) {
		return false
	}

	r.stats.Imports += len(imp.Specs)

	return true
}

// function strips the signature of a function definition and visits its body.
func (r *rewrite) function(fn sitter.Node) {
	changed := false

	params := fn.ChildByFieldName("parameters")
	if !params.IsNull() {
		changed = r.parameters(params)

		ret := fn.ChildByFieldName("return_type")
		if !ret.IsNull() {
			r.edits = append(r.edits, pysyntax.Edit{Start: params.EndByte(), End: ret.EndByte()})
			r.stats.Returns++
			changed = true
		}
	}

	if changed {
		r.stats.Functions++
	}

	body := fn.ChildByFieldName("body")
	if !body.IsNull() {
		r.statements(body)
	}
}

// parameters strips the annotations of a parameter list and reports
// whether anything changed.
func (r *rewrite) parameters(params sitter.Node) bool {
	count := params.NamedChildCount()

	// Parameters before a `/` are positional-only.
	separator := -1

	for idx := range count {
		if params.NamedChild(idx).Type() == pysyntax.TypePositionalSeparator {
			separator = int(idx)
		}
	}

	changed := false
	keywordOnly := false

	for idx := range count {
		param := params.NamedChild(idx)
		regular := int(idx) > separator && !keywordOnly

		switch param.Type() {
		case pysyntax.TypeKeywordSeparator, pysyntax.TypeListSplatPattern:
			keywordOnly = true
		case pysyntax.TypeTypedParameter:
			target := param.NamedChild(0)
			splat := target.Type() == pysyntax.TypeListSplatPattern || target.Type() == pysyntax.TypeDictSplatPattern

			if target.Type() == pysyntax.TypeListSplatPattern {
				keywordOnly = true
			}

			if (regular && !splat) || r.allParams {
				r.edits = append(r.edits, pysyntax.Replace(param, r.tree.Text(target)))
				r.stats.Parameters++
				changed = true
			}
		case pysyntax.TypeTypedDefaultParam:
			if !regular && !r.allParams {
				continue
			}

			name := param.ChildByFieldName("name")
			value := param.ChildByFieldName("value")

			if name.IsNull() || value.IsNull() {
				continue
			}

			r.edits = append(r.edits, pysyntax.Replace(param, r.tree.Text(name)+"="+r.tree.Text(value)))
			r.stats.Parameters++
			changed = true
		}
	}

	return changed
}
