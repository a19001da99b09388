package pysyntax

import (
	"strings"

	sitter "github.com/alexaandru/go-tree-sitter-bare"
)

// ImportKind distinguishes the three import statement forms.
type ImportKind string

// Import kinds.
const (
	ImportPlain  ImportKind = "import"
	ImportFrom   ImportKind = "from"
	ImportFuture ImportKind = "future"
)

// Wildcard is the member name of a star import.
const Wildcard = "*"

// FutureModule is the module name of future statements.
const FutureModule = "__future__"

// ImportSpec is one imported binding: a single module of a plain import,
// or a single member of a from-import.
type ImportSpec struct {
	Kind   ImportKind
	Module string
	Name   string
	Alias  string
	Level  int
}

// Key identifies the binding independently of how it was spelled.
func (s ImportSpec) Key() string {
	var sb strings.Builder

	sb.WriteString(string(s.Kind))
	sb.WriteByte('|')
	sb.WriteString(s.FromModule())
	sb.WriteByte('|')
	sb.WriteString(s.Name)
	sb.WriteByte('|')
	sb.WriteString(s.Alias)

	return sb.String()
}

// FromModule returns the module reference with its relative dots.
func (s ImportSpec) FromModule() string {
	return strings.Repeat(".", s.Level) + s.Module
}

// Binding renders the imported name with its alias, e.g. "b as c".
func (s ImportSpec) Binding() string {
	name := s.Name
	if s.Kind == ImportPlain {
		name = s.Module
	}

	if s.Alias == "" {
		return name
	}

	return name + " as " + s.Alias
}

// String renders the spec as a standalone canonical statement.
func (s ImportSpec) String() string {
	if s.Kind == ImportPlain {
		return "import " + s.Binding()
	}

	return "from " + s.FromModule() + " import " + s.Binding()
}

// Import is one import statement of a tree.
type Import struct {
	Node  sitter.Node
	Kind  ImportKind
	Specs []ImportSpec
	// Nested is set for imports inside a function, class or compound statement body.
	Nested bool
	// Guarded is set for imports inside a try statement.
	Guarded bool
	Line    int
}

// Imports returns every import statement of the tree in source order,
// including the ones nested in function, class and conditional bodies.
func (t *Tree) Imports() []Import {
	var out []Import

	t.collectImports(t.root, false, false, &out)

	return out
}

// ImportAt returns the import record of a single import statement node.
func (t *Tree) ImportAt(n sitter.Node) (Import, bool) {
	switch n.Type() {
	case TypeImport:
		return t.plainImport(n, false), true
	case TypeImportFrom:
		return t.fromImport(n, false), true
	case TypeFutureImport:
		return t.futureImport(n, false), true
	default:
		return Import{}, false
	}
}

func (t *Tree) collectImports(n sitter.Node, nested, guarded bool, out *[]Import) {
	for idx := range n.NamedChildCount() {
		child := n.NamedChild(idx)

		var imp Import

		switch child.Type() {
		case TypeImport:
			imp = t.plainImport(child, nested)
		case TypeImportFrom:
			imp = t.fromImport(child, nested)
		case TypeFutureImport:
			imp = t.futureImport(child, nested)
		default:
			t.collectImports(child,
				nested || child.Type() == TypeBlock,
				guarded || child.Type() == TypeTry,
				out)

			continue
		}

		imp.Guarded = guarded
		*out = append(*out, imp)
	}
}

func (t *Tree) plainImport(n sitter.Node, nested bool) Import {
	imp := Import{Node: n, Kind: ImportPlain, Nested: nested, Line: int(n.StartPoint().Row) + 1}

	for idx := range n.NamedChildCount() {
		child := n.NamedChild(idx)

		name, alias, ok := t.nameAndAlias(child)
		if !ok {
			continue
		}

		imp.Specs = append(imp.Specs, ImportSpec{Kind: ImportPlain, Module: name, Alias: alias})
	}

	return imp
}

func (t *Tree) fromImport(n sitter.Node, nested bool) Import {
	imp := Import{Node: n, Kind: ImportFrom, Nested: nested, Line: int(n.StartPoint().Row) + 1}

	moduleNode := n.ChildByFieldName("module_name")
	module, level := t.moduleReference(moduleNode)

	for idx := range n.NamedChildCount() {
		child := n.NamedChild(idx)
		if !moduleNode.IsNull() && child.StartByte() == moduleNode.StartByte() {
			continue
		}

		if child.Type() == TypeWildcardImport {
			imp.Specs = append(imp.Specs, ImportSpec{Kind: ImportFrom, Module: module, Level: level, Name: Wildcard})

			continue
		}

		name, alias, ok := t.nameAndAlias(child)
		if !ok {
			continue
		}

		imp.Specs = append(imp.Specs, ImportSpec{Kind: ImportFrom, Module: module, Level: level, Name: name, Alias: alias})
	}

	return imp
}

func (t *Tree) futureImport(n sitter.Node, nested bool) Import {
	imp := Import{Node: n, Kind: ImportFuture, Nested: nested, Line: int(n.StartPoint().Row) + 1}

	for idx := range n.NamedChildCount() {
		name, alias, ok := t.nameAndAlias(n.NamedChild(idx))
		if !ok {
			continue
		}

		imp.Specs = append(imp.Specs, ImportSpec{Kind: ImportFuture, Module: FutureModule, Name: name, Alias: alias})
	}

	return imp
}

// moduleReference returns the dotted module and relative level of a
// from-import module_name node.
func (t *Tree) moduleReference(n sitter.Node) (string, int) {
	if n.IsNull() {
		return "", 0
	}

	if n.Type() != TypeRelativeImport {
		return t.dotted(n), 0
	}

	var (
		module string
		level  int
	)

	for idx := range n.NamedChildCount() {
		child := n.NamedChild(idx)

		switch child.Type() {
		case TypeImportPrefix:
			level = strings.Count(t.Text(child), ".")
		case TypeDottedName:
			module = t.dotted(child)
		}
	}

	return module, level
}

func (t *Tree) nameAndAlias(n sitter.Node) (name, alias string, ok bool) {
	switch n.Type() {
	case TypeDottedName:
		return t.dotted(n), "", true
	case TypeAliasedImport:
		nameNode := n.ChildByFieldName("name")
		aliasNode := n.ChildByFieldName("alias")

		if nameNode.IsNull() {
			return "", "", false
		}

		if !aliasNode.IsNull() {
			alias = t.Text(aliasNode)
		}

		return t.dotted(nameNode), alias, true
	default:
		return "", "", false
	}
}

// dotted returns a dotted name with any interior whitespace removed.
func (t *Tree) dotted(n sitter.Node) string {
	return strings.Join(strings.Fields(t.Text(n)), "")
}
