package pysyntax

import (
	"strings"

	sitter "github.com/alexaandru/go-tree-sitter-bare"
)

// Node type tags of the tree-sitter Python grammar used by this package.
const (
	TypeModule              = "module"
	TypeBlock               = "block"
	TypeComment             = "comment"
	TypeError               = "ERROR"
	TypeImport              = "import_statement"
	TypeImportFrom          = "import_from_statement"
	TypeFutureImport        = "future_import_statement"
	TypeDottedName          = "dotted_name"
	TypeAliasedImport       = "aliased_import"
	TypeRelativeImport      = "relative_import"
	TypeImportPrefix        = "import_prefix"
	TypeWildcardImport      = "wildcard_import"
	TypeFunctionDef         = "function_definition"
	TypeClassDef            = "class_definition"
	TypeDecoratedDef        = "decorated_definition"
	TypeIf                  = "if_statement"
	TypeTry                 = "try_statement"
	TypeIdentifier          = "identifier"
	TypeTypedParameter      = "typed_parameter"
	TypeDefaultParameter    = "default_parameter"
	TypeTypedDefaultParam   = "typed_default_parameter"
	TypeListSplatPattern    = "list_splat_pattern"
	TypeDictSplatPattern    = "dictionary_splat_pattern"
	TypeKeywordSeparator    = "keyword_separator"
	TypePositionalSeparator = "positional_separator"
)

// Tree is a parsed Python source file. It is immutable once parsed.
type Tree struct {
	Filename string
	Source   []byte

	tree *sitter.Tree
	root sitter.Node
}

// Close releases the underlying tree-sitter tree.
func (t *Tree) Close() {
	if t.tree != nil {
		t.tree.Close()
		t.tree = nil
	}
}

// Root returns the module node.
func (t *Tree) Root() sitter.Node {
	return t.root
}

// Text returns the source text spanned by n.
func (t *Tree) Text(n sitter.Node) string {
	return n.Content(t.Source)
}

// Statement is one statement of a statement list (module or block).
type Statement struct {
	Node sitter.Node
	Kind string
	Line int
}

// IsImport reports whether the statement is any kind of import.
func (s Statement) IsImport() bool {
	return IsImportType(s.Kind)
}

// Start returns the first byte offset of the statement.
func (s Statement) Start() uint {
	return s.Node.StartByte()
}

// End returns the byte offset just past the statement.
func (s Statement) End() uint {
	return s.Node.EndByte()
}

// Statements returns the top-level statements of the module in source order.
// Comments are not statements and are skipped.
func (t *Tree) Statements() []Statement {
	return StatementsOf(t.root)
}

// StatementsOf returns the statements directly contained in a module or block node.
func StatementsOf(list sitter.Node) []Statement {
	count := list.NamedChildCount()
	stmts := make([]Statement, 0, count)

	for idx := range count {
		child := list.NamedChild(idx)

		kind := child.Type()
		if kind == TypeComment {
			continue
		}

		stmts = append(stmts, Statement{
			Node: child,
			Kind: kind,
			Line: int(child.StartPoint().Row) + 1,
		})
	}

	return stmts
}

// IsImportType reports whether a node type is an import statement.
func IsImportType(kind string) bool {
	switch kind {
	case TypeImport, TypeImportFrom, TypeFutureImport:
		return true
	default:
		return false
	}
}

// IsMainGuard reports whether stmt is an `if __name__ == "__main__":` block.
func (t *Tree) IsMainGuard(stmt Statement) bool {
	if stmt.Kind != TypeIf {
		return false
	}

	cond := stmt.Node.ChildByFieldName("condition")
	if cond.IsNull() {
		return false
	}

	normalized := strings.NewReplacer(" ", "", "\t", "", "'", `"`).Replace(t.Text(cond))

	return normalized == `__name__=="__main__"` || normalized == `"__main__"==__name__`
}
