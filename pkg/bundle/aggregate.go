package bundle

import (
	"github.com/Sumatoshi-tech/pybundle/pkg/pysyntax"
)

// ImportSet collects external import records without duplicates.
// __future__ records come first, the rest keep first-seen order.
type ImportSet struct {
	seen    map[string]struct{}
	futures []pysyntax.ImportSpec
	specs   []pysyntax.ImportSpec
}

// NewImportSet creates an empty ImportSet.
func NewImportSet() *ImportSet {
	return &ImportSet{seen: make(map[string]struct{})}
}

// Add records spec. It returns false if an equivalent record is already present.
func (s *ImportSet) Add(spec pysyntax.ImportSpec) bool {
	key := spec.Key()
	if _, ok := s.seen[key]; ok {
		return false
	}

	s.seen[key] = struct{}{}

	if spec.Kind == pysyntax.ImportFuture {
		s.futures = append(s.futures, spec)
	} else {
		s.specs = append(s.specs, spec)
	}

	return true
}

// Len returns the number of distinct records.
func (s *ImportSet) Len() int {
	return len(s.futures) + len(s.specs)
}

// Specs returns the records in output order.
func (s *ImportSet) Specs() []pysyntax.ImportSpec {
	out := make([]pysyntax.ImportSpec, 0, s.Len())
	out = append(out, s.futures...)

	return append(out, s.specs...)
}

// Body is the text of one top-level statement and the module it came from.
type Body struct {
	Module string
	Text   string
}

// Document is the merged output of a bundling run.
type Document struct {
	Imports []pysyntax.ImportSpec
	Bodies  []Body
}

// DocumentOf splits a single parsed script into a Document: its top-level
// imports become the import records, every other top-level statement a body.
func DocumentOf(tree *pysyntax.Tree) *Document {
	set := NewImportSet()
	doc := &Document{}

	for _, imp := range tree.Imports() {
		if imp.Nested {
			continue
		}

		for _, spec := range imp.Specs {
			set.Add(spec)
		}
	}

	for _, stmt := range tree.Statements() {
		if stmt.IsImport() {
			continue
		}

		doc.Bodies = append(doc.Bodies, Body{Text: tree.Text(stmt.Node)})
	}

	doc.Imports = set.Specs()

	return doc
}
