// Package resolve maps dotted Python module names to source files without
// executing them, and classifies each module as local (inlined by the
// bundler) or external (kept as an import).
package resolve

import "strings"

// Classification partitions modules into local and external.
type Classification string

// Classifications.
const (
	Local    Classification = "local"
	External Classification = "external"
)

// Reason records why a module received its classification.
type Reason string

// Classification reasons.
const (
	// ReasonUnderRoot marks a module whose file lives under the local root.
	ReasonUnderRoot Reason = "under-root"
	// ReasonOutsideRoot marks a module found on the search path outside the root.
	ReasonOutsideRoot Reason = "outside-root"
	// ReasonExcluded marks a module in the fixed or configured exclusion set.
	ReasonExcluded Reason = "excluded"
	// ReasonStdlib marks a standard library module with no file on the search path.
	ReasonStdlib Reason = "stdlib"
	// ReasonUnresolved marks a module that could not be found (lenient mode only).
	ReasonUnresolved Reason = "unresolved"
)

// Module is a resolved module reference.
type Module struct {
	// Name is the absolute dotted module name.
	Name string
	// Path is the backing source file, or the directory of a namespace package.
	// Empty for excluded and standard library modules.
	Path string
	// Package is set for packages (__init__.py or namespace directories).
	Package bool
	// Namespace is set for directories without __init__.py.
	Namespace bool
}

// PackageName returns the package relative imports inside m are resolved against.
func (m *Module) PackageName() string {
	if m.Package {
		return m.Name
	}

	idx := strings.LastIndexByte(m.Name, '.')
	if idx < 0 {
		return ""
	}

	return m.Name[:idx]
}

// Ref is a module reference as written in an import statement.
type Ref struct {
	// Name is the dotted name after any leading dots.
	Name string
	// Level is the number of leading dots of a relative reference.
	Level int
	// Importer is the module containing the import; required for relative references.
	Importer *Module
}

// Resolution is the outcome of classifying a reference.
type Resolution struct {
	Class  Classification
	Reason Reason
	Module *Module
}

// IsLocal reports whether the module is to be inlined.
func (r Resolution) IsLocal() bool {
	return r.Class == Local
}
