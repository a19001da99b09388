package resolve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Sentinel errors for module resolution.
var (
	// ErrModuleNotFound indicates no search path provides the module.
	ErrModuleNotFound = errors.New("module not found")
	// ErrRelativeBeyondTop indicates a relative import climbs above the top-level package.
	ErrRelativeBeyondTop = errors.New("relative import beyond top-level package")
	// ErrNoRoot indicates the classifier was created without a local root.
	ErrNoRoot = errors.New("local root is required")
)

// DefaultCacheSize is the number of module sources kept in memory.
const DefaultCacheSize = 256

const (
	sourceSuffix = ".py"
	initFile     = "__init__.py"
)

// builtinExclusions are always external, whatever the search path holds.
var builtinExclusions = []string{"sys", "os", "builtins"}

// Config configures a Classifier.
type Config struct {
	// Root is the local source root. Modules under it are inlined.
	Root string
	// EntryDir is the directory of the entry script, searched first.
	EntryDir string
	// Paths are extra search directories, searched after the root.
	Paths []string
	// PythonPath is a PYTHONPATH-style list searched last.
	PythonPath string
	// External names top-level modules that are never inlined.
	External []string
	// Strict makes unresolvable modules fatal. When false they are
	// classified external with a warning.
	Strict bool
	// CacheSize bounds the source cache. Zero uses DefaultCacheSize.
	CacheSize int

	// Logger is the structured logger. When nil, a discard logger is used.
	Logger *slog.Logger
}

// Classifier resolves module references statically and classifies them.
// It is safe for concurrent use.
type Classifier struct {
	root     string
	paths    []string
	excluded map[string]struct{}
	strict   bool
	logger   *slog.Logger

	sources *lru.Cache[string, []byte]
	lookups *lru.Cache[string, *Module]
}

// NewClassifier creates a Classifier from cfg. Relative directories are made absolute.
func NewClassifier(cfg Config) (*Classifier, error) {
	if cfg.Root == "" {
		return nil, ErrNoRoot
	}

	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}

	size := cfg.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}

	sources, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("create source cache: %w", err)
	}

	lookups, err := lru.New[string, *Module](size)
	if err != nil {
		return nil, fmt.Errorf("create lookup cache: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	excluded := make(map[string]struct{}, len(builtinExclusions)+len(cfg.External))
	for _, name := range slices.Concat(builtinExclusions, cfg.External) {
		excluded[topLevel(name)] = struct{}{}
	}

	return &Classifier{
		root:     root,
		paths:    searchPaths(root, cfg),
		excluded: excluded,
		strict:   cfg.Strict,
		logger:   logger,
		sources:  sources,
		lookups:  lookups,
	}, nil
}

func searchPaths(root string, cfg Config) []string {
	candidates := make([]string, 0, len(cfg.Paths)+2)
	if cfg.EntryDir != "" {
		candidates = append(candidates, cfg.EntryDir)
	}

	candidates = append(candidates, root)
	candidates = append(candidates, cfg.Paths...)
	candidates = append(candidates, filepath.SplitList(cfg.PythonPath)...)

	paths := make([]string, 0, len(candidates))

	for _, p := range candidates {
		if p == "" {
			continue
		}

		abs, err := filepath.Abs(p)
		if err != nil || slices.Contains(paths, abs) {
			continue
		}

		paths = append(paths, abs)
	}

	return paths
}

// Root returns the absolute local source root.
func (c *Classifier) Root() string {
	return c.root
}

// SearchPaths returns the directories probed by Lookup, in order.
func (c *Classifier) SearchPaths() []string {
	return slices.Clone(c.paths)
}

// Classify resolves ref and decides whether it is local or external.
func (c *Classifier) Classify(ctx context.Context, ref Ref) (Resolution, error) {
	if err := ctx.Err(); err != nil {
		return Resolution{}, err
	}

	name, err := AbsoluteName(ref)
	if err != nil {
		return Resolution{}, err
	}

	if _, ok := c.excluded[topLevel(name)]; ok {
		return Resolution{Class: External, Reason: ReasonExcluded, Module: &Module{Name: name}}, nil
	}

	if mod, ok := c.Lookup(name); ok {
		if IsUnder(c.root, mod.Path) {
			return Resolution{Class: Local, Reason: ReasonUnderRoot, Module: mod}, nil
		}

		return Resolution{Class: External, Reason: ReasonOutsideRoot, Module: mod}, nil
	}

	if IsStdlib(name) {
		return Resolution{Class: External, Reason: ReasonStdlib, Module: &Module{Name: name}}, nil
	}

	if c.strict {
		return Resolution{}, fmt.Errorf("%w: %s", ErrModuleNotFound, name)
	}

	c.logger.WarnContext(ctx, "unresolved module kept as external import", "module", name)

	return Resolution{Class: External, Reason: ReasonUnresolved, Module: &Module{Name: name}}, nil
}

// Lookup finds the backing file of an absolute dotted name. Regular modules
// and packages on any search path win over namespace directories.
func (c *Classifier) Lookup(name string) (*Module, bool) {
	if mod, ok := c.lookups.Get(name); ok {
		return mod, mod != nil
	}

	mod := c.probe(name)
	c.lookups.Add(name, mod)

	return mod, mod != nil
}

func (c *Classifier) probe(name string) *Module {
	if name == "" {
		return nil
	}

	rel := filepath.Join(strings.Split(name, ".")...)

	for _, dir := range c.paths {
		base := filepath.Join(dir, rel)

		if isFile(base + sourceSuffix) {
			return &Module{Name: name, Path: base + sourceSuffix}
		}

		if isFile(filepath.Join(base, initFile)) {
			return &Module{Name: name, Path: filepath.Join(base, initFile), Package: true}
		}
	}

	for _, dir := range c.paths {
		base := filepath.Join(dir, rel)
		if isDir(base) {
			return &Module{Name: name, Path: base, Package: true, Namespace: true}
		}
	}

	return nil
}

// Source returns the text of a module. Namespace packages have no source.
func (c *Classifier) Source(ctx context.Context, mod *Module) ([]byte, error) {
	if mod.Namespace {
		return nil, nil
	}

	if src, ok := c.sources.Get(mod.Path); ok {
		return src, nil
	}

	src, err := os.ReadFile(mod.Path)
	if err != nil {
		return nil, fmt.Errorf("read module %s: %w", mod.Name, err)
	}

	c.sources.Add(mod.Path, src)
	c.logger.DebugContext(ctx, "module source loaded",
		"module", mod.Name, "path", mod.Path, "size", humanize.Bytes(uint64(len(src))))

	return src, nil
}

// EntryModule describes the entry script. It is named after its file stem
// and belongs to no package, so relative imports inside it cannot resolve.
func EntryModule(path string) (*Module, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve entry: %w", err)
	}

	stem := strings.TrimSuffix(filepath.Base(abs), filepath.Ext(abs))

	return &Module{Name: stem, Path: abs}, nil
}

// AbsoluteName turns a possibly relative reference into an absolute dotted name.
func AbsoluteName(ref Ref) (string, error) {
	if ref.Level == 0 {
		return ref.Name, nil
	}

	if ref.Importer == nil {
		return "", fmt.Errorf("%w: %s", ErrRelativeBeyondTop, strings.Repeat(".", ref.Level)+ref.Name)
	}

	pkg := ref.Importer.PackageName()
	if pkg == "" {
		return "", fmt.Errorf("%w: %s in %s", ErrRelativeBeyondTop,
			strings.Repeat(".", ref.Level)+ref.Name, ref.Importer.Name)
	}

	parts := strings.Split(pkg, ".")
	if ref.Level-1 >= len(parts) {
		return "", fmt.Errorf("%w: %s in %s", ErrRelativeBeyondTop,
			strings.Repeat(".", ref.Level)+ref.Name, ref.Importer.Name)
	}

	base := strings.Join(parts[:len(parts)-(ref.Level-1)], ".")
	if ref.Name == "" {
		return base, nil
	}

	return base + "." + ref.Name, nil
}

// IsUnder reports whether path lies inside dir.
func IsUnder(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}

	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func isFile(path string) bool {
	info, err := os.Stat(path)

	return err == nil && info.Mode().IsRegular()
}

func isDir(path string) bool {
	info, err := os.Stat(path)

	return err == nil && info.IsDir()
}
