package config

import (
	"log/slog"
	"os"
	"slices"

	"github.com/Sumatoshi-tech/pybundle/pkg/bundle"
	"github.com/Sumatoshi-tech/pybundle/pkg/resolve"
	"github.com/Sumatoshi-tech/pybundle/pkg/strip"
)

// ClassifierConfig builds the resolver settings for a run rooted at root
// whose entry script lives in entryDir.
func (c *Config) ClassifierConfig(root, entryDir string, logger *slog.Logger) resolve.Config {
	cfg := resolve.Config{
		Root:      root,
		EntryDir:  entryDir,
		Paths:     slices.Clone(c.Resolver.Paths),
		External:  slices.Clone(c.Resolver.External),
		Strict:    c.Resolver.Strict,
		CacheSize: c.Resolver.CacheSize,
		Logger:    logger,
	}

	if c.Resolver.UsePythonPath {
		cfg.PythonPath = os.Getenv("PYTHONPATH")
	}

	return cfg
}

// BundleOptions builds the walker options.
func (c *Config) BundleOptions(logger *slog.Logger) bundle.Options {
	return bundle.Options{
		DropMainGuards: c.Bundle.DropMainGuards,
		AllowCycles:    c.Bundle.AllowCycles,
		Logger:         logger,
	}
}

// StripOptions builds the stripper options.
func (c *Config) StripOptions(logger *slog.Logger) strip.Options {
	return strip.Options{
		Modules:       slices.Clone(c.Strip.Modules),
		AllParameters: c.Strip.AllParameters,
		Logger:        logger,
	}
}
