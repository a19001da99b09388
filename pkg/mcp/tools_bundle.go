package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/pybundle/pkg/bundle"
	"github.com/Sumatoshi-tech/pybundle/pkg/resolve"
)

// BundleOutput is the python_bundle result.
type BundleOutput struct {
	Bundle  string              `json:"bundle"`
	Modules []bundle.ModuleInfo `json:"modules"`
	Cycle   []string            `json:"cycle,omitempty"`
}

func (s *Server) handleBundle(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input BundleInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	entry, err := validateBundleInput(input)
	if err != nil {
		return errorResult(err)
	}

	classifier, err := resolve.NewClassifier(s.config.ClassifierConfig(input.Root, filepath.Dir(entry), s.logger))
	if err != nil {
		return errorResult(err)
	}

	opts := s.config.BundleOptions(s.logger)
	opts.AllowCycles = opts.AllowCycles || input.AllowCycles

	result, err := bundle.Bundle(ctx, classifier, s.parser, entry, opts)
	if err != nil {
		return errorResult(fmt.Errorf("bundle %s: %w", entry, err))
	}

	return jsonResult(BundleOutput{
		Bundle:  bundle.RenderString(result.Document),
		Modules: result.Modules,
		Cycle:   result.Cycle,
	})
}

// validateBundleInput checks the root and returns the absolute entry path.
func validateBundleInput(input BundleInput) (string, error) {
	if input.Root == "" {
		return "", ErrEmptyRoot
	}

	if !filepath.IsAbs(input.Root) {
		return "", fmt.Errorf("%w: %s", ErrRootNotAbsolute, input.Root)
	}

	info, err := os.Stat(input.Root)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrRootNotDirectory, input.Root)
	}

	if input.Main == "" {
		return "", ErrEmptyMain
	}

	entry := input.Main
	if !filepath.IsAbs(entry) {
		entry = filepath.Join(input.Root, entry)
	}

	info, err = os.Stat(entry)
	if err != nil || !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s", ErrMainNotFile, entry)
	}

	return entry, nil
}
