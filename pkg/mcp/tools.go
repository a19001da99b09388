package mcp

import (
	"encoding/json"
	"errors"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Tool names.
const (
	ToolNameBundle = "python_bundle"
	ToolNameStrip  = "python_strip"
)

// MaxCodeInputBytes is the maximum allowed size for inline code input (1 MB).
const MaxCodeInputBytes = 1 << 20

// Sentinel errors for tool input validation.
var (
	ErrEmptyCode        = errors.New("code parameter is required and must not be empty")
	ErrCodeTooLarge     = errors.New("code input exceeds maximum size")
	ErrEmptyRoot        = errors.New("root parameter is required and must not be empty")
	ErrRootNotAbsolute  = errors.New("root must be an absolute path")
	ErrRootNotDirectory = errors.New("root is not a directory")
	ErrEmptyMain        = errors.New("main parameter is required and must not be empty")
	ErrMainNotFile      = errors.New("main is not a regular file")
)

// BundleInput is the input schema for the python_bundle tool.
type BundleInput struct {
	Root        string `json:"root"                   jsonschema:"absolute path of the local source root"`
	Main        string `json:"main"                   jsonschema:"entry script, absolute or relative to root"`
	AllowCycles bool   `json:"allow_cycles,omitempty" jsonschema:"bundle even when local modules import each other in a cycle"`
}

// StripInput is the input schema for the python_strip tool.
type StripInput struct {
	Code          string   `json:"code"                     jsonschema:"Python source to strip"`
	AllParameters bool     `json:"all_parameters,omitempty" jsonschema:"also strip positional-only, variadic and keyword-only parameters"`
	Modules       []string `json:"modules,omitempty"        jsonschema:"annotation-only modules whose imports are removed (default: typing)"`
}

// ToolOutput is a generic wrapper for tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

// errorResult builds a CallToolResult with isError set.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

// jsonResult builds a CallToolResult with JSON-encoded content.
func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: value}, nil
}

func validateCodeInput(code string) error {
	if code == "" {
		return ErrEmptyCode
	}

	if len(code) > MaxCodeInputBytes {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrCodeTooLarge, len(code), MaxCodeInputBytes)
	}

	return nil
}
