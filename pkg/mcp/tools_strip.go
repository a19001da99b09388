package mcp

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/pybundle/pkg/strip"
)

// StripOutput is the python_strip result.
type StripOutput struct {
	Code  string      `json:"code"`
	Stats strip.Stats `json:"stats"`
}

func (s *Server) handleStrip(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input StripInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	err := validateCodeInput(input.Code)
	if err != nil {
		return errorResult(err)
	}

	opts := s.config.StripOptions(s.logger)
	opts.AllParameters = opts.AllParameters || input.AllParameters

	if len(input.Modules) > 0 {
		opts.Modules = input.Modules
	}

	out, stats, err := strip.New(opts).StripSource(ctx, s.parser, "input.py", []byte(input.Code))
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(StripOutput{Code: string(out), Stats: stats})
}
