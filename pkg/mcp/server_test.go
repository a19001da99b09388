package mcp_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/pybundle/pkg/mcp"
)

func TestServer_ListToolNames(t *testing.T) {
	t.Parallel()

	srv := mcp.NewServer(mcp.ServerDeps{})

	assert.Equal(t, []string{"python_bundle", "python_strip"}, srv.ListToolNames())
}

// connect starts srv on an in-memory transport and returns a client session.
func connect(t *testing.T, srv *mcp.Server) (context.Context, *mcpsdk.ClientSession) {
	t.Helper()

	clientTransport, serverTransport := mcpsdk.NewInMemoryTransports()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)

	serverDone := make(chan error, 1)

	go func() {
		serverDone <- srv.RunWithTransport(ctx, serverTransport)
	}()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test-client", Version: "1.0.0"}, nil)

	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = session.Close()

		cancel()
		<-serverDone
	})

	return ctx, session
}

func callTool(t *testing.T, name string, args map[string]any) *mcpsdk.CallToolResult {
	t.Helper()

	ctx, session := connect(t, mcp.NewServer(mcp.ServerDeps{}))

	result, err := session.CallTool(ctx, &mcpsdk.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)

	return result
}

func decodeText(t *testing.T, result *mcpsdk.CallToolResult, out any) {
	t.Helper()

	text, ok := result.Content[0].(*mcpsdk.TextContent)
	require.True(t, ok)
	require.NoError(t, json.Unmarshal([]byte(text.Text), out))
}

func TestServer_ToolsList(t *testing.T) {
	t.Parallel()

	ctx, session := connect(t, mcp.NewServer(mcp.ServerDeps{}))

	tools, err := session.ListTools(ctx, nil)
	require.NoError(t, err)
	require.Len(t, tools.Tools, 2)

	for _, tool := range tools.Tools {
		assert.NotNil(t, tool.InputSchema, "tool %s missing input schema", tool.Name)
		assert.NotEmpty(t, tool.Description)
	}
}

func TestServer_CallStrip(t *testing.T) {
	t.Parallel()

	result := callTool(t, mcp.ToolNameStrip, map[string]any{
		"code": "from typing import List\ndef f(x: List[int]) -> int:\n    return x[0]\n",
	})
	require.False(t, result.IsError)

	var out mcp.StripOutput
	decodeText(t, result, &out)

	assert.Equal(t, "def f(x):\n    return x[0]\n", out.Code)
	assert.Equal(t, 1, out.Stats.Imports)
	assert.Equal(t, 1, out.Stats.Returns)
}

func TestServer_CallStrip_Errors(t *testing.T) {
	t.Parallel()

	for name, code := range map[string]string{
		"empty":  "",
		"syntax": "def f(x: int\n",
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			result := callTool(t, mcp.ToolNameStrip, map[string]any{"code": code})
			assert.True(t, result.IsError)
		})
	}
}

func TestServer_CallBundle(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "helper.py"),
		[]byte("import math\n\ndef area(r):\n    return math.pi * r * r\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.py"),
		[]byte("from helper import area\nprint(area(2))\n"), 0o600))

	result := callTool(t, mcp.ToolNameBundle, map[string]any{"root": root, "main": "main.py"})
	require.False(t, result.IsError)

	var out mcp.BundleOutput
	decodeText(t, result, &out)

	assert.Equal(t, "import math\n\ndef area(r):\n    return math.pi * r * r\n\nprint(area(2))\n\n", out.Bundle)
	assert.NotEmpty(t, out.Modules)
	assert.Empty(t, out.Cycle)
}

func TestServer_CallBundle_InvalidInput(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	cases := map[string]map[string]any{
		"empty root":    {"root": "", "main": "main.py"},
		"relative root": {"root": "src", "main": "main.py"},
		"missing main":  {"root": root, "main": "absent.py"},
		"main is dir":   {"root": root, "main": "."},
	}

	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			result := callTool(t, mcp.ToolNameBundle, args)
			assert.True(t, result.IsError)
		})
	}
}
