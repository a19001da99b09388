package bundle_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/pybundle/pkg/bundle"
	"github.com/Sumatoshi-tech/pybundle/pkg/pysyntax"
)

func reparse(t *testing.T, text string) *bundle.Document {
	t.Helper()

	tree, err := pysyntax.NewParser().Parse(context.Background(), "bundle.py", []byte(text))
	require.NoError(t, err)
	t.Cleanup(tree.Close)

	return bundle.DocumentOf(tree)
}

func TestImportSet_DedupesAndOrders(t *testing.T) {
	t.Parallel()

	set := bundle.NewImportSet()

	assert.True(t, set.Add(pysyntax.ImportSpec{Kind: pysyntax.ImportPlain, Module: "os"}))
	assert.True(t, set.Add(pysyntax.ImportSpec{Kind: pysyntax.ImportFrom, Module: "typing", Name: "List"}))
	assert.True(t, set.Add(pysyntax.ImportSpec{Kind: pysyntax.ImportFuture, Module: "__future__", Name: "annotations"}))
	assert.False(t, set.Add(pysyntax.ImportSpec{Kind: pysyntax.ImportPlain, Module: "os"}))
	assert.True(t, set.Add(pysyntax.ImportSpec{Kind: pysyntax.ImportPlain, Module: "os", Alias: "o"}))

	specs := set.Specs()
	require.Len(t, specs, 4)
	assert.Equal(t, 4, set.Len())
	assert.Equal(t, pysyntax.ImportFuture, specs[0].Kind)
	assert.Equal(t, "os", specs[1].Module)
	assert.Equal(t, "List", specs[2].Name)
	assert.Equal(t, "o", specs[3].Alias)
}

func TestRender_GroupsFromImports(t *testing.T) {
	t.Parallel()

	doc := &bundle.Document{
		Imports: []pysyntax.ImportSpec{
			{Kind: pysyntax.ImportFrom, Module: "typing", Name: "List"},
			{Kind: pysyntax.ImportPlain, Module: "os"},
			{Kind: pysyntax.ImportFrom, Module: "typing", Name: "Dict", Alias: "D"},
			{Kind: pysyntax.ImportFrom, Module: "typing", Name: pysyntax.Wildcard},
			{Kind: pysyntax.ImportPlain, Module: "numpy", Alias: "np"},
		},
		Bodies: []bundle.Body{{Text: "x = 1"}, {Text: "def f():\n    return x"}},
	}

	var buf bytes.Buffer

	require.NoError(t, bundle.Render(&buf, doc))
	assert.Equal(t, `from typing import List, Dict as D
import os
from typing import *
import numpy as np

x = 1

def f():
    return x

`, buf.String())
}

func TestRender_EmptyParts(t *testing.T) {
	t.Parallel()

	assert.Empty(t, bundle.RenderString(&bundle.Document{}))
	assert.Equal(t, "import os\n", bundle.RenderString(&bundle.Document{
		Imports: []pysyntax.ImportSpec{{Kind: pysyntax.ImportPlain, Module: "os"}},
	}))
	assert.Equal(t, "pass\n\n", bundle.RenderString(&bundle.Document{Bodies: []bundle.Body{{Text: "pass"}}}))
}

func TestRender_Idempotent(t *testing.T) {
	t.Parallel()

	root := writeProject(t, map[string]string{
		"main.py": "from __future__ import annotations\nimport os\nfrom helper import f\n" +
			"from typing import List\n\n# entry\nclass App:\n    # keep\n    def run(self) -> None:\n        f()\n",
		"helper.py": "from typing import Dict, List as L\nimport numpy as np, os\n\n" +
			"@decorator\ndef f():\n    return np.zeros(3)\n\nif True:\n    pass\n",
	})

	result, err := run(t, root, false, bundle.Options{})
	require.NoError(t, err)

	first := bundle.RenderString(result.Document)
	second := bundle.RenderString(reparse(t, first))
	third := bundle.RenderString(reparse(t, second))

	assertText(t, first, second)
	assertText(t, second, third)
}
