package bundle_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/pybundle/pkg/bundle"
	"github.com/Sumatoshi-tech/pybundle/pkg/pysyntax"
	"github.com/Sumatoshi-tech/pybundle/pkg/resolve"
)

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()

	root := t.TempDir()

	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}

	return root
}

func run(t *testing.T, root string, strict bool, opts bundle.Options) (*bundle.Result, error) {
	t.Helper()

	classifier, err := resolve.NewClassifier(resolve.Config{Root: root, EntryDir: root, Strict: strict})
	require.NoError(t, err)

	return bundle.Bundle(context.Background(), classifier, pysyntax.NewParser(), filepath.Join(root, "main.py"), opts)
}

func render(t *testing.T, root string) string {
	t.Helper()

	result, err := run(t, root, true, bundle.Options{DropMainGuards: true})
	require.NoError(t, err)

	return bundle.RenderString(result.Document)
}

func assertText(t *testing.T, want, got string) {
	t.Helper()

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("bundle mismatch (-want +got):\n%s", diff)
	}
}

func TestBundle_HelperScenario(t *testing.T) {
	t.Parallel()

	root := writeProject(t, map[string]string{
		"main.py":   "from helper import f\n\nprint(f())\n",
		"helper.py": "import math\n\ndef f(): return math.sqrt(4)\n",
	})

	got := render(t, root)

	assertText(t, "import math\n\ndef f(): return math.sqrt(4)\n\nprint(f())\n\n", got)
	assert.Equal(t, 1, strings.Count(got, "import math"))
	assert.Equal(t, 1, strings.Count(got, "def f()"))
	assert.Less(t, strings.Index(got, "def f()"), strings.Index(got, "print(f())"))
}

func TestBundle_DependencyOrdering(t *testing.T) {
	t.Parallel()

	root := writeProject(t, map[string]string{
		"main.py": "import a\n\nmain_value = 3\n",
		"a.py":    "import b\n\na_value = 2\n",
		"b.py":    "b_value = 1\n",
	})

	assertText(t, "b_value = 1\n\na_value = 2\n\nmain_value = 3\n\n", render(t, root))
}

func TestBundle_NoDuplication(t *testing.T) {
	t.Parallel()

	root := writeProject(t, map[string]string{
		"main.py":   "import shared\nimport a\nfrom b import thing\n\nrun(thing)\n",
		"a.py":      "from shared import base\n\ndef run(x): return base(x)\n",
		"b.py":      "import shared\nimport a\n\nthing = 1\n",
		"shared.py": "def base(x): return x\n",
	})

	got := render(t, root)

	assertText(t, "def base(x): return x\n\ndef run(x): return base(x)\n\nthing = 1\n\nrun(thing)\n\n", got)
	assert.Equal(t, 1, strings.Count(got, "def base"))
}

func TestBundle_DeduplicatesExternalImports(t *testing.T) {
	t.Parallel()

	root := writeProject(t, map[string]string{
		"main.py": "from __future__ import annotations\nimport os\nimport  os\n" +
			"from helper import f\nfrom typing import List\n\nf()\n",
		"helper.py": "from __future__ import annotations\nimport os, json\nfrom typing import List, Dict\n\ndef f(): pass\n",
	})

	want := `from __future__ import annotations
import os
import json
from typing import List, Dict

def f(): pass

f()

`
	assertText(t, want, render(t, root))
}

func TestBundle_RelativeImports(t *testing.T) {
	t.Parallel()

	root := writeProject(t, map[string]string{
		"main.py":         "from pkg.util import u\n\nprint(u())\n",
		"pkg/__init__.py": "",
		"pkg/consts.py":   "X = 1\n",
		"pkg/util.py":     "from . import consts\n\ndef u(): return consts.X\n",
	})

	assertText(t, "X = 1\n\ndef u(): return consts.X\n\nprint(u())\n\n", render(t, root))
}

func TestBundle_RelativeImportInEntryFails(t *testing.T) {
	t.Parallel()

	root := writeProject(t, map[string]string{
		"main.py":   "from . import helper\n",
		"helper.py": "",
	})

	_, err := run(t, root, true, bundle.Options{})
	require.ErrorIs(t, err, resolve.ErrRelativeBeyondTop)
}

func TestBundle_UnresolvedModule(t *testing.T) {
	t.Parallel()

	root := writeProject(t, map[string]string{
		"main.py": "import mystery_pkg\n\nx = 1\n",
	})

	_, err := run(t, root, true, bundle.Options{})
	require.ErrorIs(t, err, resolve.ErrModuleNotFound)
	assert.Contains(t, err.Error(), "main:1")

	result, err := run(t, root, false, bundle.Options{})
	require.NoError(t, err)
	assertText(t, "import mystery_pkg\n\nx = 1\n\n", bundle.RenderString(result.Document))
}

func TestBundle_SyntaxErrorAborts(t *testing.T) {
	t.Parallel()

	root := writeProject(t, map[string]string{
		"main.py":   "import broken\n",
		"broken.py": "def nope(:\n",
	})

	_, err := run(t, root, true, bundle.Options{})
	require.ErrorIs(t, err, pysyntax.ErrSyntax)
}

func TestBundle_Cycle(t *testing.T) {
	t.Parallel()

	root := writeProject(t, map[string]string{
		"main.py": "import a\n\nstart()\n",
		"a.py":    "import b\n\ndef start(): return b_value\n",
		"b.py":    "import a\n\nb_value = 1\n",
	})

	_, err := run(t, root, true, bundle.Options{})
	require.ErrorIs(t, err, bundle.ErrImportCycle)

	var cycleErr *bundle.CycleError

	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, []string{"a", "b", "a"}, cycleErr.Path)

	result, err := run(t, root, true, bundle.Options{AllowCycles: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "a"}, result.Cycle)
	assertText(t, "b_value = 1\n\ndef start(): return b_value\n\nstart()\n\n", bundle.RenderString(result.Document))
}

func TestBundle_NestedLocalImports(t *testing.T) {
	t.Parallel()

	root := writeProject(t, map[string]string{
		"main.py":   "def run():\n    from helper import f\n    import helper, json\n    return f()\n",
		"helper.py": "def f(): return 1\n",
	})

	want := "import json\n\ndef f(): return 1\n\ndef run():\n    pass\n    import json\n    return f()\n\n"
	assertText(t, want, render(t, root))
}

func TestBundle_GuardedImportsStayInPlace(t *testing.T) {
	t.Parallel()

	root := writeProject(t, map[string]string{
		"main.py": "try:\n    import ujson as json\nexcept ImportError:\n    import json\n",
	})

	result, err := run(t, root, false, bundle.Options{})
	require.NoError(t, err)
	assertText(t, "try:\n    import ujson as json\nexcept ImportError:\n    import json\n\n",
		bundle.RenderString(result.Document))
}

func TestBundle_MainGuards(t *testing.T) {
	t.Parallel()

	root := writeProject(t, map[string]string{
		"main.py":   "import helper\n\nif __name__ == \"__main__\":\n    helper.go()\n",
		"helper.py": "def go(): pass\n\nif __name__ == '__main__':\n    go()\n",
	})

	assertText(t, "def go(): pass\n\nif __name__ == \"__main__\":\n    helper.go()\n\n", render(t, root))

	result, err := run(t, root, true, bundle.Options{})
	require.NoError(t, err)
	assert.Len(t, result.Document.Bodies, 3)
}

func TestBundle_MainGuardImportsNotInlined(t *testing.T) {
	t.Parallel()

	root := writeProject(t, map[string]string{
		"main.py": "import helper\n\nhelper.go()\n",
		"helper.py": "def go(): pass\n\nif __name__ == '__main__':\n" +
			"    import selftest\n    import argparse\n    go()\n",
		"selftest.py": "print('running helper self tests')\n",
	})

	result, err := run(t, root, true, bundle.Options{DropMainGuards: true})
	require.NoError(t, err)

	assertText(t, "def go(): pass\n\nhelper.go()\n\n", bundle.RenderString(result.Document))

	for _, mod := range result.Modules {
		assert.NotEqual(t, "selftest", mod.Name)
		assert.NotEqual(t, "argparse", mod.Name)
	}
}

func TestBundle_SubmoduleImportingFromOwnPackage(t *testing.T) {
	t.Parallel()

	root := writeProject(t, map[string]string{
		"main.py":         "from pkg import Foo\n\nprint(Foo())\n",
		"pkg/__init__.py": "from .core import Foo\n",
		"pkg/core.py":     "from . import utils\n\nclass Foo: pass\n",
		"pkg/utils.py":    "def helper(): pass\n",
	})

	result, err := run(t, root, true, bundle.Options{})
	require.NoError(t, err)

	assert.Nil(t, result.Cycle)
	assertText(t, "def helper(): pass\n\nclass Foo: pass\n\nprint(Foo())\n\n",
		bundle.RenderString(result.Document))
	assert.Equal(t, []string{"pkg.utils"}, result.Graph.Children("pkg.core"))
}

func TestBundle_PackagesAndSubmodules(t *testing.T) {
	t.Parallel()

	root := writeProject(t, map[string]string{
		"main.py":         "from app import models\nimport app.views\n\nmodels.load()\n",
		"app/__init__.py": "VERSION = 1\n",
		"app/models.py":   "def load(): pass\n",
		"app/views.py":    "from .models import load\n\ndef show(): load()\n",
	})

	result, err := run(t, root, true, bundle.Options{})
	require.NoError(t, err)

	assertText(t, "VERSION = 1\n\ndef load(): pass\n\ndef show(): load()\n\nmodels.load()\n\n",
		bundle.RenderString(result.Document))

	names := make([]string, 0, len(result.Modules))
	for _, mod := range result.Modules {
		names = append(names, mod.Name)
		assert.Equal(t, resolve.Local, mod.Class, mod.Name)
	}

	assert.Equal(t, []string{"main", "app", "app.models", "app.views"}, names)
	assert.Equal(t, []string{"app", "app.models", "app.views"}, result.Graph.Children("main"))
}

func TestBundle_ExternalModulesInGraph(t *testing.T) {
	t.Parallel()

	root := writeProject(t, map[string]string{
		"main.py": "import os\nimport json\n",
	})

	result, err := run(t, root, true, bundle.Options{})
	require.NoError(t, err)

	require.Len(t, result.Modules, 3)
	assert.Equal(t, resolve.ReasonExcluded, result.Modules[1].Reason)
	assert.Equal(t, resolve.ReasonStdlib, result.Modules[2].Reason)
	assert.Equal(t, []string{"os", "json"}, result.Graph.Children("main"))
}

func TestWalker_CanceledContext(t *testing.T) {
	t.Parallel()

	root := writeProject(t, map[string]string{
		"main.py":   "import helper\n",
		"helper.py": "x = 1\n",
	})

	classifier, err := resolve.NewClassifier(resolve.Config{Root: root, Strict: true})
	require.NoError(t, err)

	parser := pysyntax.NewParser()

	tree, err := parser.Parse(context.Background(), "main.py", []byte("import helper\n"))
	require.NoError(t, err)
	t.Cleanup(tree.Close)

	entry, err := resolve.EntryModule(filepath.Join(root, "main.py"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = bundle.NewWalker(classifier, parser, bundle.Options{}).Walk(ctx, tree, entry)
	require.ErrorIs(t, err, context.Canceled)
}
