package strip_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/pybundle/pkg/pysyntax"
	"github.com/Sumatoshi-tech/pybundle/pkg/strip"
)

func stripText(t *testing.T, opts strip.Options, src string) (string, strip.Stats) {
	t.Helper()

	out, stats, err := strip.New(opts).StripSource(context.Background(), pysyntax.NewParser(), "test.py", []byte(src))
	require.NoError(t, err)

	return string(out), stats
}

func TestStrip_Signature(t *testing.T) {
	t.Parallel()

	out, stats := stripText(t, strip.Options{}, "def f(x: int, y: str) -> bool: return x\n")

	assert.Equal(t, "def f(x, y): return x\n", out)
	assert.Equal(t, strip.Stats{Functions: 1, Parameters: 2, Returns: 1}, stats)
}

func TestStrip_Rules(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "default value",
			src:  "def f(x: int = 1, y=2): pass\n",
			want: "def f(x=1, y=2): pass\n",
		},
		{
			name: "keyword only and varargs kept",
			src:  "def f(a: int, *args: str, key: bool = True, **kw: dict) -> None: pass\n",
			want: "def f(a, *args: str, key: bool = True, **kw: dict): pass\n",
		},
		{
			name: "bare star",
			src:  "def f(a: int, *, b: int): pass\n",
			want: "def f(a, *, b: int): pass\n",
		},
		{
			name: "positional only kept",
			src:  "def f(a: int, /, b: int): pass\n",
			want: "def f(a: int, /, b): pass\n",
		},
		{
			name: "methods async and nested",
			src: "class C:\n    async def m(self, x: int) -> int:\n" +
				"        def inner(y: str) -> str:\n            return y\n        return x\n",
			want: "class C:\n    async def m(self, x):\n" +
				"        def inner(y):\n            return y\n        return x\n",
		},
		{
			name: "decorated",
			src:  "@cache\ndef f(x: int) -> int:\n    return x\n",
			want: "@cache\ndef f(x):\n    return x\n",
		},
		{
			name: "comments preserved",
			src:  "# header\ndef f(x: int):  # trailing\n    # body\n    return x\n",
			want: "# header\ndef f(x):  # trailing\n    # body\n    return x\n",
		},
		{
			name: "variable annotations untouched",
			src:  "count: int = 0\n",
			want: "count: int = 0\n",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			out, _ := stripText(t, strip.Options{}, tc.src)
			assert.Equal(t, tc.want, out)
		})
	}
}

func TestStrip_AllParameters(t *testing.T) {
	t.Parallel()

	out, stats := stripText(t, strip.Options{AllParameters: true},
		"def f(a: int, /, b: int, *args: str, key: bool = True, **kw: dict) -> None: pass\n")

	assert.Equal(t, "def f(a, /, b, *args, key=True, **kw): pass\n", out)
	assert.Equal(t, 5, stats.Parameters)
}

func TestStrip_Imports(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		src     string
		want    string
		removed int
	}{
		{
			name:    "from typing only",
			src:     "from typing import List\n",
			want:    "",
			removed: 1,
		},
		{
			name:    "plain keeps other names",
			src:     "import typing, os\nprint(os.sep)\n",
			want:    "import os\nprint(os.sep)\n",
			removed: 1,
		},
		{
			name:    "plain alone",
			src:     "import typing as t\nx = 1\n",
			want:    "x = 1\n",
			removed: 1,
		},
		{
			name:    "submodule and lookalikes kept",
			src:     "import typing_extensions\nfrom typing.io import IO\nimport os\n",
			want:    "import typing_extensions\nfrom typing.io import IO\nimport os\n",
			removed: 0,
		},
		{
			name:    "future untouched",
			src:     "from __future__ import annotations\nfrom typing import Dict, List\n",
			want:    "from __future__ import annotations\n",
			removed: 2,
		},
		{
			name:    "emptied block gets pass",
			src:     "if TYPE_CHECKING:\n    from typing import List\n    import typing\nx = 1\n",
			want:    "if TYPE_CHECKING:\n    pass\nx = 1\n",
			removed: 2,
		},
		{
			name:    "partially emptied block",
			src:     "def f():\n    import typing\n    return 1\n",
			want:    "def f():\n    return 1\n",
			removed: 1,
		},
		{
			name:    "semicolons",
			src:     "import typing; import os\n",
			want:    "import os\n",
			removed: 1,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			out, stats := stripText(t, strip.Options{}, tc.src)
			assert.Equal(t, tc.want, out)
			assert.Equal(t, tc.removed, stats.Imports)
		})
	}
}

func TestStrip_CustomModules(t *testing.T) {
	t.Parallel()

	out, stats := stripText(t, strip.Options{Modules: []string{"typing", "typing_extensions"}},
		"import typing_extensions\nfrom typing_extensions import Self\nimport typing\nx = 1\n")

	assert.Equal(t, "x = 1\n", out)
	assert.Equal(t, 3, stats.Imports)
	assert.True(t, stats.Changed())
}

func TestStrip_PreservesStatementCount(t *testing.T) {
	t.Parallel()

	src := "def f(x: int, y: str) -> bool:\n    if x:\n        return y\n    return x\n\nclass A:\n    def g(self) -> None:\n        pass\n"
	out, _ := stripText(t, strip.Options{}, src)

	parser := pysyntax.NewParser()

	before, err := parser.Parse(context.Background(), "before.py", []byte(src))
	require.NoError(t, err)
	t.Cleanup(before.Close)

	after, err := parser.Parse(context.Background(), "after.py", []byte(out))
	require.NoError(t, err)
	t.Cleanup(after.Close)

	require.Len(t, after.Statements(), len(before.Statements()))

	for i, stmt := range before.Statements() {
		assert.Equal(t, stmt.Kind, after.Statements()[i].Kind)
	}
}

func TestStrip_NoChanges(t *testing.T) {
	t.Parallel()

	src := "def f(x, y=1):\n    return x\n"
	out, stats := stripText(t, strip.Options{}, src)

	assert.Equal(t, src, out)
	assert.False(t, stats.Changed())
}

func TestStrip_SyntaxError(t *testing.T) {
	t.Parallel()

	_, _, err := strip.New(strip.Options{}).StripSource(context.Background(), pysyntax.NewParser(), "bad.py", []byte("def f(x: int\n"))
	require.ErrorIs(t, err, pysyntax.ErrSyntax)
}
