package resolve

import (
	_ "embed"
	"strings"
	"sync"
)

//go:embed stdlib.txt
var stdlibList string

var (
	stdlibOnce  sync.Once
	stdlibNames map[string]struct{}
)

// IsStdlib reports whether the top-level package of name belongs to the
// Python standard library.
func IsStdlib(name string) bool {
	stdlibOnce.Do(func() {
		fields := strings.Fields(stdlibList)
		stdlibNames = make(map[string]struct{}, len(fields))

		for _, f := range fields {
			stdlibNames[f] = struct{}{}
		}
	})

	_, ok := stdlibNames[topLevel(name)]

	return ok
}

func topLevel(name string) string {
	if idx := strings.IndexByte(name, '.'); idx >= 0 {
		return name[:idx]
	}

	return name
}
