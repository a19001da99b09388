package bundle

import (
	"errors"
	"strings"
)

// ErrImportCycle indicates the local modules import each other in a cycle.
var ErrImportCycle = errors.New("import cycle")

// CycleError reports an import cycle as a closed path of module names.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return ErrImportCycle.Error() + ": " + strings.Join(e.Path, " -> ")
}

// Unwrap makes errors.Is(err, ErrImportCycle) hold.
func (e *CycleError) Unwrap() error {
	return ErrImportCycle
}
