package bundle

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/Sumatoshi-tech/pybundle/pkg/pysyntax"
)

// Render writes doc as Python source: one line per import (members of the
// same from-module grouped on the line of the first one), a blank line, then
// every body statement followed by a blank line.
func Render(w io.Writer, doc *Document) error {
	bw := bufio.NewWriter(w)

	lines := importLines(doc.Imports)
	for _, line := range lines {
		bw.WriteString(line)
		bw.WriteByte('\n')
	}

	// The separating blank line is only written between two non-empty sections.
	if len(lines) > 0 && len(doc.Bodies) > 0 {
		bw.WriteByte('\n')
	}

	for _, body := range doc.Bodies {
		bw.WriteString(body.Text)
		bw.WriteString("\n\n")
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write bundle: %w", err)
	}

	return nil
}

// RenderString renders doc to a string.
func RenderString(doc *Document) string {
	var buf bytes.Buffer

	// bytes.Buffer writes do not fail.
	_ = Render(&buf, doc)

	return buf.String()
}

func importLines(specs []pysyntax.ImportSpec) []string {
	groups := make(map[string][]pysyntax.ImportSpec)
	order := make([]string, 0, len(specs))

	for _, spec := range specs {
		key := groupKey(spec)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}

		groups[key] = append(groups[key], spec)
	}

	lines := make([]string, 0, len(order))

	for _, key := range order {
		group := groups[key]
		if group[0].Kind == pysyntax.ImportPlain {
			lines = append(lines, group[0].String())

			continue
		}

		bindings := make([]string, len(group))
		for i, spec := range group {
			bindings[i] = spec.Binding()
		}

		lines = append(lines, "from "+group[0].FromModule()+" import "+strings.Join(bindings, ", "))
	}

	return lines
}

// groupKey returns the line a record is rendered on. Plain imports get a
// line each; wildcards are kept apart from named members.
func groupKey(spec pysyntax.ImportSpec) string {
	switch {
	case spec.Kind == pysyntax.ImportPlain:
		return spec.Key()
	case spec.Name == pysyntax.Wildcard:
		return "*|" + spec.FromModule()
	default:
		return "from|" + spec.FromModule()
	}
}
