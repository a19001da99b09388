package pysyntax

import (
	"bytes"
	"sort"

	sitter "github.com/alexaandru/go-tree-sitter-bare"
)

// Edit replaces the source bytes [Start, End) with Text.
type Edit struct {
	Start uint
	End   uint
	Text  string
}

// Replace returns an edit replacing the whole node with text.
func Replace(n sitter.Node, text string) Edit {
	return Edit{Start: n.StartByte(), End: n.EndByte(), Text: text}
}

// Apply returns a copy of src with the edits applied. Edits are applied in
// offset order; an edit overlapping an earlier one is dropped.
func Apply(src []byte, edits []Edit) []byte {
	return applyRange(src, 0, uint(len(src)), edits)
}

// TextWithEdits returns the text of n with the edits that fall inside it applied.
func (t *Tree) TextWithEdits(n sitter.Node, edits []Edit) string {
	return string(applyRange(t.Source, n.StartByte(), n.EndByte(), edits))
}

func applyRange(src []byte, start, end uint, edits []Edit) []byte {
	sorted := make([]Edit, 0, len(edits))

	for _, e := range edits {
		if e.Start >= start && e.End <= end && e.Start <= e.End {
			sorted = append(sorted, e)
		}
	}

	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	var buf bytes.Buffer

	buf.Grow(int(end - start))

	cursor := start

	for _, e := range sorted {
		if e.Start < cursor {
			continue
		}

		buf.Write(src[cursor:e.Start])
		buf.WriteString(e.Text)
		cursor = e.End
	}

	buf.Write(src[cursor:end])

	return buf.Bytes()
}

// DeleteStatement returns an edit removing a statement. A statement alone on
// its lines is removed together with its indentation and line break; a
// statement sharing a line through `;` is removed with its separator.
func (t *Tree) DeleteStatement(n sitter.Node) Edit {
	src := t.Source
	start, end := n.StartByte(), n.EndByte()

	after := skipBlanks(src, end)
	if after < uint(len(src)) && src[after] == ';' {
		return Edit{Start: start, End: skipBlanks(src, after+1)}
	}

	before := start
	for before > 0 && isBlank(src[before-1]) {
		before--
	}

	if before > 0 && src[before-1] == ';' {
		return Edit{Start: before - 1, End: end}
	}

	if before == 0 || src[before-1] == '\n' {
		if after >= uint(len(src)) {
			return Edit{Start: before, End: after}
		}

		if src[after] == '\n' {
			return Edit{Start: before, End: after + 1}
		}

		if src[after] == '\r' && after+1 < uint(len(src)) && src[after+1] == '\n' {
			return Edit{Start: before, End: after + 2}
		}
	}

	return Edit{Start: start, End: end}
}

func skipBlanks(src []byte, pos uint) uint {
	for pos < uint(len(src)) && isBlank(src[pos]) {
		pos++
	}

	return pos
}

func isBlank(c byte) bool {
	return c == ' ' || c == '\t'
}
