// Package pysyntax parses Python source into tree-sitter syntax trees and
// exposes the statement, import and rewrite primitives used by the bundler
// and the annotation stripper.
package pysyntax

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/alexaandru/go-sitter-forest/python"
	sitter "github.com/alexaandru/go-tree-sitter-bare"
)

// Sentinel errors for parser operations.
var (
	// ErrSyntax indicates the source contains syntax the grammar could not parse.
	ErrSyntax = errors.New("python syntax error")

	errNoRootNode = errors.New("pysyntax: no root node")
	errPoolType   = errors.New("pysyntax: pool returned unexpected type")
)

var (
	languageOnce sync.Once
	language     *sitter.Language
)

// Language returns the tree-sitter Python language, initialized once.
func Language() *sitter.Language {
	languageOnce.Do(func() {
		language = sitter.NewLanguage(python.GetLanguage())
	})

	return language
}

// Parser parses Python source. It is safe for concurrent use; each call
// borrows a tree-sitter parser from a pool.
type Parser struct {
	pool sync.Pool
}

// NewParser creates a Parser bound to the Python grammar.
func NewParser() *Parser {
	lang := Language()

	return &Parser{
		pool: sync.Pool{
			New: func() any {
				tsParser := sitter.NewParser()
				tsParser.SetLanguage(lang)

				return tsParser
			},
		},
	}
}

// Parse parses content into a Tree. The filename is only used for error
// messages. Sources the grammar cannot fully parse fail with ErrSyntax.
// The caller must Close the returned tree.
func (p *Parser) Parse(ctx context.Context, filename string, content []byte) (*Tree, error) {
	tsParser, ok := p.pool.Get().(*sitter.Parser)
	if !ok {
		return nil, errPoolType
	}

	defer p.pool.Put(tsParser)

	tsTree, err := tsParser.ParseString(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}

	root := tsTree.RootNode()
	if root.IsNull() {
		tsTree.Close()

		return nil, fmt.Errorf("%s: %w", filename, errNoRootNode)
	}

	if root.HasError() {
		row, col := firstErrorPosition(root)
		tsTree.Close()

		return nil, fmt.Errorf("%w: %s:%d:%d", ErrSyntax, filename, row, col)
	}

	return &Tree{
		Filename: filename,
		Source:   content,
		tree:     tsTree,
		root:     root,
	}, nil
}

// firstErrorPosition returns the 1-based line and column of the first
// erroneous node below n.
func firstErrorPosition(n sitter.Node) (int, int) {
	for {
		if n.Type() == TypeError {
			break
		}

		next := sitter.Node{}

		for idx := range n.ChildCount() {
			child := n.Child(idx)
			if child.Type() == TypeError || child.HasError() {
				next = child

				break
			}
		}

		if next.IsNull() {
			break
		}

		n = next
	}

	start := n.StartPoint()

	return int(start.Row) + 1, int(start.Column) + 1
}
