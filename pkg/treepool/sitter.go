package treepool

import (
	"context"
	"fmt"
	"log/slog"

	sitter "github.com/alexaandru/go-tree-sitter-bare"

	"github.com/Chris-Cullins/TestIntel-sub003/pkg/observability"
)

// SitterTree is the concrete tree type used by NewSitterPool.
type SitterTree = *sitter.Tree

// NewSitterPool builds a Pool wired to github.com/alexaandru/go-tree-sitter-bare.
// language is supplied by the caller (the source-level analyzer owns grammar
// selection and loading — parsing itself is out of this module's scope); a
// fresh *sitter.Parser is created for every parse since the bare runtime's
// parsers are not safe for concurrent reuse across goroutines.
func NewSitterPool(contentCapacity, reuseCapacity int, language *sitter.Language, logger *slog.Logger, metrics *observability.CacheMetrics) *Pool[SitterTree] {
	parse := func(ctx context.Context, old SitterTree, content []byte) (SitterTree, error) {
		parser := sitter.NewParser()
		parser.SetLanguage(language)

		tree, err := parser.ParseString(ctx, old, content)
		if err != nil {
			return nil, fmt.Errorf("treepool: parse string: %w", err)
		}

		return tree, nil
	}

	closeFn := func(tree SitterTree) {
		if tree != nil {
			tree.Close()
		}
	}

	return New[SitterTree](contentCapacity, reuseCapacity, parse, closeFn, logger, metrics)
}
