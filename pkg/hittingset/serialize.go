package hittingset

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/fragmentdb/fragment/pkg/rules"
)

// WriteUnion writes nodes as the Python-literal string-list form the
// source writes via repr() to union_greedy.txt / union_optimal.txt
// (spec.md §6): `['R:k:c', ...]`.
func WriteUnion(w io.Writer, nodes []rules.Node) error {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = fmt.Sprintf("'%s'", n.String())
	}
	_, err := fmt.Fprintf(w, "[%s]", strings.Join(parts, ", "))
	return err
}

var unionTokenRe = regexp.MustCompile(`'([^']*)'`)

// ReadUnion parses the union_greedy.txt literal form back into nodes.
func ReadUnion(data string) ([]rules.Node, error) {
	matches := unionTokenRe.FindAllStringSubmatch(data, -1)
	nodes := make([]rules.Node, 0, len(matches))
	for _, m := range matches {
		n, err := rules.ParseNode(m[1])
		if err != nil {
			return nil, fmt.Errorf("parsing union node %q: %w", m[1], err)
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}
