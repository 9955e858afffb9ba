// Package paths implements the instance-supported proof path extractor
// (C6, spec.md §4.6): given one proof graph from pkg/derivation, it walks
// from every leaf fact up to the sensitive root, recording the chain of
// original-instance (Fs) facts encountered along the way. Grounded on
// original_source/a6_0_traversal.py, GraphTraversal.traverse_graph.
package paths

import (
	"context"

	"github.com/fragmentdb/fragment/pkg/derivation"
	"github.com/fragmentdb/fragment/pkg/rules"
)

// Extractor walks derivation graphs into instance-supported paths.
type Extractor struct {
	IsBaseFact func(ctx context.Context, n rules.Node) (bool, error)
}

// New builds an Extractor using isBaseFact to test I-set membership.
func New(isBaseFact func(ctx context.Context, n rules.Node) (bool, error)) *Extractor {
	return &Extractor{IsBaseFact: isBaseFact}
}

// Path is one chain of original Fs facts supporting a single derivation
// branch, ordered from the deepest base fact to the one nearest the root.
type Path []rules.Node

// ExtractGraph returns every unique instance-supported path in g. Every
// node reachable in g already validated against the chased instance during
// derivation (pkg/derivation.Expander.Expand only ever adds nodes it
// confirmed exist), so unlike the source's traverse_graph this does not
// re-check "node in C" — only "node in I" (Fs) needs a fresh lookup.
func (e *Extractor) ExtractGraph(ctx context.Context, g derivation.Graph) ([]Path, error) {
	incoming := make(map[rules.Node][]rules.Node, len(g))
	for n := range g {
		if _, ok := incoming[n]; !ok {
			incoming[n] = nil
		}
	}
	for u, supports := range g {
		for _, v := range supports {
			incoming[v] = append(incoming[v], u)
		}
	}

	var roots []rules.Node
	for n, ins := range incoming {
		if len(ins) == 0 {
			roots = append(roots, n)
		}
	}

	var all []Path
	for _, root := range derivation.SortedNodes(subgraphFrom(roots)) {
		paths, err := e.traverse(ctx, g, root, nil)
		if err != nil {
			return nil, err
		}
		all = append(all, paths...)
	}
	return dedupe(all), nil
}

// traverse mirrors the source's depth-first `traverse`: it walks forward
// along g's support edges, extending pathSoFar with every Fs-base node it
// passes through, and records a finished path whenever it reaches a node
// with no further forward edges.
func (e *Extractor) traverse(ctx context.Context, g derivation.Graph, node rules.Node, pathSoFar Path) ([]Path, error) {
	isBase, err := e.IsBaseFact(ctx, node)
	if err != nil {
		return nil, err
	}
	if isBase {
		extended := make(Path, len(pathSoFar), len(pathSoFar)+1)
		copy(extended, pathSoFar)
		pathSoFar = append(extended, node)
	}

	var (
		found []Path
		any   bool
	)
	for _, next := range g[node] {
		childPaths, err := e.traverse(ctx, g, next, pathSoFar)
		if err != nil {
			return nil, err
		}
		if len(childPaths) > 0 {
			any = true
			found = append(found, childPaths...)
		}
	}

	if isBase && !any && len(pathSoFar) > 0 {
		found = append(found, pathSoFar)
	}
	return found, nil
}

func subgraphFrom(nodes []rules.Node) derivation.Graph {
	g := make(derivation.Graph, len(nodes))
	for _, n := range nodes {
		g[n] = nil
	}
	return g
}

func dedupe(paths []Path) []Path {
	seen := make(map[string]bool, len(paths))
	var out []Path
	for _, p := range paths {
		key := pathKey(p)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}

func pathKey(p Path) string {
	s := ""
	for i, n := range p {
		if i > 0 {
			s += "|"
		}
		s += n.String()
	}
	return s
}
