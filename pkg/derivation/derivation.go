// Package derivation builds the backward proof DAG (C5, spec.md §4.5) for
// a sensitive root: starting from Relation(k,c), it walks every rule whose
// head matches, keeping only the rule instances whose body atoms actually
// hold in the chased instance, and recurses into each surviving body atom.
//
// The resulting graph is stored as a flattened adjacency map, node ->
// parents (the nodes whose derivation consumed it as a body atom), the
// same representation the source system writes to graphs.txt
// (original_source/Chapter_4/a5_graph.py, RootsTGDSubgraphExtractor). A
// node with more than one valid rule instance yields one graph per
// instance (an OR), so a root with k alternative derivations produces k
// entries in the returned slice; DESIGN.md records this as the resolution
// of spec.md §9's AND/OR-graph open question.
package derivation

import (
	"context"
	"fmt"
	"sort"

	"github.com/fragmentdb/fragment/pkg/rules"
	"github.com/fragmentdb/fragment/pkg/schema"
)

// DefaultMaxDepth bounds backward expansion against runaway or
// unexpectedly deep rule chains, mirroring the source's MAX_DEPTH
// safeguard.
const DefaultMaxDepth = 5000

// Checker answers whether Relation(subject, constant) holds in the working
// instance. pkg/store's Store satisfies it.
type Checker interface {
	Holds(ctx context.Context, rel schema.Relation, subject, constant string) (bool, error)
}

// Graph is one flattened proof subgraph: node -> the nodes that directly
// depend on it (its parents in the proof DAG).
type Graph map[rules.Node][]rules.Node

// Expander builds proof graphs for sensitive roots against a fixed schema,
// rule index, and existence checker.
type Expander struct {
	Schema   *schema.Schema
	HeadIdx  rules.HeadIndex
	Checker  Checker
	MaxDepth int
}

// New builds an Expander with DefaultMaxDepth.
func New(sc *schema.Schema, headIdx rules.HeadIndex, checker Checker) *Expander {
	return &Expander{Schema: sc, HeadIdx: headIdx, Checker: checker, MaxDepth: DefaultMaxDepth}
}

// Expand walks backward from root, returning one Graph per rule-instance
// combination that fully validates against the working instance. A root
// with no applicable rule (a base fact with no derivation) yields a single
// graph containing only itself with no parents.
func (e *Expander) Expand(ctx context.Context, root rules.Node) ([]Graph, error) {
	maxDepth := e.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return e.recurse(ctx, root, 0, map[rules.Node]bool{}, maxDepth)
}

func (e *Expander) recurse(ctx context.Context, node rules.Node, depth int, visited map[rules.Node]bool, maxDepth int) ([]Graph, error) {
	if visited[node] {
		// Cycle in the fact-level expansion (distinct from the relation-level
		// cycle I.3 rules out): stop this branch, contributing no further
		// parents from beyond the cycle.
		return []Graph{{node: nil}}, nil
	}
	if depth > maxDepth {
		return []Graph{{node: nil}}, nil
	}

	bodies := e.HeadIdx[rules.Atom{Relation: node.Relation, Constant: node.Constant}]
	if len(bodies) == 0 {
		return []Graph{{node: nil}}, nil
	}

	branchVisited := make(map[rules.Node]bool, len(visited)+1)
	for k := range visited {
		branchVisited[k] = true
	}
	branchVisited[node] = true

	var graphs []Graph
	for _, body := range bodies {
		children, ok, err := e.validateBody(ctx, node.Subject, body)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		childGraphLists := make([][]Graph, len(children))
		for i, child := range children {
			cg, err := e.recurse(ctx, child, depth+1, branchVisited, maxDepth)
			if err != nil {
				return nil, err
			}
			childGraphLists[i] = cg
		}

		for _, combo := range cartesianProduct(childGraphLists) {
			merged := make(Graph)
			for _, g := range combo {
				for n, parents := range g {
					merged[n] = append(merged[n], parents...)
				}
			}
			if _, ok := merged[node]; !ok {
				merged[node] = nil
			}
			for _, child := range children {
				merged[child] = appendUnique(merged[child], node)
			}
			graphs = append(graphs, merged)
		}
	}

	if len(graphs) == 0 {
		// Every rule for this head failed to validate against the instance:
		// the head is unreachable from facts that actually exist.
		return []Graph{{node: nil}}, nil
	}
	return graphs, nil
}

// validateBody checks every body atom against the working instance for the
// shared subject, returning the corresponding derivation nodes only if all
// atoms hold (a rule instance either fires completely or not at all).
func (e *Expander) validateBody(ctx context.Context, subject string, body []rules.Atom) ([]rules.Node, bool, error) {
	children := make([]rules.Node, 0, len(body))
	for _, atom := range body {
		rel, err := e.Schema.Relation(atom.Relation)
		if err != nil {
			return nil, false, fmt.Errorf("validating body atom %s: %w", atom.Relation, err)
		}
		holds, err := e.Checker.Holds(ctx, rel, subject, atom.Constant)
		if err != nil {
			return nil, false, fmt.Errorf("checking %s(%s,%s): %w", atom.Relation, subject, atom.Constant, err)
		}
		if !holds {
			return nil, false, nil
		}
		children = append(children, rules.NewNode(atom.Relation, subject, atom.Constant))
	}
	return children, true, nil
}

func appendUnique(nodes []rules.Node, n rules.Node) []rules.Node {
	for _, existing := range nodes {
		if existing == n {
			return nodes
		}
	}
	return append(nodes, n)
}

// cartesianProduct returns every combination taking one element from each
// input slice, the Go equivalent of itertools.product used by the source
// to combine independently-expanded children.
func cartesianProduct(lists [][]Graph) [][]Graph {
	if len(lists) == 0 {
		return [][]Graph{nil}
	}
	rest := cartesianProduct(lists[1:])
	var out [][]Graph
	for _, g := range lists[0] {
		for _, r := range rest {
			combo := make([]Graph, 0, len(r)+1)
			combo = append(combo, g)
			combo = append(combo, r...)
			out = append(out, combo)
		}
	}
	return out
}

// SortedNodes returns a graph's node keys in deterministic (relation,
// subject, constant) order, for serialization.
func SortedNodes(g Graph) []rules.Node {
	out := make([]rules.Node, 0, len(g))
	for n := range g {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Relation != out[j].Relation {
			return out[i].Relation < out[j].Relation
		}
		if out[i].Subject != out[j].Subject {
			return out[i].Subject < out[j].Subject
		}
		return out[i].Constant < out[j].Constant
	})
	return out
}
