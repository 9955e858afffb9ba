package rules

import (
	"fmt"
	"strings"
)

// Node is a derivation node: the triple (R, k, c) meaning "tuple R(k,c)
// exists", per spec.md §3. Its canonical serialization is "R:k:c"
// (spec.md §9); NewNode/ParseNode convert between the typed form and the
// wire form used in graphs.txt/paths.txt/union_greedy.txt.
type Node struct {
	Relation string
	Subject  string
	Constant string
}

// NewNode builds a Node. Subject and Constant must not contain ':' — callers
// are expected to reject or escape such values at ingestion (spec.md §9).
func NewNode(relation, subject, constant string) Node {
	return Node{Relation: relation, Subject: subject, Constant: constant}
}

// String returns the canonical "R:k:c" wire form.
func (n Node) String() string {
	return n.Relation + ":" + n.Subject + ":" + n.Constant
}

// ParseNode parses the canonical "R:k:c" wire form back into a Node.
func ParseNode(s string) (Node, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return Node{}, fmt.Errorf("fragment: malformed derivation node %q", s)
	}
	return Node{Relation: parts[0], Subject: parts[1], Constant: parts[2]}, nil
}
