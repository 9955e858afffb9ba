// Package rules parses the TGD rule file and the sensitive-constant root
// file described in spec.md §4.2 and §6, and provides the DerivationNode
// type used as the common currency of facts ("R(k,c) exists") across the
// chase, derivation-graph, path-extraction, and hitting-set stages.
package rules

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
)

// Atom is one body or head atom of a TGD: Relation(n, 'Constant').
// The subject variable n is implicit — every atom in a rule shares it.
type Atom struct {
	Relation string
	Constant string
}

func (a Atom) String() string {
	return fmt.Sprintf("%s(n,'%s')", a.Relation, a.Constant)
}

// Rule is one parsed TGD: Body atoms imply Head, all sharing one subject.
// Body size is constrained to [1,4] per spec.md §3.
type Rule struct {
	Body []Atom
	Head Atom
	// Source is the 1-based line number the rule was parsed from, kept for
	// diagnostics (warnings reference it, nothing else depends on it).
	Source int
}

// Root is one sensitive-constant root: a (relation, constant) pair whose
// derivability from Fs must be prevented.
type Root struct {
	Relation string
	Constant string
}

// Warning describes a skipped, malformed input line. Per spec.md §4.2,
// malformed rules/roots are skipped, never fatal.
type Warning struct {
	Line    int
	Text    string
	Problem string
}

func (w Warning) String() string {
	return fmt.Sprintf("line %d: %s: %q", w.Line, w.Problem, w.Text)
}

var (
	// atomRe matches Relation(n,'Constant'), whitespace-insensitive around
	// the comma, per the EBNF in spec.md §6.
	atomRe = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\(\s*n\s*,\s*'([^']*)'\s*\)$`)
	// rootRe matches Relation['Constant'].
	rootRe = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\['([^']*)'\]$`)
	// bodySplitRe splits a rule body on the conjunction symbol, which may be
	// written as ∧ or the literal word AND (spec.md §6 grammar).
	bodySplitRe = regexp.MustCompile(`∧|\bAND\b`)
)

const maxBodySize = 4

// ParseRules reads one rule per non-empty, non-comment line from r, in the
// grammar `A1 ∧ A2 ∧ … ∧ Ak -> H`. Malformed lines are collected as
// warnings and skipped; ParseRules itself never fails on bad input (only on
// I/O errors from the reader).
func ParseRules(r io.Reader, known RelationChecker) ([]Rule, []Warning, error) {
	var (
		out      []Rule
		warnings []Warning
	)

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		rule, problem := parseRuleLine(line, known)
		if problem != "" {
			warnings = append(warnings, Warning{Line: lineNo, Text: line, Problem: problem})
			continue
		}
		rule.Source = lineNo
		out = append(out, rule)
	}
	if err := scanner.Err(); err != nil {
		return nil, warnings, fmt.Errorf("reading rules: %w", err)
	}
	return out, warnings, nil
}

// RelationChecker reports whether a relation name is known. pkg/schema's
// *Schema satisfies this via its Has method; tests may use a plain
// map-backed stub.
type RelationChecker interface {
	Has(name string) bool
}

func parseRuleLine(line string, known RelationChecker) (Rule, string) {
	arrowIdx := strings.Index(line, "->")
	if arrowIdx < 0 {
		return Rule{}, "missing '->'"
	}
	bodyStr := strings.TrimSpace(line[:arrowIdx])
	headStr := strings.TrimSpace(line[arrowIdx+2:])
	if bodyStr == "" || headStr == "" {
		return Rule{}, "empty body or head"
	}

	head, ok := parseAtom(headStr, known)
	if !ok {
		return Rule{}, "malformed head atom"
	}

	bodyParts := bodySplitRe.Split(bodyStr, -1)
	body := make([]Atom, 0, len(bodyParts))
	for _, part := range bodyParts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		atom, ok := parseAtom(part, known)
		if !ok {
			return Rule{}, "malformed body atom"
		}
		body = append(body, atom)
	}
	if len(body) == 0 {
		return Rule{}, "empty body"
	}
	if len(body) > maxBodySize {
		return Rule{}, "body exceeds maximum size of 4"
	}

	return Rule{Body: body, Head: head}, ""
}

func parseAtom(s string, known RelationChecker) (Atom, bool) {
	m := atomRe.FindStringSubmatch(s)
	if m == nil {
		return Atom{}, false
	}
	if known != nil && !known.Has(m[1]) {
		return Atom{}, false
	}
	return Atom{Relation: m[1], Constant: m[2]}, true
}

// ParseRoots reads one sensitive root per non-empty, non-comment line in
// the grammar `Relation['Constant']`, returning an ordered, de-duplicated
// list per spec.md §4.2.
func ParseRoots(r io.Reader, known RelationChecker) ([]Root, []Warning, error) {
	var (
		out      []Root
		warnings []Warning
		seen     = make(map[Root]bool)
	)

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		m := rootRe.FindStringSubmatch(line)
		if m == nil {
			warnings = append(warnings, Warning{Line: lineNo, Text: line, Problem: "malformed root"})
			continue
		}
		if known != nil && !known.Has(m[1]) {
			warnings = append(warnings, Warning{Line: lineNo, Text: line, Problem: "unknown relation"})
			continue
		}
		root := Root{Relation: m[1], Constant: m[2]}
		if seen[root] {
			continue
		}
		seen[root] = true
		out = append(out, root)
	}
	if err := scanner.Err(); err != nil {
		return nil, warnings, fmt.Errorf("reading roots: %w", err)
	}
	return out, warnings, nil
}

// HeadIndex maps a head atom to every rule body that derives it. Multiple
// entries for the same head are a disjunction: any one of them firing is
// sufficient to derive the head (spec.md §3, "Proof DAG").
type HeadIndex map[Atom][][]Atom

// IndexByHead builds the head->bodies lookup C5 needs (spec.md §4.5).
func IndexByHead(rules []Rule) HeadIndex {
	idx := make(HeadIndex)
	for _, r := range rules {
		idx[r.Head] = append(idx[r.Head], r.Body)
	}
	return idx
}

// SortedRoots returns a copy of roots sorted by (relation, constant), for
// deterministic iteration order downstream (C5 emits groups in root order,
// spec.md §5).
func SortedRoots(roots []Root) []Root {
	out := make([]Root, len(roots))
	copy(out, roots)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Relation != out[j].Relation {
			return out[i].Relation < out[j].Relation
		}
		return out[i].Constant < out[j].Constant
	})
	return out
}
