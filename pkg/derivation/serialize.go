package derivation

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/fragmentdb/fragment/pkg/rules"
)

// WriteGraphs writes graphs in the graphs.txt format from spec.md §6:
// one `graph = { 'node': ['parent', ...], ... }` block per graph, blank
// line separated.
func WriteGraphs(w io.Writer, graphs []Graph) error {
	bw := bufio.NewWriter(w)
	for _, g := range graphs {
		if _, err := fmt.Fprintln(bw, "graph = {"); err != nil {
			return err
		}
		for _, node := range SortedNodes(g) {
			parents := g[node]
			entries := make([]string, len(parents))
			for i, p := range parents {
				entries[i] = fmt.Sprintf("'%s'", p.String())
			}
			if _, err := fmt.Fprintf(bw, "  '%s': [%s],\n", node.String(), strings.Join(entries, ", ")); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(bw, "}"); err != nil {
			return err
		}
		if _, err := fmt.Fprintln(bw); err != nil {
			return err
		}
	}
	return bw.Flush()
}

var graphEntryRe = regexp.MustCompile(`^\s*'([^']*)':\s*\[(.*)\],?\s*$`)

// ReadGraphs parses a graphs.txt file back into Graph values, tolerating
// the same loose formatting the writer emits. Malformed entries are skipped
// and reported in the returned warnings rather than as an error,
// consistent with spec.md §7's treatment of malformed intermediate files
// as recoverable.
func ReadGraphs(r io.Reader) ([]Graph, []string, error) {
	scanner := bufio.NewScanner(r)
	var (
		graphs   []Graph
		warnings []string
		current  Graph
		inBlock  bool
	)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "graph") && strings.Contains(line, "{"):
			current = make(Graph)
			inBlock = true
		case line == "}":
			if inBlock {
				graphs = append(graphs, current)
			}
			inBlock = false
		case inBlock:
			m := graphEntryRe.FindStringSubmatch(line)
			if m == nil {
				warnings = append(warnings, fmt.Sprintf("malformed graph entry: %q", line))
				continue
			}
			node, err := rules.ParseNode(m[1])
			if err != nil {
				warnings = append(warnings, err.Error())
				continue
			}
			var parents []rules.Node
			for _, raw := range splitQuoted(m[2]) {
				p, err := rules.ParseNode(raw)
				if err != nil {
					warnings = append(warnings, err.Error())
					continue
				}
				parents = append(parents, p)
			}
			current[node] = parents
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, warnings, fmt.Errorf("reading graphs: %w", err)
	}
	return graphs, warnings, nil
}

// splitQuoted splits a comma-separated list of 'quoted' entries into their
// unquoted contents, ignoring empty lists.
func splitQuoted(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		part = strings.Trim(part, "'")
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
