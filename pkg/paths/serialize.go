package paths

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/fragmentdb/fragment/pkg/rules"
)

// WriteGroups writes groups (one Path slice per proof graph, per spec.md
// §6) as the Python-literal nested-list form the source writes via
// repr(): `[[['R:k:c', ...], [...]], ...]`.
func WriteGroups(w io.Writer, groups [][]Path) error {
	var b strings.Builder
	b.WriteByte('[')
	for gi, group := range groups {
		if gi > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('[')
		for pi, p := range group {
			if pi > 0 {
				b.WriteString(", ")
			}
			b.WriteByte('[')
			for ni, n := range p {
				if ni > 0 {
					b.WriteString(", ")
				}
				fmt.Fprintf(&b, "'%s'", n.String())
			}
			b.WriteByte(']')
		}
		b.WriteByte(']')
	}
	b.WriteByte(']')
	_, err := io.WriteString(w, b.String())
	return err
}

var quotedTokenRe = regexp.MustCompile(`'([^']*)'|(\[)|(\])`)

// ReadGroups parses the Python-literal nested-list form WriteGroups
// produces back into path groups.
func ReadGroups(data string) ([][]Path, error) {
	tokens := quotedTokenRe.FindAllStringSubmatch(data, -1)

	var (
		groups     [][]Path
		curGroup   []Path
		curPath    Path
		depth      int
	)
	for _, tok := range tokens {
		switch {
		case tok[2] == "[":
			depth++
			switch depth {
			case 2:
				curGroup = nil
			case 3:
				curPath = nil
			}
		case tok[3] == "]":
			switch depth {
			case 3:
				curGroup = append(curGroup, curPath)
			case 2:
				groups = append(groups, curGroup)
			}
			depth--
		default:
			n, err := rules.ParseNode(tok[1])
			if err != nil {
				return nil, fmt.Errorf("parsing path node %q: %w", tok[1], err)
			}
			curPath = append(curPath, n)
		}
	}
	return groups, nil
}
