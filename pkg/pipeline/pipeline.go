package pipeline

import (
	"context"
	"fmt"
	"log"

	"github.com/fragmentdb/fragment/pkg/chase"
	"github.com/fragmentdb/fragment/pkg/derivation"
	"github.com/fragmentdb/fragment/pkg/extract"
	"github.com/fragmentdb/fragment/pkg/hittingset"
	"github.com/fragmentdb/fragment/pkg/paths"
	"github.com/fragmentdb/fragment/pkg/rules"
	"github.com/fragmentdb/fragment/pkg/schema"
	"github.com/fragmentdb/fragment/pkg/store"
	"github.com/fragmentdb/fragment/pkg/transfer"
	"github.com/fragmentdb/fragment/pkg/verify"
)

// Stores bundles the three fragment-scoped Stores plus an optional
// pre-run baseline snapshot used for the losslessness/disjointness check
// (A.5). Baseline may be nil, in which case Run skips verification.
type Stores struct {
	Fs       *store.Store
	Fo       *store.Store
	Chase    *store.Store
	Baseline *store.Store
}

// Run executes one complete fragmentation pass: initial extraction (C3),
// chase (C4), backward derivation (C5) per root, path extraction (C6),
// hitting-set selection (C7), transfer (C8), and verification (A.5).
func Run(ctx context.Context, sc *schema.Schema, rs []rules.Rule, roots []rules.Root, st Stores, useExactHittingSet bool, maxChaseIterations int) (Summary, error) {
	var summary Summary

	if err := rules.DetectCycles(rs); err != nil {
		return summary, fmt.Errorf("pipeline: %w", err)
	}

	if st.Baseline != nil {
		if _, err := st.Fs.CopyAllInto(ctx, st.Baseline, sc); err != nil {
			return summary, fmt.Errorf("snapshotting baseline from Fs: %w", err)
		}
		if _, err := st.Fo.CopyAllInto(ctx, st.Baseline, sc); err != nil {
			return summary, fmt.Errorf("snapshotting baseline from Fo: %w", err)
		}
	}

	extractor := extract.New(sc, st.Fs, st.Fo)
	extractRes, err := extractor.Run(ctx, roots)
	if err != nil {
		return summary, fmt.Errorf("initial extraction: %w", err)
	}
	summary.InitialMoved = extractRes.Moved

	if _, err := st.Fs.CopyAllInto(ctx, st.Chase, sc); err != nil {
		return summary, fmt.Errorf("seeding chase instance from Fs: %w", err)
	}

	chaseEngine := chase.New(st.Chase, sc, rs)
	if maxChaseIterations > 0 {
		chaseEngine.MaxIterations = maxChaseIterations
	}
	chaseRes, err := chaseEngine.Run(ctx)
	if err != nil && chaseRes.Iterations == 0 {
		return summary, fmt.Errorf("chase: %w", err)
	} else if err != nil {
		log.Printf("[fragment] WARNING: chase: %v", err)
	}
	summary.ChaseIterations = chaseRes.Iterations
	summary.ChaseInserted = chaseRes.Inserted

	headIdx := rules.IndexByHead(rs)
	checker := chaseHolds{st.Chase}
	expander := derivation.New(sc, headIdx, checker)
	pathExtractor := paths.New(func(ctx context.Context, n rules.Node) (bool, error) {
		rel, err := sc.Relation(n.Relation)
		if err != nil {
			return false, nil
		}
		return st.Fs.Holds(ctx, rel, n.Subject, n.Constant)
	})

	var groups [][]paths.Path
	for _, root := range rules.SortedRoots(roots) {
		rel, err := sc.Relation(root.Relation)
		if err != nil {
			log.Printf("[fragment] WARNING: %v", err)
			continue
		}
		subjects, err := st.Chase.SubjectsWithConstant(ctx, rel, root.Constant)
		if err != nil {
			return summary, fmt.Errorf("resolving subjects for root %s['%s']: %w", root.Relation, root.Constant, err)
		}
		for _, subject := range subjects {
			node := rules.NewNode(root.Relation, subject, root.Constant)
			graphs, err := expander.Expand(ctx, node)
			if err != nil {
				return summary, fmt.Errorf("expanding root %s: %w", node, err)
			}
			for _, g := range graphs {
				ps, err := pathExtractor.ExtractGraph(ctx, g)
				if err != nil {
					return summary, fmt.Errorf("extracting paths for root %s: %w", node, err)
				}
				if len(ps) > 0 {
					groups = append(groups, ps)
				}
			}
		}
	}
	summary.ProofGroups = len(groups)

	var union []rules.Node
	if useExactHittingSet {
		union, err = hittingset.Exact(groups)
		if err != nil {
			log.Printf("[fragment] WARNING: exact hitting set unavailable (%v), falling back to greedy", err)
			union = hittingset.Greedy(groups)
		}
	} else {
		union = hittingset.Greedy(groups)
	}
	summary.UnionSize = len(union)

	transferExec := transfer.New(sc, st.Fs, st.Fo)
	transferRes, err := transferExec.Run(ctx, union)
	if err != nil {
		return summary, fmt.Errorf("transfer: %w", err)
	}
	summary.TransferMoved = transferRes.Inserted

	if st.Baseline != nil {
		report, err := verify.Run(ctx, sc, st.Fs, st.Fo, st.Baseline)
		summary.Verification = &report
		if err != nil {
			return summary, err
		}
	}

	return summary, nil
}

// Summary reports counts from one pipeline run, used by the CLI's
// human-readable output.
type Summary struct {
	InitialMoved    int
	ChaseIterations int
	ChaseInserted   int
	ProofGroups     int
	UnionSize       int
	TransferMoved   int
	Verification    *verify.Report
}

type chaseHolds struct {
	st *store.Store
}

func (c chaseHolds) Holds(ctx context.Context, rel schema.Relation, subject, constant string) (bool, error) {
	return c.st.Holds(ctx, rel, subject, constant)
}
