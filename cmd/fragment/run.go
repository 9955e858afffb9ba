package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"github.com/fragmentdb/fragment/internal/cli"
	"github.com/fragmentdb/fragment/pkg/pipeline"
	"github.com/fragmentdb/fragment/pkg/rules"
	"github.com/fragmentdb/fragment/pkg/schema"
	"github.com/fragmentdb/fragment/pkg/store"
)

var (
	runDB              string
	runRules           string
	runRoots           string
	runExactHittingSet bool
	runMaxIterations   int
	runForce           bool
	runNoSnapshot      bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fragment the database against rules.txt and C.txt",
	Long: `Run one full fragmentation pass: extract rows matching a sensitive
constant into the owner fragment, chase the TGD rules to a fixpoint,
derive the backward proof DAG for every resolved sensitive fact,
select a minimal hitting set of supporting facts, and transfer them
into the owner fragment too.

A run is skipped if the rules+roots checksum matches the last
completed run; use --force to re-apply anyway.`,
	Example: `  # Run with config-file settings
  fragment run

  # Run with the exact (exponential) hitting-set algorithm
  fragment run --exact-hitting-set

  # Re-run even though the input is unchanged
  fragment run --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rulesPath := resolveString(runRules, cfg.Rules)
		rootsPath := resolveString(runRoots, cfg.Roots)
		exact := resolveBool(runExactHittingSet, cfg.Run.ExactHittingSet)
		force := resolveBool(runForce, cfg.Run.Force)
		snapshot := cfg.Run.Snapshot && !runNoSnapshot
		maxIter := cfg.Run.MaxIterations
		if runMaxIterations > 0 {
			maxIter = runMaxIterations
		}

		dsn, err := resolveDSN(runDB)
		if err != nil {
			return err
		}

		return runFragment(dsn, rulesPath, rootsPath, exact, force, snapshot, maxIter)
	},
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runDB, "db", "", "database URL")
	f.StringVar(&runRules, "rules", "", "path to rules.txt file")
	f.StringVar(&runRoots, "roots", "", "path to C.txt file")
	f.BoolVar(&runExactHittingSet, "exact-hitting-set", false, "use the exact hitting-set algorithm instead of greedy")
	f.IntVar(&runMaxIterations, "max-iterations", 0, "chase iteration cap (0: use config/default)")
	f.BoolVar(&runForce, "force", false, "re-run even if rules+roots are unchanged since the last completed run")
	f.BoolVar(&runNoSnapshot, "no-snapshot", false, "skip the pre-run baseline snapshot (disables P1/P2 verification)")
}

func runFragment(dsn, rulesPath, rootsPath string, exact, force, snapshot bool, maxIter int) error {
	rulesBytes, err := os.ReadFile(rulesPath)
	if err != nil {
		return cli.InputParseError(fmt.Sprintf("rules file not found: %s", rulesPath), nil)
	}
	rootsBytes, err := os.ReadFile(rootsPath)
	if err != nil {
		return cli.InputParseError(fmt.Sprintf("roots file not found: %s", rootsPath), nil)
	}

	sc := schema.PatientSchema()

	parsedRules, ruleWarnings, err := rules.ParseRules(bytes.NewReader(rulesBytes), sc)
	if err != nil {
		return cli.InputParseError("parsing rules", err)
	}
	if err := rules.DetectCycles(parsedRules); err != nil {
		return cli.InputParseError("cyclic rule dependency", err)
	}
	parsedRoots, rootWarnings, err := rules.ParseRoots(bytes.NewReader(rootsBytes), sc)
	if err != nil {
		return cli.InputParseError("parsing roots", err)
	}
	if !quiet {
		for _, w := range ruleWarnings {
			fmt.Printf("warning (rules): %s\n", w)
		}
		for _, w := range rootWarnings {
			fmt.Printf("warning (roots): %s\n", w)
		}
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return cli.DBConnectError("connecting to database", err)
	}
	defer func() { _ = db.Close() }()
	if err := db.PingContext(context.Background()); err != nil {
		return cli.DBConnectError("pinging database", err)
	}

	ctx := context.Background()

	recorder := pipeline.NewRecorder(db)
	if err := recorder.EnsureTable(ctx); err != nil {
		return cli.GeneralError("preparing run bookkeeping", err)
	}

	checksum := pipeline.Checksum(rulesBytes, rootsBytes)
	if !force {
		skip, err := recorder.ShouldSkip(ctx, checksum)
		if err != nil {
			return cli.GeneralError("checking prior runs", err)
		}
		if skip {
			if !quiet {
				fmt.Println("Input unchanged since the last completed run, skipping. Use --force to re-apply.")
			}
			return nil
		}
	}

	fsStore := store.New(db, cfg.Database.FsSchema)
	foStore := store.New(db, cfg.Database.FoSchema)
	chaseStore := store.New(db, cfg.Database.ChaseSchema)

	for name, st := range map[string]*store.Store{"fo": foStore, "chase": chaseStore} {
		if err := st.EnsureSchema(ctx); err != nil {
			return cli.GeneralError(fmt.Sprintf("ensuring %s schema", name), err)
		}
		for _, relName := range sc.Names() {
			rel, _ := sc.Relation(relName)
			if err := st.EnsureRelation(ctx, rel); err != nil {
				return cli.GeneralError(fmt.Sprintf("ensuring relation %s in %s schema", relName, name), err)
			}
		}
	}

	var baselineStore *store.Store
	if snapshot {
		baselineStore = store.New(db, "fragment_baseline")
		if err := baselineStore.EnsureSchema(ctx); err != nil {
			return cli.GeneralError("ensuring baseline schema", err)
		}
		for _, relName := range sc.Names() {
			rel, _ := sc.Relation(relName)
			if err := baselineStore.EnsureRelation(ctx, rel); err != nil {
				return cli.GeneralError(fmt.Sprintf("ensuring relation %s in baseline schema", relName), err)
			}
		}
	}

	startedAt := time.Now()
	runID, err := recorder.Begin(ctx, checksum, startedAt)
	if err != nil {
		return cli.GeneralError("recording run start", err)
	}

	summary, runErr := pipeline.Run(ctx, sc, parsedRules, parsedRoots, pipeline.Stores{
		Fs: fsStore, Fo: foStore, Chase: chaseStore, Baseline: baselineStore,
	}, exact, maxIter)

	completedAt := time.Now()
	if runErr != nil {
		_ = recorder.Fail(ctx, runID, completedAt, runErr.Error())
		return cli.GeneralError("fragmentation run failed", runErr)
	}
	if err := recorder.Complete(ctx, runID, completedAt, summary.InitialMoved, summary.TransferMoved); err != nil {
		return cli.GeneralError("recording run completion", err)
	}

	if !quiet {
		printSummary(summary)
	}

	return nil
}

func printSummary(s pipeline.Summary) {
	fmt.Printf("Initial extraction:   %d row(s) moved to Fo\n", s.InitialMoved)
	fmt.Printf("Chase:                %d iteration(s), %d fact(s) inserted\n", s.ChaseIterations, s.ChaseInserted)
	fmt.Printf("Proof groups:         %d\n", s.ProofGroups)
	fmt.Printf("Hitting-set union:    %d fact(s)\n", s.UnionSize)
	fmt.Printf("Transfer:             %d row(s) moved to Fo\n", s.TransferMoved)
	if s.Verification != nil {
		v := s.Verification
		status := "OK"
		if !v.Disjoint || !v.Lossless {
			status = "VIOLATIONS"
		}
		fmt.Printf("Verification:         %s (disjoint=%v, lossless=%v)\n", status, v.Disjoint, v.Lossless)
		for _, msg := range v.Violations {
			fmt.Printf("  - %s\n", msg)
		}
	}
}
