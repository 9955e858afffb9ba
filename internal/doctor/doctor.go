// Package doctor provides health checks for a fragment deployment: is the
// store reachable, do the Fs/Fo/Chase schemas and expected relations
// exist, and do the configured rules.txt/C.txt parse cleanly (A.4,
// spec.md §9).
//
// Example usage:
//
//	d := doctor.New(db, sc, "fs", "fo", "chase")
//	report, err := d.Run(ctx, rulesPath, rootsPath)
//	if err != nil {
//		log.Fatal(err)
//	}
//	report.Print(os.Stdout, true) // verbose=true
package doctor

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fragmentdb/fragment/pkg/rules"
	"github.com/fragmentdb/fragment/pkg/schema"
	"github.com/fragmentdb/fragment/pkg/store"
)

// Status represents the result of a health check.
type Status int

const (
	// StatusPass indicates the check passed.
	StatusPass Status = iota
	// StatusWarn indicates a non-critical issue.
	StatusWarn
	// StatusFail indicates a critical issue that will cause failures.
	StatusFail
)

func (s Status) String() string {
	switch s {
	case StatusPass:
		return "pass"
	case StatusWarn:
		return "warn"
	case StatusFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Symbol returns a status indicator symbol for terminal output.
func (s Status) Symbol() string {
	switch s {
	case StatusPass:
		return "✓"
	case StatusWarn:
		return "⚠"
	case StatusFail:
		return "✗"
	default:
		return "?"
	}
}

// CheckResult represents the outcome of a single health check.
type CheckResult struct {
	Category string
	Name     string
	Status   Status
	Message  string
	Details  string
	FixHint  string
}

// Report contains all health check results.
type Report struct {
	Checks []CheckResult

	Passed   int
	Warnings int
	Errors   int
}

// AddCheck adds a check result and updates summary counts.
func (r *Report) AddCheck(check CheckResult) {
	r.Checks = append(r.Checks, check)
	switch check.Status {
	case StatusPass:
		r.Passed++
	case StatusWarn:
		r.Warnings++
	case StatusFail:
		r.Errors++
	}
}

// Print writes the report to the given writer.
func (r *Report) Print(w io.Writer, verbose bool) {
	categories := make(map[string][]CheckResult)
	var categoryOrder []string
	for _, check := range r.Checks {
		if _, exists := categories[check.Category]; !exists {
			categoryOrder = append(categoryOrder, check.Category)
		}
		categories[check.Category] = append(categories[check.Category], check)
	}

	for _, cat := range categoryOrder {
		_, _ = fmt.Fprintf(w, "\n%s\n", cat)
		for _, check := range categories[cat] {
			_, _ = fmt.Fprintf(w, "  %s %s\n", check.Status.Symbol(), check.Message)
			if verbose && check.Details != "" {
				for _, line := range strings.Split(check.Details, "\n") {
					_, _ = fmt.Fprintf(w, "      %s\n", line)
				}
			}
			if check.Status != StatusPass && check.FixHint != "" {
				_, _ = fmt.Fprintf(w, "      Fix: %s\n", check.FixHint)
			}
		}
	}

	_, _ = fmt.Fprintf(w, "\nSummary: %d passed, %d warnings, %d errors\n",
		r.Passed, r.Warnings, r.Errors)
}

// HasErrors returns true if any check failed.
func (r *Report) HasErrors() bool {
	return r.Errors > 0
}

// Doctor performs health checks on a fragment deployment.
type Doctor struct {
	db     *sql.DB
	schema *schema.Schema

	fsSchema    string
	foSchema    string
	chaseSchema string
}

// New creates a new Doctor instance.
func New(db *sql.DB, sc *schema.Schema, fsSchema, foSchema, chaseSchema string) *Doctor {
	return &Doctor{db: db, schema: sc, fsSchema: fsSchema, foSchema: foSchema, chaseSchema: chaseSchema}
}

// Run executes all health checks and returns a report.
func (d *Doctor) Run(ctx context.Context, rulesPath, rootsPath string) (*Report, error) {
	report := &Report{}

	// A connectivity failure is reported and skips only the schema checks.
	if err := d.checkStoreReachable(ctx, report); err == nil {
		d.checkSchemasExist(ctx, report)
	}
	d.checkRulesFile(report, rulesPath)
	d.checkRootsFile(report, rootsPath)

	return report, nil
}

func (d *Doctor) checkStoreReachable(ctx context.Context, report *Report) error {
	if err := d.db.PingContext(ctx); err != nil {
		report.AddCheck(CheckResult{
			Category: "Store",
			Name:     "reachable",
			Status:   StatusFail,
			Message:  "Cannot reach the configured PostgreSQL database",
			Details:  err.Error(),
			FixHint:  "Check database.url / database.host in fragment.yaml",
		})
		return err
	}
	report.AddCheck(CheckResult{
		Category: "Store",
		Name:     "reachable",
		Status:   StatusPass,
		Message:  "Database connection OK",
	})
	return nil
}

func (d *Doctor) checkSchemasExist(ctx context.Context, report *Report) {
	for _, name := range []string{d.fsSchema, d.foSchema, d.chaseSchema} {
		var exists bool
		err := d.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM information_schema.schemata WHERE schema_name = $1)`, name).Scan(&exists)
		if err != nil {
			report.AddCheck(CheckResult{
				Category: "Schemas",
				Name:     name,
				Status:   StatusFail,
				Message:  fmt.Sprintf("Could not check for schema %q", name),
				Details:  err.Error(),
			})
			continue
		}
		if !exists {
			report.AddCheck(CheckResult{
				Category: "Schemas",
				Name:     name,
				Status:   StatusWarn,
				Message:  fmt.Sprintf("Schema %q does not exist yet", name),
				FixHint:  "Run 'fragment run' once to create it",
			})
			continue
		}

		d.checkRelationsIn(ctx, report, name)

		report.AddCheck(CheckResult{
			Category: "Schemas",
			Name:     name,
			Status:   StatusPass,
			Message:  fmt.Sprintf("Schema %q exists", name),
		})
	}
}

func (d *Doctor) checkRelationsIn(ctx context.Context, report *Report, schemaName string) {
	st := store.New(d.db, schemaName)
	present, err := st.Relations(ctx)
	if err != nil {
		report.AddCheck(CheckResult{
			Category: "Relations",
			Name:     schemaName,
			Status:   StatusWarn,
			Message:  fmt.Sprintf("Could not list relations in %q", schemaName),
			Details:  err.Error(),
		})
		return
	}
	presentSet := make(map[string]bool, len(present))
	for _, p := range present {
		presentSet[p] = true
	}

	var missing []string
	for _, name := range d.schema.Names() {
		if !presentSet[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		report.AddCheck(CheckResult{
			Category: "Relations",
			Name:     schemaName,
			Status:   StatusWarn,
			Message:  fmt.Sprintf("%d expected relation(s) missing from %q", len(missing), schemaName),
			Details:  strings.Join(missing, ", "),
			FixHint:  "Run 'fragment run' to (re)populate the schema",
		})
		return
	}
	report.AddCheck(CheckResult{
		Category: "Relations",
		Name:     schemaName,
		Status:   StatusPass,
		Message:  fmt.Sprintf("All %d expected relations present in %q", len(d.schema.Names()), schemaName),
	})
}

func (d *Doctor) checkRulesFile(report *Report, path string) {
	d.checkParseableFile(report, "Rules", path, func(content []byte) (int, []string, error) {
		parsed, warnings, err := rules.ParseRules(bytes.NewReader(content), d.schema)
		if err != nil {
			return 0, nil, err
		}
		if cerr := rules.DetectCycles(parsed); cerr != nil {
			return len(parsed), warningStrings(warnings), cerr
		}
		return len(parsed), warningStrings(warnings), nil
	})
}

func (d *Doctor) checkRootsFile(report *Report, path string) {
	d.checkParseableFile(report, "Roots", path, func(content []byte) (int, []string, error) {
		parsed, warnings, err := rules.ParseRoots(bytes.NewReader(content), d.schema)
		return len(parsed), warningStrings(warnings), err
	})
}

func (d *Doctor) checkParseableFile(report *Report, category, path string, parse func([]byte) (int, []string, error)) {
	content, err := os.ReadFile(path)
	if err != nil {
		report.AddCheck(CheckResult{
			Category: category,
			Name:     "exists",
			Status:   StatusFail,
			Message:  fmt.Sprintf("%s file not found at %s", category, path),
			FixHint:  fmt.Sprintf("Create %s or point %s at the right path in fragment.yaml", path, strings.ToLower(category)),
		})
		return
	}

	count, warnings, err := parse(content)
	if err != nil {
		report.AddCheck(CheckResult{
			Category: category,
			Name:     "valid",
			Status:   StatusFail,
			Message:  fmt.Sprintf("%s file failed to validate", category),
			Details:  err.Error(),
		})
		return
	}

	status := StatusPass
	msg := fmt.Sprintf("Parsed %d entries from %s", count, path)
	var details string
	if len(warnings) > 0 {
		status = StatusWarn
		msg = fmt.Sprintf("Parsed %d entries from %s, %d line(s) skipped", count, path, len(warnings))
		details = strings.Join(warnings, "\n")
	}
	report.AddCheck(CheckResult{
		Category: category,
		Name:     "valid",
		Status:   status,
		Message:  msg,
		Details:  details,
	})
}

func warningStrings(warnings []rules.Warning) []string {
	out := make([]string, len(warnings))
	for i, w := range warnings {
		out[i] = w.String()
	}
	return out
}
