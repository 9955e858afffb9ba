package main

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"github.com/fragmentdb/fragment/internal/cli"
	"github.com/fragmentdb/fragment/pkg/pipeline"
	"github.com/fragmentdb/fragment/pkg/schema"
	"github.com/fragmentdb/fragment/pkg/store"
)

var statusDB string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current fragmentation status",
	Long:  `Show relation counts in the Fs/Fo/Chase schemas and the last recorded fragmentation run.`,
	Example: `  # Check status
  fragment status --db postgres://localhost/patients`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dsn, err := resolveDSN(statusDB)
		if err != nil {
			return err
		}

		return runStatus(dsn)
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusDB, "db", "", "database URL")
}

func runStatus(dsn string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return cli.DBConnectError("connecting to database", err)
	}
	defer func() { _ = db.Close() }()

	ctx := context.Background()
	sc := schema.PatientSchema()

	for _, label := range []struct{ title, schemaName string }{
		{"Fs (public)", cfg.Database.FsSchema},
		{"Fo (owner)", cfg.Database.FoSchema},
		{"Chase", cfg.Database.ChaseSchema},
	} {
		st := store.New(db, label.schemaName)
		present, err := st.Relations(ctx)
		if err != nil {
			fmt.Printf("%-14s schema %q: could not list relations: %v\n", label.title, label.schemaName, err)
			continue
		}
		var rows int64
		for _, name := range sc.Names() {
			if !contains(present, name) {
				continue
			}
			n, err := st.CountRows(ctx, name)
			if err == nil {
				rows += n
			}
		}
		fmt.Printf("%-14s schema %q: %d/%d relations present, %d row(s)\n", label.title, label.schemaName, len(present), len(sc.Names()), rows)
	}

	recorder := pipeline.NewRecorder(db)
	last, err := recorder.LastRun(ctx)
	if err != nil {
		return cli.GeneralError("fetching last run", err)
	}

	fmt.Println()
	if last == nil {
		fmt.Println("No recorded runs yet. Use 'fragment run' to perform one.")
		return nil
	}
	fmt.Printf("Last run:   #%d (%s)\n", last.ID, last.Status)
	fmt.Printf("Started:    %s\n", last.StartedAt.Format("2006-01-02 15:04:05 MST"))
	if last.CompletedAt.Valid {
		fmt.Printf("Completed:  %s\n", last.CompletedAt.Time.Format("2006-01-02 15:04:05 MST"))
	}
	fmt.Printf("Moved:      %d initial, %d via transfer\n", last.MovedInitial, last.MovedTransfer)
	if last.Detail.Valid && last.Detail.String != "" {
		fmt.Printf("Detail:     %s\n", last.Detail.String)
	}

	return nil
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
