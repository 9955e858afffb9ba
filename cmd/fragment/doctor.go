package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"github.com/fragmentdb/fragment/internal/cli"
	"github.com/fragmentdb/fragment/internal/doctor"
	"github.com/fragmentdb/fragment/pkg/schema"
)

var (
	doctorDB      string
	doctorRules   string
	doctorRoots   string
	doctorVerbose bool
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run health checks",
	Long:  `Run health checks against the configured database and input files: connectivity, schema/relation presence, and rules.txt/C.txt validity.`,
	Example: `  # Run health checks
  fragment doctor --db postgres://localhost/patients

  # Run with verbose output
  fragment doctor --verbose`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rulesPath := resolveString(doctorRules, cfg.Rules)
		rootsPath := resolveString(doctorRoots, cfg.Roots)
		verboseFlag := resolveBool(doctorVerbose, cfg.Doctor.Verbose)

		dsn, err := resolveDSN(doctorDB)
		if err != nil {
			return err
		}

		return runDoctor(dsn, rulesPath, rootsPath, verboseFlag)
	},
}

func init() {
	f := doctorCmd.Flags()
	f.StringVar(&doctorDB, "db", "", "database URL")
	f.StringVar(&doctorRules, "rules", "", "path to rules.txt file")
	f.StringVar(&doctorRoots, "roots", "", "path to C.txt file")
	f.BoolVar(&doctorVerbose, "verbose", false, "show detailed output")
}

func runDoctor(dsn, rulesPath, rootsPath string, verboseFlag bool) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return cli.DBConnectError("connecting to database", err)
	}
	defer func() { _ = db.Close() }()

	ctx := context.Background()

	if !quiet {
		fmt.Println("fragment doctor - Health Check")
	}

	d := doctor.New(db, schema.PatientSchema(), cfg.Database.FsSchema, cfg.Database.FoSchema, cfg.Database.ChaseSchema)
	report, err := d.Run(ctx, rulesPath, rootsPath)
	if err != nil {
		return cli.GeneralError("running doctor", err)
	}

	report.Print(os.Stdout, verboseFlag)

	if report.HasErrors() {
		return cli.GeneralError("health checks failed", nil)
	}

	return nil
}
