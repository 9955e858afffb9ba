package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fragmentdb/fragment/internal/cli"
	"github.com/fragmentdb/fragment/pkg/rules"
	"github.com/fragmentdb/fragment/pkg/schema"
)

var (
	validateRules string
	validateRoots string
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate rules.txt and C.txt syntax",
	Long:  `Parse the TGD rule file and sensitive-constant root file, check relation names against the patient schema, and detect cyclic rule dependencies.`,
	Example: `  # Validate using explicit paths
  fragment validate --rules rules.txt --roots C.txt

  # Validate using config file settings
  fragment validate`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rulesPath := resolveString(validateRules, cfg.Rules)
		rootsPath := resolveString(validateRoots, cfg.Roots)

		sc := schema.PatientSchema()

		rulesFile, err := os.Open(rulesPath)
		if err != nil {
			return cli.InputParseError(fmt.Sprintf("rules file not found: %s", rulesPath), nil)
		}
		defer func() { _ = rulesFile.Close() }()

		parsedRules, ruleWarnings, err := rules.ParseRules(rulesFile, sc)
		if err != nil {
			return cli.InputParseError("parsing rules", err)
		}

		if err := rules.DetectCycles(parsedRules); err != nil {
			return cli.InputParseError("cyclic rule dependency", err)
		}

		rootsFile, err := os.Open(rootsPath)
		if err != nil {
			return cli.InputParseError(fmt.Sprintf("roots file not found: %s", rootsPath), nil)
		}
		defer func() { _ = rootsFile.Close() }()

		parsedRoots, rootWarnings, err := rules.ParseRoots(rootsFile, sc)
		if err != nil {
			return cli.InputParseError("parsing roots", err)
		}

		if !quiet {
			fmt.Printf("rules.txt is valid. Found %d rule(s), acyclic.\n", len(parsedRules))
			fmt.Printf("C.txt is valid. Found %d sensitive root(s).\n", len(parsedRoots))

			for _, w := range ruleWarnings {
				fmt.Printf("  warning (rules): %s\n", w)
			}
			for _, w := range rootWarnings {
				fmt.Printf("  warning (roots): %s\n", w)
			}
		}

		return nil
	},
}

func init() {
	validateCmd.Flags().StringVar(&validateRules, "rules", "", "path to rules.txt file")
	validateCmd.Flags().StringVar(&validateRoots, "roots", "", "path to C.txt file")
}
