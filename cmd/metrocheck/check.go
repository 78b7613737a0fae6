package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dharsanguruparan/MetroCheck/internal/engine"
	"github.com/dharsanguruparan/MetroCheck/internal/logger"
	"github.com/dharsanguruparan/MetroCheck/internal/rules"
	"github.com/dharsanguruparan/MetroCheck/internal/scoring"
)

// loadRules returns the catalog's rules, or the built-in ones, with default
// weights filled in.
func loadRules(catalog string) ([]rules.Rule, error) {
	if catalog != "" {
		return rules.LoadCatalog(catalog)
	}
	snap, err := rules.NewSnapshot(rules.DefaultRules())
	if err != nil {
		return nil, err
	}
	return snap.Rules(), nil
}

func newEvaluateCmd() *cobra.Command {
	var (
		catalog   string
		asJSON    bool
		failUnder int
		workers   int
	)
	cmd := &cobra.Command{
		Use:   "evaluate <file>...",
		Short: "Score listing JSON, label text or label PDF files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ruleSet, err := loadRules(catalog)
			if err != nil {
				return err
			}
			snap, err := rules.NewSnapshot(ruleSet)
			if err != nil {
				return err
			}
			var raws []map[string]any
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				contentType := engine.DetectContentType("", path, data)
				records, err := engine.DecodeArtifact(data, contentType)
				if err != nil {
					return fmt.Errorf("%s: %w", filepath.Base(path), err)
				}
				raws = append(raws, records...)
			}

			eng := engine.New(engine.FixedRules{S: snap}, logger.Nop(), workers)
			reports, err := eng.CheckBatch(cmd.Context(), raws)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(batchOutput{Reports: reports, Summary: scoring.Summarize(reports)}); err != nil {
					return err
				}
			} else {
				printReports(out, reports)
			}
			for _, r := range reports {
				if r.Score < failUnder {
					return fmt.Errorf("product %s scored %d, below %d", r.ProductID, r.Score, failUnder)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&catalog, "catalog", "c", "", "YAML rule catalog (defaults to the built-in rules)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print reports as JSON")
	cmd.Flags().IntVar(&failUnder, "fail-under", 0, "Exit non-zero when any product scores below this")
	cmd.Flags().IntVarP(&workers, "workers", "w", 4, "Concurrent evaluations")
	return cmd
}

type batchOutput struct {
	Reports []scoring.Report `json:"reports"`
	Summary scoring.Summary  `json:"summary"`
}

func printReports(w io.Writer, reports []scoring.Report) {
	for _, r := range reports {
		fmt.Fprintf(w, "%s  score %d (%s), %d rules\n", r.ProductID, r.Score, r.Badge, r.RulesEvaluated)
		for _, o := range r.Outcomes {
			switch {
			case !o.Passed:
				fmt.Fprintf(w, "  FAIL [%s] %s: %s\n", o.Severity, o.RuleName, o.Message)
			case o.LowConfidence:
				fmt.Fprintf(w, "  PASS [%s] %s (%s)\n", o.Severity, o.RuleName, o.Note)
			default:
				fmt.Fprintf(w, "  PASS [%s] %s\n", o.Severity, o.RuleName)
			}
		}
	}
}

func newRulesCmd() *cobra.Command {
	var catalog string
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List, validate or export rule catalogs",
		RunE: func(cmd *cobra.Command, args []string) error {
			ruleSet, err := loadRules(catalog)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tPRIORITY\tWEIGHT\tCHECK\tACTIVE")
			for _, r := range ruleSet {
				check := string(r.Check)
				if r.Field != "" {
					check += ":" + string(r.Field)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%g\t%s\t%t\n", r.ID, r.Name, r.Priority, r.Weight, check, r.Active)
			}
			return tw.Flush()
		},
	}
	cmd.PersistentFlags().StringVarP(&catalog, "catalog", "c", "", "YAML rule catalog (defaults to the built-in rules)")

	validate := &cobra.Command{
		Use:   "validate <catalog>",
		Short: "Check a catalog file for errors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ruleSet, err := rules.LoadCatalog(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d rules ok\n", args[0], len(ruleSet))
			return nil
		},
	}
	export := &cobra.Command{
		Use:   "export",
		Short: "Write the built-in rules as a YAML catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			ruleSet, err := loadRules("")
			if err != nil {
				return err
			}
			return rules.EncodeCatalog(cmd.OutOrStdout(), ruleSet)
		},
	}
	cmd.AddCommand(validate, export)
	return cmd
}
