package cmd

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/gookit/color"
	"github.com/spf13/cobra"

	"github.com/dbsmedya/goseed/internal/dumper"
	"github.com/dbsmedya/goseed/internal/graph"
	"github.com/dbsmedya/goseed/internal/logger"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and run preflight checks",
	Long: `Validate checks the configuration file and runs preflight checks
against the source database.

Checks performed:
  - Configuration syntax and required fields
  - Catalog consistency (models, associations, transforms, ignore lists)
  - Database connectivity
  - Table existence
  - Association key and type columns
  - Root queries (where clauses and arguments)
  - Foreign key cycles between tables (reported, not fatal)

Example:
  goseed validate --config goseed.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	w := outputWriter
	fmt.Fprintf(w, "\n=== Configuration Validation ===\n")
	fmt.Fprintf(w, "Config file: %s\n", GetConfigFile())

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(w, "%s %v\n", statusMark(false), err)
		return err
	}
	fmt.Fprintf(w, "Roots found: %d\n\n", len(cfg.Roots))

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log.Info("Starting validation checks...")

	ctx := context.Background()
	s, err := openSession(ctx, cfg, log, true)
	if err != nil {
		fmt.Fprintf(w, "%s %v\n", statusMark(false), err)
		return err
	}
	defer s.Close()
	fmt.Fprintf(w, "%s Catalog: %d models\n", statusMark(true), len(s.Catalog().Models()))

	checker, err := dumper.NewPreflightChecker(s.Dumper(), s.SchemaName())
	if err != nil {
		return fmt.Errorf("failed to create preflight checker: %w", err)
	}
	if err := checker.RunAllChecks(ctx); err != nil {
		fmt.Fprintf(w, "%s Preflight checks failed: %v\n", statusMark(false), err)
		var pe *dumper.PreflightError
		if errors.As(err, &pe) {
			keys := make([]string, 0, len(pe.Details))
			for k := range pe.Details {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(w, "    %s: %s\n", k, pe.Details[k])
			}
		}
		return fmt.Errorf("validation failed")
	}
	fmt.Fprintf(w, "%s Preflight checks passed\n", statusMark(true))

	g, err := graph.FromCatalog(s.Catalog())
	if err != nil {
		return fmt.Errorf("failed to build dependency graph: %w", err)
	}
	var cycleErr *graph.CycleError
	if err := g.Validate(); errors.As(err, &cycleErr) {
		fmt.Fprintln(w, color.Yellow.Sprintf("⚠  Foreign key cycle between %v: load the dump with foreign key checks disabled",
			cycleErr.Info.CycleParticipants))
	}

	fmt.Fprintln(w, "\n=== Validation Complete ===")
	fmt.Fprintf(w, "%s Configuration is valid\n", statusMark(true))
	return nil
}
