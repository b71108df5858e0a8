package cmd

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dbsmedya/goseed/internal/dumper"
	"github.com/dbsmedya/goseed/internal/logger"
)

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Count the rows the root queries start from",
	Long: `Estimate counts the rows matching every root query and the size of
every catalog table, without writing anything.

Example:
  goseed estimate --config goseed.yaml`,
	RunE: runEstimate,
}

func init() {
	rootCmd.AddCommand(estimateCmd)
}

func runEstimate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx := context.Background()
	s, err := openSession(ctx, cfg, log, true)
	if err != nil {
		return err
	}
	defer s.Close()

	est, err := dumper.NewEstimator(s.Dumper()).Estimate(ctx)
	if err != nil {
		return fmt.Errorf("estimation failed: %w", err)
	}

	w := outputWriter
	printHeader(w, "Estimate: %s", GetConfigFile())

	fmt.Fprintln(w)
	printSection(w, "Roots")
	rows := make([][]string, 0, len(est.Roots))
	for _, r := range est.Roots {
		rows = append(rows, []string{
			r.Model,
			r.Table,
			humanize.Comma(r.Matching),
			humanize.Comma(r.Rows),
			humanize.Comma(r.Pages),
		})
	}
	writeTable(w, []string{"MODEL", "TABLE", "MATCHING", "ROWS", "PAGES"}, rows)

	fmt.Fprintln(w)
	printSection(w, "Tables")
	rows = rows[:0]
	for el := est.TableCounts.Front(); el != nil; el = el.Next() {
		rows = append(rows, []string{el.Key, humanize.Comma(el.Value)})
	}
	writeTable(w, []string{"TABLE", "ROWS"}, rows)

	fmt.Fprintf(w, "\nBatch size: %d rows per query\n", est.BatchSize)
	return nil
}
