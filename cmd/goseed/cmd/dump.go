package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/gookit/color"
	"github.com/spf13/cobra"

	"github.com/dbsmedya/goseed/internal/database"
	"github.com/dbsmedya/goseed/internal/dumper"
	"github.com/dbsmedya/goseed/internal/logger"
	"github.com/dbsmedya/goseed/internal/verifier"
)

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the configured subset as INSERT statements",
	Long: `Dump runs every configured root query, walks the associations of the
rows it finds and writes them as INSERT statements.

The output loads into an empty copy of the schema with foreign key checks
on: every referenced row comes before the rows referencing it. The summary
is printed on stderr so the dump can go to stdout.

Example:
  goseed dump --config goseed.yaml --output seed.sql
  goseed dump -c goseed.yaml | mysql staging`,
	RunE: runDump,
}

func init() {
	dumpCmd.Flags().StringVarP(&output, "output", "o", "",
		"Override output path (\"-\" for stdout)")
	dumpCmd.Flags().BoolVar(&verbose, "verbose", false,
		"Log every association walked")
	dumpCmd.Flags().BoolVar(&verboseSQL, "verbose-sql", false,
		"Log every query")
	dumpCmd.Flags().BoolVar(&verify, "verify", false,
		"Check the dump for duplicate and dangling rows")

	rootCmd.AddCommand(dumpCmd)
}

func runDump(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log.Infow("Starting dump", "config", GetConfigFile(), "roots", cfg.ListRoots(), "output", cfg.Dump.Output)

	ctx, stop := database.WithSignals(context.Background(), func(sig os.Signal) {
		log.Warnw("Received signal, aborting dump", "signal", sig.String())
	})
	defer stop()

	s, err := openSession(ctx, cfg, log, true)
	if err != nil {
		return err
	}
	defer s.Close()

	out, err := openOutput(cfg.Dump.Output)
	if err != nil {
		return err
	}

	res, err := s.Dump(ctx, out)
	if err != nil {
		if cfg.Dump.Output != "-" {
			if rmErr := os.Remove(cfg.Dump.Output); rmErr != nil && !os.IsNotExist(rmErr) {
				log.Warnf("Failed to remove partial output %s: %v", cfg.Dump.Output, rmErr)
			}
		}
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("dump aborted: %w", err)
		}
		return fmt.Errorf("dump failed: %w", err)
	}

	w := cmd.ErrOrStderr()
	printDumpSummary(w, res)

	if cfg.Dump.Verify {
		report := verifier.CheckManifest(res.Manifest)
		fmt.Fprintln(w)
		printSection(w, "Verification")
		fmt.Fprintf(w, "  Rows checked:  %s in %d tables\n", humanize.Comma(int64(report.Rows)), report.Tables)
		if len(report.Issues) > 0 {
			fmt.Fprintln(w, report.Summary())
		}
		if err := report.Err(); err != nil {
			fmt.Fprintf(w, "  %s %v\n", statusMark(false), err)
			return err
		}
		fmt.Fprintf(w, "  %s no duplicate or dangling rows\n", statusMark(true))
	}
	return nil
}

// openOutput returns the dump destination. "-" is stdout, which stays open
// after the dump closes its writer.
func openOutput(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopWriteCloser{outputWriter}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

func printDumpSummary(w io.Writer, res *dumper.Result) {
	fmt.Fprintln(w)
	printHeader(w, "Dump Complete")

	rows := make([][]string, 0, res.Tables.Len())
	for el := res.Tables.Front(); el != nil; el = el.Next() {
		rows = append(rows, []string{el.Key, humanize.Comma(el.Value)})
	}
	fmt.Fprintln(w)
	printSection(w, "Tables")
	writeTable(w, []string{"TABLE", "ROWS"}, rows)

	fmt.Fprintln(w)
	printSection(w, "Roots")
	for _, r := range res.Roots {
		fmt.Fprintf(w, "  %s: %s rows\n", r.Model, humanize.Comma(r.Rows))
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Total rows: %s\n", color.Green.Sprint(humanize.Comma(res.Rows)))
	fmt.Fprintf(w, "  Size:       %s\n", humanize.Bytes(uint64(res.Bytes)))
	fmt.Fprintf(w, "  SHA-256:    %s\n", res.Checksum)
	fmt.Fprintf(w, "  Duration:   %s\n", res.Duration)
}
