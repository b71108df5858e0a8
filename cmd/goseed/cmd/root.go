package cmd

import (
	"io"
	"os"

	"github.com/gookit/color"
	"github.com/spf13/cobra"

	"github.com/dbsmedya/goseed/internal/config"
)

// Version information (set via ldflags at build time)
var (
	Version = "0.0.1-dev"
	Commit  = "unknown"
)

// CLI flags that override config file values
var (
	cfgFile    string
	logLevel   string
	logFormat  string
	batchSize  int
	output     string
	verbose    bool
	verboseSQL bool
	unscoped   bool
	verify     bool
	noColor    bool
)

// outputWriter receives command output; tests replace it.
var outputWriter io.Writer = os.Stdout

func setOutputWriter(w io.Writer) {
	outputWriter = w
}

func resetOutputWriter() {
	outputWriter = os.Stdout
}

var rootCmd = &cobra.Command{
	Use:   "goseed",
	Short: "Referentially consistent database subset dumps",
	Long: `goseed extracts a subset of a production database as plain INSERT
statements that load into an empty copy of the schema.

Features:
  - Root queries walked along belongs-to and has-many associations
  - Every referenced row is written before the rows pointing at it
  - Exclusion and inclusion patterns, per-path and total row limits
  - Column anonymization and custom row transforms
  - MySQL, PostgreSQL and SQLite sources`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			color.Enable = false
		}
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "goseed.yaml",
		"Path to configuration file")

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"Override log format (json, text)")

	rootCmd.PersistentFlags().IntVar(&batchSize, "batch-size", 0,
		"Override batch size (rows per fetched page)")
	rootCmd.PersistentFlags().BoolVar(&unscoped, "unscoped", false,
		"Ignore model default scopes")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false,
		"Disable colored output")
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}

// GetCLIOverrides returns the CLI flag override values
func GetCLIOverrides() config.Overrides {
	return config.Overrides{
		LogLevel:   logLevel,
		LogFormat:  logFormat,
		BatchSize:  batchSize,
		Output:     output,
		Verbose:    verbose,
		VerboseSQL: verboseSQL,
		Unscoped:   unscoped,
		Verify:     verify,
	}
}
