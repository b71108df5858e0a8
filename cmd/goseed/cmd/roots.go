package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/goseed/internal/config"
)

var rootsCmd = &cobra.Command{
	Use:   "roots",
	Short: "List the root queries defined in configuration",
	Long: `Roots displays every root query of the configuration file along with
its limits.

Example:
  goseed roots --config goseed.yaml`,
	RunE: runRoots,
}

func init() {
	rootCmd.AddCommand(rootsCmd)
}

func runRoots(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	w := outputWriter
	if len(cfg.Roots) == 0 {
		fmt.Fprintf(w, "No roots defined in %s\n", configFile)
		return nil
	}

	fmt.Fprintf(w, "Roots defined in %s:\n\n", configFile)
	rows := make([][]string, 0, len(cfg.Roots))
	for i, r := range cfg.Roots {
		where := r.Where
		if where == "" {
			where = "(none)"
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			r.Model,
			truncate(where, 40),
			limitString(r.Limit),
			limitPtrString(r.TotalLimit),
			limitPtrString(r.DeepLimit),
			strconv.Itoa(len(r.AssociationLimits)),
			strconv.Itoa(len(r.Include)),
		})
	}
	writeTable(w, []string{"#", "MODEL", "WHERE", "LIMIT", "TOTAL", "DEPTH", "ASSOC LIMITS", "INCLUDES"}, rows)

	fmt.Fprintf(w, "\nTotal: %d root(s)\n", len(cfg.Roots))
	return nil
}

func limitString(n int) string {
	if n <= 0 {
		return "-"
	}
	return strconv.Itoa(n)
}

func limitPtrString(n *int) string {
	if n == nil {
		return "-"
	}
	return strconv.Itoa(*n)
}
