package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/gookit/color"
	"github.com/spf13/cobra"

	"github.com/dbsmedya/goseed/internal/dumper"
	"github.com/dbsmedya/goseed/internal/graph"
	"github.com/dbsmedya/goseed/internal/logger"
)

var planMaxDepth int

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the association tree and insert order",
	Long: `Plan shows what a dump would walk without reading any rows.

The plan shows:
  - The association tree of every root with the decision taken for each
    association (traverse, excluded, optional, inverse, depth, ...)
  - The foreign keys that are nulled when an association is skipped
  - The table insert order implied by the catalog's belongs-to associations
  - Foreign key cycles, which need checks disabled when loading

The source database is only contacted when catalog.introspect is set.

Example:
  goseed plan --config goseed.yaml --max-depth 4`,
	RunE: runPlan,
}

func init() {
	planCmd.Flags().IntVar(&planMaxDepth, "max-depth", 5,
		"Stop branches of roots without deep_limit after this many hops")

	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	s, err := openSession(context.Background(), cfg, log, cfg.Catalog.Introspect)
	if err != nil {
		return err
	}
	defer s.Close()

	g, err := graph.FromCatalog(s.Catalog())
	if err != nil {
		return fmt.Errorf("failed to build dependency graph: %w", err)
	}

	w := outputWriter
	printHeader(w, "Dump Plan: %s", GetConfigFile())

	for _, root := range s.Dumper().Plan(planMaxDepth) {
		fmt.Fprintln(w)
		printSection(w, "Root "+root.Model)
		if rc, ok := cfg.GetRoot(root.Model); ok && rc.Where != "" {
			fmt.Fprintf(w, "  WHERE: %s\n", rc.Where)
		}
		fmt.Fprintf(w, "  %s\n", color.Bold.Sprintf("%s (%s)", root.Path, root.Table))
		printPlanTree(w, root.Children, "  ")
	}

	order, cycle := g.PartialOrder()
	fmt.Fprintln(w)
	printSection(w, "Insert Order (referenced tables first)")
	for i, table := range order {
		parents := g.GetParents(table)
		line := fmt.Sprintf("  [%d] %s", i+1, table)
		if len(parents) > 0 {
			line += " <- " + strings.Join(parents, ", ")
		}
		if g.GetNode(table).SelfReference {
			line += color.Gray.Sprint(" (self reference)")
		}
		fmt.Fprintln(w, line)
	}
	if cycle != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, color.Yellow.Sprintf("  Foreign key cycle: %s", strings.Join(cycle.CyclePath, " -> ")))
		fmt.Fprintln(w, color.Yellow.Sprint("  Load the dump with foreign key checks disabled."))
	}

	fmt.Fprintln(w)
	printSection(w, "Relationships")
	for _, edge := range g.AllEdges() {
		meta := g.GetEdgeMeta(edge.From, edge.To)
		kind := "required"
		if meta.Optional {
			kind = "optional"
		}
		fmt.Fprintf(w, "  • %s → %s (%s) FK: %s\n", edge.From, edge.To, kind, strings.Join(meta.ForeignKeys, ", "))
	}

	fmt.Fprintln(w)
	printSection(w, "Configuration")
	fmt.Fprintf(w, "  Batch Size:        %d\n", cfg.Dump.BatchSize)
	fmt.Fprintf(w, "  Insert Batch Size: %d\n", cfg.Dump.InsertBatchSize)
	fmt.Fprintf(w, "  Spool:             %s\n", cfg.Dump.Spool)
	fmt.Fprintf(w, "  Unscoped:          %v\n", cfg.Dump.Unscoped)
	return nil
}

// printPlanTree draws nodes below prefix with box-drawing branches.
func printPlanTree(w io.Writer, nodes []*dumper.PlanNode, prefix string) {
	for i, n := range nodes {
		branch, next := "├── ", "│   "
		if i == len(nodes)-1 {
			branch, next = "└── ", "    "
		}
		fmt.Fprintln(w, prefix+branch+describeNode(n))
		printPlanTree(w, n.Children, prefix+next)
	}
}

func describeNode(n *dumper.PlanNode) string {
	name := n.Path
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s → %s (%s, %s)", name, n.Model, n.Table, n.Kind)
	b.WriteString(" " + statusColor(n.Status).Sprintf("[%s]", n.Status))
	if n.Nullifies != "" {
		b.WriteString(color.Gray.Sprintf(" nulls %s", n.Nullifies))
	}
	if n.Limitable {
		b.WriteString(color.Gray.Sprint(" limitable"))
	}
	return b.String()
}

func statusColor(status string) color.Color {
	switch status {
	case "traverse":
		return color.Green
	case dumper.StatusRepeat:
		return color.Cyan
	case dumper.StatusTruncated:
		return color.Magenta
	case "inverse":
		return color.Gray
	default:
		return color.Yellow
	}
}
