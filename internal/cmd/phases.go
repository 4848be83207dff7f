package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ncode25/Copilot-orchestrator/internal/plan"
	"github.com/ncode25/Copilot-orchestrator/internal/schedule"
)

var phasesCmd = &cobra.Command{
	Use:   "phases <plan-file>",
	Short: "Show the phase partition of a plan without executing it",
	Long: `Phases loads a plan file, builds the dependency graph, and prints the
phase layering the scheduler would execute: items in the same phase run
concurrently, phases run in order. Use it to sanity-check footprints
and dependencies before a real run.`,
	Args: cobra.ExactArgs(1),
	RunE: runPhases,
}

var phasesMaxParallel int

func init() {
	rootCmd.AddCommand(phasesCmd)

	phasesCmd.Flags().IntVar(&phasesMaxParallel, "max-parallel", 0, "Cap on concurrently dispatched items (0 = unlimited)")
}

var (
	phaseHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	phaseItemStyle   = lipgloss.NewStyle().PaddingLeft(2)
	phaseMetaStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func runPhases(cmd *cobra.Command, args []string) error {
	p, err := plan.Load(args[0])
	if err != nil {
		return err
	}
	g, err := p.BuildGraph()
	if err != nil {
		return err
	}

	phases, err := schedule.Partition(g)
	if err != nil {
		return err
	}
	phases = schedule.SplitForParallelism(phases, phasesMaxParallel)

	width := 80
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		width = w
	}

	var sb strings.Builder
	for _, phase := range phases {
		sb.WriteString(phaseHeaderStyle.Render(fmt.Sprintf("Phase %d", phase.Index+1)))
		sb.WriteString(phaseMetaStyle.Render(fmt.Sprintf("  (%d item(s))", len(phase.Items))))
		sb.WriteString("\n")
		for _, id := range phase.Items {
			item := g.Item(id)
			line := id
			if resources := item.Resources.Tokens(); len(resources) > 0 {
				line += phaseMetaStyle.Render("  [" + strings.Join(resources, ", ") + "]")
			}
			sb.WriteString(phaseItemStyle.MaxWidth(width).Render(line))
			sb.WriteString("\n")
		}
	}

	fmt.Print(sb.String())
	return nil
}
