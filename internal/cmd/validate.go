package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ncode25/Copilot-orchestrator/internal/plan"
)

var validateCmd = &cobra.Command{
	Use:   "validate <plan-file>",
	Short: "Check a plan file for structural problems",
	Long: `Validate loads a plan file and reports duplicate IDs, unknown or
self-referencing dependencies, malformed resource patterns, and
dependency cycles. Warnings (missing descriptions, empty footprints)
are reported but do not fail validation.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	p, err := plan.Load(args[0])
	if err != nil {
		return err
	}

	issues := p.Validate()
	for _, issue := range issues {
		fmt.Println(issue)
	}

	if blocking := plan.Errors(issues); len(blocking) > 0 {
		return fmt.Errorf("plan has %d blocking issue(s)", len(blocking))
	}

	// Structural checks pass; cycles only surface when the graph is built.
	if _, err := p.BuildGraph(); err != nil {
		return err
	}

	fmt.Printf("plan ok: %d item(s)\n", len(p.Items))
	return nil
}
