package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ncode25/Copilot-orchestrator/internal/config"
	"github.com/ncode25/Copilot-orchestrator/internal/conflict"
	"github.com/ncode25/Copilot-orchestrator/internal/executor"
	"github.com/ncode25/Copilot-orchestrator/internal/logging"
	"github.com/ncode25/Copilot-orchestrator/internal/plan"
	"github.com/ncode25/Copilot-orchestrator/internal/run"
	"github.com/ncode25/Copilot-orchestrator/internal/tui"
)

var runCmd = &cobra.Command{
	Use:   "run <plan-file>",
	Short: "Execute a plan through phased, conflict-aware scheduling",
	Long: `Run loads a plan file (JSON or YAML), builds the dependency graph,
partitions it into phases, and executes each phase concurrently. Items
sharing resources or linked by dependencies run in separate phases.
Failed items get corrective re-attempts up to the configured bound
before the run escalates.

Examples:
  # Execute every item with a shell command
  copilot-orchestrator run plan.yaml --exec './do-task.sh'

  # Check phase structure without executing anything
  copilot-orchestrator run plan.yaml --dry-run

  # Watch the workspace for writes outside declared footprints
  copilot-orchestrator run plan.yaml --exec './do-task.sh' --watch

  # Live progress view
  copilot-orchestrator run plan.yaml --exec './do-task.sh' --tui`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

var (
	runExecCommand string
	runDryRun      bool
	runMaxParallel int
	runMaxRounds   int
	runFormat      string
	runOutputFile  string
	runWatch       bool
	runTUI         bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runExecCommand, "exec", "", "Shell command run per item (item exposed via ORCH_ITEM_* env vars)")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Mark every item successful without executing")
	runCmd.Flags().IntVar(&runMaxParallel, "max-parallel", 0, "Cap on concurrently dispatched items (0 = unlimited)")
	runCmd.Flags().IntVar(&runMaxRounds, "max-correction-rounds", 0, "Corrective attempts per item before escalating")
	runCmd.Flags().StringVar(&runFormat, "format", "", "Report format: json or yaml")
	runCmd.Flags().StringVarP(&runOutputFile, "output", "o", "", "Write the report to a file instead of stdout")
	runCmd.Flags().BoolVar(&runWatch, "watch", false, "Watch the workspace for writes outside declared footprints")
	runCmd.Flags().BoolVar(&runTUI, "tui", false, "Show live progress while the run executes")

	_ = viper.BindPFlag("executor.command", runCmd.Flags().Lookup("exec"))
	_ = viper.BindPFlag("executor.dry_run", runCmd.Flags().Lookup("dry-run"))
	_ = viper.BindPFlag("report.format", runCmd.Flags().Lookup("format"))
	_ = viper.BindPFlag("report.output_file", runCmd.Flags().Lookup("output"))
	_ = viper.BindPFlag("watch.enabled", runCmd.Flags().Lookup("watch"))
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if runMaxParallel > 0 {
		cfg.Scheduler.MaxParallel = runMaxParallel
	}
	if runMaxRounds > 0 {
		cfg.Scheduler.MaxCorrectionRounds = runMaxRounds
	}

	if !cfg.Executor.DryRun && cfg.Executor.Command == "" {
		return fmt.Errorf("either --exec or --dry-run is required")
	}

	p, err := plan.Load(args[0])
	if err != nil {
		return err
	}
	for _, issue := range p.Validate() {
		if issue.Warning {
			fmt.Fprintln(os.Stderr, issue)
		}
	}

	g, err := p.BuildGraph()
	if err != nil {
		return err
	}

	log := logging.NopLogger()
	if cfg.Logging.Enabled {
		log, err = logging.NewLogger(cfg.Logging.Dir, cfg.Logging.Level)
		if err != nil {
			return fmt.Errorf("initializing logging: %w", err)
		}
		defer log.Close()
	}

	var dispatch executor.Dispatcher = &shellDispatcher{command: cfg.Executor.Command}
	if cfg.Executor.DryRun {
		dispatch = dryRunDispatcher{}
	}

	var events []executor.EventHandler
	opts := []run.Option{
		run.WithLogger(log),
		run.WithMaxParallel(cfg.Scheduler.MaxParallel),
		run.WithMaxCorrectionRounds(cfg.Scheduler.MaxCorrectionRounds),
	}

	if cfg.Watch.Enabled {
		root := cfg.Watch.Root
		if root == "" {
			if root, err = os.Getwd(); err != nil {
				return err
			}
		}
		watcher, err := conflict.NewWatcher(root, log)
		if err != nil {
			return fmt.Errorf("starting footprint watcher: %w", err)
		}
		watcher.Start()
		defer watcher.Stop()
		events = append(events, watcher)
		opts = append(opts, run.WithWarnings(watcher.Warnings))
	}

	var program *tea.Program
	if runTUI {
		model := tui.NewModel(g.Len())
		program = tea.NewProgram(model)
		events = append(events, tui.NewEventAdapter(program))
	}
	if len(events) > 0 {
		opts = append(opts, run.WithEvents(executor.CombineHandlers(events...)))
	}

	scheduler := run.NewScheduler(g, dispatch, reissuePlanner{}, opts...)

	report, err := executeRun(scheduler, program)
	if err != nil {
		return err
	}

	if err := writeReport(report, cfg.Report.Format, cfg.Report.OutputFile); err != nil {
		return err
	}
	if !report.Completed() {
		return fmt.Errorf("run escalated: item %s failed after %d correction round(s)",
			report.Escalation.ItemID, report.Escalation.Rounds)
	}
	return nil
}

// executeRun drives the scheduler, underneath the TUI when one is active.
// SIGINT/SIGTERM cancel in-flight item commands.
func executeRun(scheduler *run.Scheduler, program *tea.Program) (*run.Report, error) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if program == nil {
		return scheduler.Run(ctx)
	}

	type result struct {
		report *run.Report
		err    error
	}
	done := make(chan result, 1)
	go func() {
		report, err := scheduler.Run(ctx)
		program.Send(tui.RunFinishedMsg{Escalated: err == nil && !report.Completed()})
		done <- result{report, err}
	}()

	if _, err := program.Run(); err != nil {
		return nil, err
	}
	res := <-done
	return res.report, res.err
}

func writeReport(report *run.Report, format, outputFile string) error {
	data, err := report.Encode(format)
	if err != nil {
		return err
	}
	if outputFile == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(outputFile, data, 0o644)
}
