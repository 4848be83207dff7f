package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/ncode25/Copilot-orchestrator/internal/workitem"
)

// shellDispatcher executes each work item by running a shell command. The
// item is described to the command through environment variables so a single
// command template serves every item.
type shellDispatcher struct {
	command string
}

func (d *shellDispatcher) Execute(ctx context.Context, item *workitem.Item) (string, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", d.command)
	cmd.Env = append(os.Environ(),
		"ORCH_ITEM_ID="+item.ID,
		"ORCH_ITEM_DESCRIPTION="+item.Description,
		"ORCH_ITEM_RESOURCES="+strings.Join(item.Resources.Tokens(), " "),
		"ORCH_ITEM_ROUND="+strconv.Itoa(item.Round),
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("command failed: %w\n%s", err, strings.TrimSpace(string(output)))
	}
	return strings.TrimSpace(string(output)), nil
}

// dryRunDispatcher marks every item successful without running anything.
type dryRunDispatcher struct{}

func (dryRunDispatcher) Execute(ctx context.Context, item *workitem.Item) (string, error) {
	return "dry-run", nil
}

// reissuePlanner is the correction collaborator for command-based execution:
// a correction is a fresh attempt at the same work, so the corrective item
// inherits the failed item's description, dependencies, and resources.
type reissuePlanner struct{}

func (reissuePlanner) ProducePlan(ctx context.Context, requirements string) ([]*workitem.Item, error) {
	return nil, fmt.Errorf("plans are loaded from files, not produced")
}

func (reissuePlanner) ProduceCorrection(ctx context.Context, failed *workitem.Item, detail string) (*workitem.Item, error) {
	item := workitem.New("", failed.Description, nil, workitem.ResourceSet{})
	return item, nil
}
