package tasks

import (
	"context"
	"fmt"

	"github.com/open-teleop/scenebridge/pkg/log"
)

// Step is one stage of a workflow
type Step struct {
	Name string
	Run  func(ctx context.Context) error
	// Dirties marks a step that leaves local state needing manual recovery
	// until a later Cleans step completes.
	Dirties bool
	Cleans  bool
}

// Result describes how far a workflow got
type Result struct {
	Completed []string
	Failed    string
	Err       error
	// Dirty is set while a Dirties step has completed without a later
	// Cleans step.
	Dirty bool
}

// NeedsRecovery reports a workflow that stopped with local state to revert
func (r Result) NeedsRecovery() bool {
	return r.Err != nil && r.Dirty
}

// Workflow runs steps in order and stops at the first failure
type Workflow struct {
	Name   string
	Steps  []Step
	Logger log.Logger
}

// Execute runs the steps. A cancelled context stops the workflow before
// the next step.
func (w *Workflow) Execute(ctx context.Context) Result {
	var res Result
	for _, step := range w.Steps {
		if err := ctx.Err(); err != nil {
			res.Failed = step.Name
			res.Err = err
			return res
		}

		if w.Logger != nil {
			w.Logger.Debugf("%s: running %s", w.Name, step.Name)
		}
		if err := step.Run(ctx); err != nil {
			res.Failed = step.Name
			res.Err = err
			return res
		}

		res.Completed = append(res.Completed, step.Name)
		if step.Dirties {
			res.Dirty = true
		}
		if step.Cleans {
			res.Dirty = false
		}
	}
	return res
}

// StepError returns the failure annotated with the failed step, or nil
func (r Result) StepError() error {
	if r.Err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", r.Failed, r.Err)
}
