package tasks

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func step(name string, err error, ran *[]string) Step {
	return Step{Name: name, Run: func(ctx context.Context) error {
		*ran = append(*ran, name)
		return err
	}}
}

func TestWorkflowStopsAtFirstFailure(t *testing.T) {
	var ran []string
	boom := errors.New("boom")
	w := &Workflow{Name: "w", Steps: []Step{step("a", nil, &ran), step("b", boom, &ran), step("c", nil, &ran)}}

	res := w.Execute(context.Background())
	assert.Equal(t, []string{"a", "b"}, ran)
	assert.Equal(t, []string{"a"}, res.Completed)
	assert.Equal(t, "b", res.Failed)
	assert.ErrorIs(t, res.Err, boom)
	assert.False(t, res.NeedsRecovery())
}

func TestWorkflowDirtyState(t *testing.T) {
	var ran []string
	tag := step("tag", nil, &ran)
	tag.Dirties = true
	push := step("push", nil, &ran)
	push.Cleans = true

	res := (&Workflow{Steps: []Step{tag, step("fail", errors.New("declined"), &ran), push}}).Execute(context.Background())
	assert.True(t, res.Dirty)
	assert.True(t, res.NeedsRecovery())

	res = (&Workflow{Steps: []Step{tag, push}}).Execute(context.Background())
	assert.NoError(t, res.Err)
	assert.False(t, res.Dirty)
	assert.NoError(t, res.StepError())
}

func TestWorkflowHonoursCancellation(t *testing.T) {
	var ran []string
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := (&Workflow{Steps: []Step{step("a", nil, &ran)}}).Execute(ctx)
	assert.Empty(t, ran)
	assert.Equal(t, "a", res.Failed)
	assert.ErrorIs(t, res.Err, context.Canceled)
}
