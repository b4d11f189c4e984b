package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-teleop/scenebridge/pkg/tasks"
)

type recordingRunner struct {
	commands []string
}

func (r *recordingRunner) Run(ctx context.Context, command string) error {
	r.commands = append(r.commands, command)
	return nil
}

type nopVCS struct{}

func (nopVCS) Clone(ctx context.Context, url, dir string) error { return os.MkdirAll(dir, 0o755) }
func (nopVCS) CommitFiles(ctx context.Context, repoDir, message string, files ...string) error {
	return nil
}
func (nopVCS) CommitAll(ctx context.Context, repoDir, message string) error { return nil }
func (nopVCS) Push(ctx context.Context, repoDir string, tags bool) error    { return nil }

func run(t *testing.T, args ...string) (string, *recordingRunner, error) {
	t.Helper()
	var out bytes.Buffer
	runner := &recordingRunner{}
	e := &env{
		in:     strings.NewReader(""),
		out:    &out,
		errOut: &out,
		runner: func(out, errOut io.Writer) tasks.Runner { return runner },
		vcs:    nopVCS{},
	}
	cmd := newRootCmd(e)
	cmd.SetArgs(append([]string{"--dir", t.TempDir()}, args...))
	err := cmd.Execute()
	return out.String(), runner, err
}

func TestDefaultActionIsHelp(t *testing.T) {
	out, runner, err := run(t)
	require.NoError(t, err)
	assert.Contains(t, out, "prepare-changelog")
	assert.Contains(t, out, tasks.HelpHint)
	assert.Empty(t, runner.commands)

	helpOut, _, err := run(t, "help")
	require.NoError(t, err)
	assert.Equal(t, out, helpOut)
}

func TestCleanFlags(t *testing.T) {
	_, runner, err := run(t, "clean", "--builds=false")
	require.NoError(t, err)
	assert.Empty(t, runner.commands)

	_, runner, err = run(t, "clean")
	require.NoError(t, err)
	assert.Equal(t, []string{"python setup.py clean"}, runner.commands)
}

func TestTestFlags(t *testing.T) {
	_, runner, err := run(t, "test", "--doctest", "--coverage")
	require.NoError(t, err)
	assert.Equal(t, []string{"pytest --doctest-modules --cov=compas_fab"}, runner.commands)
}

func TestReleaseInvalidType(t *testing.T) {
	_, runner, err := run(t, "release", "bogus")
	var exit *tasks.ExitError
	require.True(t, errors.As(err, &exit))
	assert.Equal(t, tasks.InvalidReleaseMessage, exit.Message)
	assert.Empty(t, runner.commands)
}

func TestReleaseDeclinedWithoutTerminal(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "CHANGELOG.rst"), []byte("Changelog\n=========\n\n0.1.0\n----------\n"), 0o644))

	var out bytes.Buffer
	e := &env{
		in:     strings.NewReader("y\n"),
		out:    &out,
		errOut: &out,
		runner: func(out, errOut io.Writer) tasks.Runner { return &recordingRunner{} },
		vcs:    nopVCS{},
	}
	cmd := newRootCmd(e)
	cmd.SetArgs([]string{"--dir", dir, "release", "patch"})
	err := cmd.Execute()

	var exit *tasks.ExitError
	require.True(t, errors.As(err, &exit))
	assert.Equal(t, tasks.RevertMessage, exit.Message)
	assert.Contains(t, out.String(), "pass --yes")
}

func TestTasksConfigFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tasks.yaml"), []byte("package: compas_slicer\n"), 0o644))

	var out bytes.Buffer
	runner := &recordingRunner{}
	e := &env{
		in:     strings.NewReader(""),
		out:    &out,
		errOut: &out,
		runner: func(out, errOut io.Writer) tasks.Runner { return runner },
		vcs:    nopVCS{},
	}
	cmd := newRootCmd(e)
	cmd.SetArgs([]string{"--dir", dir, "test", "--coverage"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, []string{"pytest --cov=compas_slicer"}, runner.commands)
}
