package main

import (
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/open-teleop/scenebridge/pkg/config"
	customlog "github.com/open-teleop/scenebridge/pkg/log"
	"github.com/open-teleop/scenebridge/pkg/tasks"
)

// env is what the commands run against
type env struct {
	in          io.Reader
	out         io.Writer
	errOut      io.Writer
	interactive bool
	runner      func(out, errOut io.Writer) tasks.Runner
	vcs         tasks.VCS
}

func defaultEnv() *env {
	return &env{
		in:          os.Stdin,
		out:         os.Stdout,
		errOut:      os.Stderr,
		interactive: term.IsTerminal(int(os.Stdin.Fd())),
		runner: func(out, errOut io.Writer) tasks.Runner {
			r := tasks.NewShellRunner()
			r.Stdout = out
			r.Stderr = errOut
			return r
		},
		vcs: tasks.NewGitVCS(),
	}
}

type rootOptions struct {
	dir        string
	configPath string
	logLevel   string
	yes        bool
}

func newRootCmd(e *env) *cobra.Command {
	opts := &rootOptions{}

	build := func() (*tasks.Tasks, error) {
		dir, err := filepath.Abs(opts.dir)
		if err != nil {
			return nil, err
		}
		cfgPath := opts.configPath
		if cfgPath == "" {
			cfgPath = filepath.Join(dir, config.TasksFilename)
		}
		cfg, err := config.LoadTasksConfig(cfgPath)
		if err != nil {
			return nil, err
		}

		logger := customlog.NewConsoleLogger(opts.logLevel, e.out)
		t := tasks.New(dir, cfg, e.runner(e.out, e.errOut), e.vcs, logger)
		t.In = e.in
		t.Out = e.out
		t.ErrOut = e.errOut
		t.AssumeYes = opts.yes
		t.Interactive = e.interactive
		return t, nil
	}

	root := &cobra.Command{
		Use:           "tasks",
		Short:         "Project maintenance tasks",
		Long:          `Runs the cleaning, documentation, linting, testing and release chores of the project.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := build()
			if err != nil {
				return err
			}
			t.Help()
			return nil
		},
	}
	root.SetIn(e.in)
	root.SetOut(e.out)
	root.SetErr(e.errOut)

	root.PersistentFlags().StringVar(&opts.dir, "dir", ".", "Project root directory")
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Tasks configuration file (default <dir>/tasks.yaml)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "Log level")
	root.PersistentFlags().BoolVarP(&opts.yes, "yes", "y", false, "Answer yes to confirmations")

	root.SetHelpCommand(newHelpCmd(build))
	root.AddCommand(
		newCleanCmd(build),
		newDocsCmd(build),
		newLintCmd(build),
		newCheckCmd(build),
		newDeployDocsCmd(build),
		newTestCmd(build),
		newPrepareChangelogCmd(build),
		newBuildGhuserCmd(build),
		newReleaseCmd(build),
	)
	return root
}
