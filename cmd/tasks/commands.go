package main

import (
	"github.com/spf13/cobra"

	"github.com/open-teleop/scenebridge/pkg/tasks"
)

type builder func() (*tasks.Tasks, error)

// simple wraps a task that takes no options
func simple(use, short string, build builder, run func(cmd *cobra.Command, t *tasks.Tasks) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := build()
			if err != nil {
				return err
			}
			return run(cmd, t)
		},
	}
}

func newHelpCmd(build builder) *cobra.Command {
	return simple("help", "Lists available tasks and usage.", build, func(cmd *cobra.Command, t *tasks.Tasks) error {
		t.Help()
		return nil
	})
}

func newCleanCmd(build builder) *cobra.Command {
	opts := tasks.CleanAll
	cmd := simple("clean", "Cleans the local copy from compiled artifacts.", build, func(cmd *cobra.Command, t *tasks.Tasks) error {
		return t.Clean(cmd.Context(), opts)
	})
	cmd.Flags().BoolVar(&opts.Docs, "docs", true, "True to clean up generated documentation, otherwise False")
	cmd.Flags().BoolVar(&opts.Bytecode, "bytecode", true, "True to clean up compiled python files, otherwise False.")
	cmd.Flags().BoolVar(&opts.Builds, "builds", true, "True to clean up build/packaging artifacts, otherwise False.")
	cmd.Flags().BoolVar(&opts.Ghuser, "ghuser", true, "True to clean up Grasshopper user objects, otherwise False.")
	return cmd
}

func newDocsCmd(build builder) *cobra.Command {
	var opts tasks.DocsOptions
	cmd := simple("docs", "Builds package's HTML documentation.", build, func(cmd *cobra.Command, t *tasks.Tasks) error {
		return t.Docs(cmd.Context(), opts)
	})
	cmd.Flags().BoolVar(&opts.Doctest, "doctest", false, "True to run doctests, otherwise False.")
	cmd.Flags().BoolVar(&opts.Rebuild, "rebuild", false, "True to clean all previously built docs before starting, otherwise False.")
	cmd.Flags().BoolVar(&opts.CheckLinks, "check-links", false, "True to check all web links in docs for validity, otherwise False.")
	return cmd
}

func newLintCmd(build builder) *cobra.Command {
	return simple("lint", "Check the consistency of coding style.", build, func(cmd *cobra.Command, t *tasks.Tasks) error {
		return t.Lint(cmd.Context())
	})
}

func newCheckCmd(build builder) *cobra.Command {
	return simple("check", "Check the consistency of documentation, coding style and a few other things.", build,
		func(cmd *cobra.Command, t *tasks.Tasks) error {
			return t.Check(cmd.Context())
		})
}

func newDeployDocsCmd(build builder) *cobra.Command {
	return simple("deploy-docs", "Deploy docs.", build, func(cmd *cobra.Command, t *tasks.Tasks) error {
		return t.DeployDocs(cmd.Context())
	})
}

func newTestCmd(build builder) *cobra.Command {
	var opts tasks.TestOptions
	cmd := simple("test", "Run all tests.", build, func(cmd *cobra.Command, t *tasks.Tasks) error {
		return t.Test(cmd.Context(), opts)
	})
	cmd.Flags().BoolVar(&opts.Checks, "checks", false, "True to run all checks before testing, otherwise False.")
	cmd.Flags().BoolVar(&opts.Doctest, "doctest", false, "True to run doctest modules, otherwise False.")
	cmd.Flags().BoolVar(&opts.Codeblock, "codeblock", false, "True to run codeblocks present in the documentation, otherwise False")
	cmd.Flags().BoolVar(&opts.Coverage, "coverage", false, "True to generate coverage report using pytest-cov")
	return cmd
}

func newPrepareChangelogCmd(build builder) *cobra.Command {
	return simple("prepare-changelog", "Prepare changelog for next release.", build, func(cmd *cobra.Command, t *tasks.Tasks) error {
		return t.PrepareChangelog(cmd.Context())
	})
}

func newBuildGhuserCmd(build builder) *cobra.Command {
	var opts tasks.GhuserOptions
	cmd := simple("build-ghuser-components", "Build Grasshopper user objects from source", build,
		func(cmd *cobra.Command, t *tasks.Tasks) error {
			return t.BuildGhuserComponents(cmd.Context(), opts)
		})
	cmd.Flags().StringVar(&opts.GHIOFolder, "gh-io-folder", "", "Folder where GH_IO.dll is located. If not specified, it will try to download from NuGet.")
	cmd.Flags().StringVar(&opts.IronPython, "ironpython", "", "Command for running the IronPython executable. Defaults to `ipy`.")
	return cmd
}

func newReleaseCmd(build builder) *cobra.Command {
	return &cobra.Command{
		Use:   "release <major|minor|patch>",
		Short: "Releases the project in one swift command!",
		Long:  "Releases the project in one swift command!\n\nType of release follows semver rules. Must be one of: major, minor, patch.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := build()
			if err != nil {
				return err
			}
			res := t.Release(cmd.Context(), args[0])
			if res.NeedsRecovery() {
				t.Logger.Warnf("Completed before stopping: %v", res.Completed)
			}
			return res.Err
		},
	}
}
