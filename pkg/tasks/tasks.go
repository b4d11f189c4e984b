package tasks

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/open-teleop/scenebridge/pkg/config"
	"github.com/open-teleop/scenebridge/pkg/log"
)

// Release types
const (
	ReleaseMajor = "major"
	ReleaseMinor = "minor"
	ReleasePatch = "patch"
)

// Messages shown to the user
const (
	InvalidReleaseMessage = "The release type parameter is invalid.\nMust be one of: major, minor, patch"
	RevertMessage         = "You need to manually revert the tag/commits created."
	ReleaseQuestion       = "Everything is ready. You are about to push to git which will trigger a release to pypi.org. Are you sure? [y/N]"
	HelpHint              = `Use "tasks -h <taskname>" to get detailed help for a task.`
	changelogFile         = "CHANGELOG.rst"
	changelogCommit       = "Prepare changelog for next release"
	deployCommit          = "doc-deployer"
)

// UnreleasedTemplate is inserted above the newest version of the changelog
const UnreleasedTemplate = "\nUnreleased\n----------\n\n**Added**\n\n**Changed**\n\n**Fixed**\n\n**Deprecated**\n\n**Removed**\n"

// TaskInfo describes a task for the help listing
type TaskInfo struct {
	Name    string
	Summary string
}

// Catalog lists the tasks in help order
var Catalog = []TaskInfo{
	{"build-ghuser-components", "Build Grasshopper user objects from source"},
	{"check", "Check the consistency of documentation, coding style and a few other things."},
	{"clean", "Cleans the local copy from compiled artifacts."},
	{"deploy-docs", "Deploy docs."},
	{"docs", "Builds package's HTML documentation."},
	{"help", "Lists available tasks and usage."},
	{"lint", "Check the consistency of coding style."},
	{"prepare-changelog", "Prepare changelog for next release."},
	{"release", "Releases the project in one swift command!"},
	{"test", "Run all tests."},
}

// Tasks runs the maintenance tasks of the project rooted at BaseDir
type Tasks struct {
	BaseDir string
	Config  *config.TasksConfig
	Runner  Runner
	VCS     VCS
	Logger  log.Logger

	Out    io.Writer
	ErrOut io.Writer
	In     io.Reader
	// AssumeYes answers the release confirmation without asking
	AssumeYes bool
	// Interactive is false when there is nobody to ask; the release
	// confirmation is then declined unless AssumeYes is set.
	Interactive bool
}

// New creates the tasks for the project at baseDir
func New(baseDir string, cfg *config.TasksConfig, runner Runner, vcs VCS, logger log.Logger) *Tasks {
	if cfg == nil {
		cfg = config.DefaultTasksConfig()
	}
	return &Tasks{
		BaseDir:     baseDir,
		Config:      cfg,
		Runner:      runner,
		VCS:         vcs,
		Logger:      logger,
		Out:         os.Stdout,
		ErrOut:      os.Stderr,
		In:          os.Stdin,
		Interactive: true,
	}
}

func (t *Tasks) path(rel string) string {
	return filepath.Join(t.BaseDir, filepath.FromSlash(rel))
}

// Help lists the available tasks
func (t *Tasks) Help() {
	fmt.Fprintln(t.Out, "Available tasks:")
	fmt.Fprintln(t.Out)
	for _, info := range Catalog {
		fmt.Fprintf(t.Out, "  %-25s%s\n", info.Name, info.Summary)
	}
	fmt.Fprintln(t.Out)
	fmt.Fprintln(t.Out, HelpHint)
}

// CleanOptions selects what Clean removes
type CleanOptions struct {
	Docs     bool
	Bytecode bool
	Builds   bool
	Ghuser   bool
}

// CleanAll selects everything
var CleanAll = CleanOptions{Docs: true, Bytecode: true, Builds: true, Ghuser: true}

// CleanFolders returns the folders, relative to the project root, removed
// for opts
func (t *Tasks) CleanFolders(opts CleanOptions) []string {
	pkg := t.Config.Package
	docs := t.Config.Docs.SourceDir
	var folders []string
	if opts.Docs {
		folders = append(folders,
			docs+"/_build",
			docs+"/api/generated",
			docs+"/generated",
			"dist",
		)
	}
	if opts.Bytecode {
		folders = append(folders, "src/"+pkg+"/__pycache__")
	}
	if opts.Builds {
		folders = append(folders, "build", "src/"+pkg+".egg-info")
	}
	if opts.Ghuser {
		folders = append(folders, t.Config.GhuserSourceDir()+"/ghuser")
	}
	return folders
}

// Clean removes compiled artifacts from the local copy. Missing folders are
// ignored.
func (t *Tasks) Clean(ctx context.Context, opts CleanOptions) error {
	if opts.Builds {
		err := WithDir(t.BaseDir, func() error {
			return t.Runner.Run(ctx, t.Config.Tools.Python+" setup.py clean")
		})
		if err != nil {
			return err
		}
	}

	if opts.Bytecode {
		if err := t.removeBytecode(); err != nil {
			return err
		}
	}

	for _, folder := range t.CleanFolders(opts) {
		if err := os.RemoveAll(t.path(folder)); err != nil {
			t.Logger.Warnf("Could not remove %s: %v", folder, err)
		}
	}
	return nil
}

func (t *Tasks) removeBytecode() error {
	root := t.BaseDir
	if root == "" {
		root = "."
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(d.Name(), ".pyc") {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("remove %s: %w", path, err)
			}
		}
		return nil
	})
}

// DocsOptions selects the documentation builders
type DocsOptions struct {
	Doctest    bool
	Rebuild    bool
	CheckLinks bool
}

// Docs builds the HTML documentation
func (t *Tasks) Docs(ctx context.Context, opts DocsOptions) error {
	if opts.Rebuild {
		if err := t.Clean(ctx, CleanAll); err != nil {
			return err
		}
	}

	sphinx := func(builder string) string {
		return fmt.Sprintf("%s -b %s %s %s", t.Config.Tools.SphinxBuild, builder, t.Config.Docs.SourceDir, t.Config.Docs.BuildDir)
	}

	return WithDir(t.BaseDir, func() error {
		if opts.Doctest {
			if err := t.Runner.Run(ctx, sphinx("doctest")); err != nil {
				return err
			}
		}
		if err := t.Runner.Run(ctx, sphinx("html")); err != nil {
			return err
		}
		if opts.CheckLinks {
			return t.Runner.Run(ctx, sphinx("linkcheck"))
		}
		return nil
	})
}

// Lint checks the consistency of coding style
func (t *Tasks) Lint(ctx context.Context) error {
	t.Logger.Infof("Running flake8 python linter...")
	return WithDir(t.BaseDir, func() error {
		return t.Runner.Run(ctx, t.Config.Tools.Flake8+" src")
	})
}

// Check runs the linter and the packaging checks
func (t *Tasks) Check(ctx context.Context) error {
	return WithDir(t.BaseDir, func() error {
		if err := t.Lint(ctx); err != nil {
			return err
		}

		t.Logger.Infof("Checking MANIFEST.in...")
		if err := t.Runner.Run(ctx, t.Config.Tools.CheckManifest); err != nil {
			return err
		}

		t.Logger.Infof("Checking ReStructuredText formatting...")
		return t.Runner.Run(ctx, t.Config.Tools.Python+" setup.py check --strict --metadata --restructuredtext")
	})
}

// DeployDocs publishes the built documentation to the documentation site
// repository
func (t *Tasks) DeployDocs(ctx context.Context) error {
	tempFolder := t.path(t.Config.Docs.TempDir)
	docsFolder := filepath.Join(tempFolder, "docs")

	t.Logger.Infof("Cleaning up temp docs folder %s", docsFolder)
	if err := os.RemoveAll(docsFolder); err != nil {
		return err
	}

	t.Logger.Infof("Cloning github repository %s/docs", tempFolder)
	if err := t.VCS.Clone(ctx, t.Config.Docs.DeployRepo, docsFolder); err != nil {
		return err
	}

	target := filepath.Join(docsFolder, filepath.FromSlash(t.Config.Docs.DeploySubdir))
	t.Logger.Infof("Removing old docs from folder %s", target)
	if err := os.RemoveAll(target); err != nil {
		return err
	}

	t.Logger.Infof("Copy current docs")
	if err := os.CopyFS(target, os.DirFS(t.path(t.Config.Docs.BuildDir))); err != nil {
		return fmt.Errorf("copy docs: %w", err)
	}

	if err := t.VCS.CommitAll(ctx, docsFolder, deployCommit); err != nil {
		return err
	}
	return t.VCS.Push(ctx, docsFolder, false)
}

// TestOptions selects what Test runs
type TestOptions struct {
	Checks    bool
	Doctest   bool
	Codeblock bool
	Coverage  bool
}

// Test runs the test suite
func (t *Tasks) Test(ctx context.Context, opts TestOptions) error {
	if opts.Checks {
		if err := t.Check(ctx); err != nil {
			return err
		}
	}

	args := []string{t.Config.Tools.Pytest}
	if opts.Doctest {
		args = append(args, "--doctest-modules")
	}
	if opts.Coverage {
		args = append(args, "--cov="+t.Config.Package)
	}

	return WithDir(t.BaseDir, func() error {
		if err := t.Runner.Run(ctx, strings.Join(args, " ")); err != nil {
			return err
		}
		if opts.Codeblock {
			return t.Runner.Run(ctx, t.Config.Tools.Pytest+" "+t.Config.Docs.SourceDir)
		}
		return nil
	})
}

// InsertUnreleased returns content with the unreleased template inserted
// above the newest version heading. It reports false when the newest
// heading already is Unreleased.
func InsertUnreleased(content string) (string, bool, error) {
	underline := strings.Index(content, "----------")
	if underline < 1 {
		return "", false, fmt.Errorf("changelog has no version heading")
	}
	start := strings.LastIndex(content[:underline-1], "\n")
	if start < 0 {
		return "", false, fmt.Errorf("changelog version heading is not preceded by a line break")
	}

	end := start + 11
	if end > len(content) {
		end = len(content)
	}
	if strings.TrimSpace(content[start:end]) == "Unreleased" {
		return content, false, nil
	}
	return content[:start] + UnreleasedTemplate + content[start:], true, nil
}

// PrepareChangelog adds the unreleased section to CHANGELOG.rst and commits it
func (t *Tasks) PrepareChangelog(ctx context.Context) error {
	path := t.path(changelogFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read changelog: %w", err)
	}

	updated, changed, err := InsertUnreleased(string(data))
	if err != nil {
		return err
	}
	if !changed {
		t.Logger.Infof("Already up-to-date")
		return nil
	}

	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		return fmt.Errorf("write changelog: %w", err)
	}
	return t.VCS.CommitFiles(ctx, t.BaseDir, changelogCommit, changelogFile)
}

// GhuserOptions overrides the Grasshopper build settings
type GhuserOptions struct {
	GHIOFolder string
	IronPython string
}

// BuildGhuserComponents builds Grasshopper user objects from source
func (t *Tasks) BuildGhuserComponents(ctx context.Context, opts GhuserOptions) error {
	if err := t.Clean(ctx, CleanOptions{Ghuser: true}); err != nil {
		return err
	}

	actionDir, err := os.MkdirTemp("", "actions.ghcomponentizer")
	if err != nil {
		return err
	}
	defer os.RemoveAll(actionDir)

	return WithDir(t.BaseDir, func() error {
		sourceDir, err := filepath.Abs(filepath.FromSlash(t.Config.GhuserSourceDir()))
		if err != nil {
			return err
		}
		targetDir := filepath.Join(sourceDir, "ghuser")

		// The temp dir exists already; clone into a fresh child
		checkout := filepath.Join(actionDir, "componentizer")
		if err := t.VCS.Clone(ctx, t.Config.Ghuser.ComponentizerRepo, checkout); err != nil {
			return err
		}

		ghio := opts.GHIOFolder
		if ghio == "" {
			ghio = t.Config.Ghuser.GHIOFolder
		}
		if ghio == "" {
			ghio = "temp"
			fetch := fmt.Sprintf(`%s -c "import compas_ghpython; compas_ghpython.fetch_ghio_lib('%s')"`, t.Config.Tools.Python, ghio)
			if err := t.Runner.Run(ctx, fetch); err != nil {
				return err
			}
		}
		ghioAbs, err := filepath.Abs(ghio)
		if err != nil {
			return err
		}

		ironpython := opts.IronPython
		if ironpython == "" {
			ironpython = t.Config.Tools.IronPython
		}
		if ironpython == "" {
			ironpython = "ipy"
		}

		return t.Runner.Run(ctx, fmt.Sprintf(`%s %s %s %s --ghio "%s"`,
			ironpython, filepath.Join(checkout, "componentize.py"), sourceDir, targetDir, ghioAbs))
	})
}

// ValidReleaseType reports whether releaseType is major, minor or patch
func ValidReleaseType(releaseType string) bool {
	switch releaseType {
	case ReleaseMajor, ReleaseMinor, ReleasePatch:
		return true
	}
	return false
}

// ReleaseWorkflow builds the release steps for releaseType
func (t *Tasks) ReleaseWorkflow(releaseType string) *Workflow {
	return &Workflow{
		Name:   "release",
		Logger: t.Logger,
		Steps: []Step{
			{Name: "check", Run: t.Check},
			{Name: "test", Run: func(ctx context.Context) error {
				return t.Test(ctx, TestOptions{})
			}},
			{Name: "bump-version", Dirties: true, Run: func(ctx context.Context) error {
				return WithDir(t.BaseDir, func() error {
					return t.Runner.Run(ctx, fmt.Sprintf("%s %s --verbose", t.Config.Tools.Bump2version, releaseType))
				})
			}},
			{Name: "build", Run: func(ctx context.Context) error {
				return WithDir(t.BaseDir, func() error {
					return t.Runner.Run(ctx, t.Config.Tools.Python+" setup.py clean --all sdist bdist_wheel")
				})
			}},
			{Name: "prepare-changelog", Run: t.PrepareChangelog},
			{Name: "clean", Run: func(ctx context.Context) error {
				return t.Clean(ctx, CleanAll)
			}},
			{Name: "confirm", Run: func(ctx context.Context) error {
				ok, err := t.confirmRelease()
				if err != nil {
					return err
				}
				if !ok {
					return &ExitError{Message: RevertMessage}
				}
				return nil
			}},
			{Name: "push", Cleans: true, Run: func(ctx context.Context) error {
				return t.VCS.Push(ctx, t.BaseDir, true)
			}},
		},
	}
}

func (t *Tasks) confirmRelease() (bool, error) {
	if t.AssumeYes {
		return true, nil
	}
	if !t.Interactive {
		t.Logger.Warnf("No terminal to confirm the release on; pass --yes to push")
		return false, nil
	}
	return Confirm(t.In, t.Out, t.ErrOut, ReleaseQuestion)
}

// Release runs the release workflow. An invalid release type aborts before
// any command runs.
func (t *Tasks) Release(ctx context.Context, releaseType string) Result {
	if !ValidReleaseType(releaseType) {
		return Result{Failed: "validate", Err: &ExitError{Message: InvalidReleaseMessage}}
	}
	res := t.ReleaseWorkflow(releaseType).Execute(ctx)
	if res.NeedsRecovery() {
		t.Logger.Warnf("Release stopped at %s after the version was tagged", res.Failed)
	}
	return res
}
