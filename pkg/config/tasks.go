package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"

	"gopkg.in/yaml.v3"
)

// TasksFilename is the optional task runner configuration file
const TasksFilename = "tasks.yaml"

// TasksConfig names the project layout and external tools the task runner drives
type TasksConfig struct {
	Package string       `yaml:"package"`
	Tools   ToolsConfig  `yaml:"tools"`
	Docs    DocsConfig   `yaml:"docs"`
	Ghuser  GhuserConfig `yaml:"ghuser"`
}

// ToolsConfig holds the command used for each external tool
type ToolsConfig struct {
	Python        string `yaml:"python"`
	SphinxBuild   string `yaml:"sphinx_build"`
	Flake8        string `yaml:"flake8"`
	CheckManifest string `yaml:"check_manifest"`
	Pytest        string `yaml:"pytest"`
	Bump2version  string `yaml:"bump2version"`
	IronPython    string `yaml:"ironpython"`
}

// DocsConfig holds documentation build and deployment settings
type DocsConfig struct {
	SourceDir    string `yaml:"source_dir"`
	BuildDir     string `yaml:"build_dir"`
	DeployRepo   string `yaml:"deploy_repo"`
	DeploySubdir string `yaml:"deploy_subdir"`
	TempDir      string `yaml:"temp_dir"`
}

// GhuserConfig holds Grasshopper user object build settings
type GhuserConfig struct {
	ComponentizerRepo string `yaml:"componentizer_repo"`
	// SourceDir defaults to src/<package>/ghpython/components
	SourceDir string `yaml:"source_dir"`
	// GHIOFolder holds GH_IO.dll; empty downloads it into temp
	GHIOFolder string `yaml:"gh_io_folder"`
}

// DefaultTasksConfig returns the settings of the compas_fab project layout
func DefaultTasksConfig() *TasksConfig {
	return &TasksConfig{
		Package: "compas_fab",
		Tools: ToolsConfig{
			Python:        "python",
			SphinxBuild:   "sphinx-build",
			Flake8:        "flake8",
			CheckManifest: "check-manifest",
			Pytest:        "pytest",
			Bump2version:  "bump2version",
			IronPython:    "ipy",
		},
		Docs: DocsConfig{
			SourceDir:    "docs",
			BuildDir:     "dist/docs",
			DeployRepo:   "https://github.com/gramaziokohler/gramaziokohler.github.io.git",
			DeploySubdir: "compas_fab/latest",
			TempDir:      "temp",
		},
		Ghuser: GhuserConfig{
			ComponentizerRepo: "https://github.com/compas-dev/compas-actions.ghpython_components.git",
		},
	}
}

// LoadTasksConfig loads path over the defaults. A missing file yields the defaults.
func LoadTasksConfig(path string) (*TasksConfig, error) {
	cfg := DefaultTasksConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading tasks config file '%s': %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing tasks config file '%s': %w", path, err)
	}
	if cfg.Package == "" {
		return nil, fmt.Errorf("missing required field in tasks config: package")
	}
	return cfg, nil
}

// GhuserSourceDir returns the directory holding Grasshopper component sources
func (c *TasksConfig) GhuserSourceDir() string {
	if c.Ghuser.SourceDir != "" {
		return c.Ghuser.SourceDir
	}
	return path.Join("src", c.Package, "ghpython", "components")
}
