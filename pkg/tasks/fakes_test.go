package tasks

import (
	"context"
	"os"
	"strings"
	"sync"
)

type fakeRunner struct {
	mu       sync.Mutex
	commands []string
	dirs     []string
	// fail maps a command prefix to the error returned for it
	fail map[string]error
}

func (r *fakeRunner) Run(ctx context.Context, command string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, command)
	wd, _ := os.Getwd()
	r.dirs = append(r.dirs, wd)
	for prefix, err := range r.fail {
		if strings.HasPrefix(command, prefix) {
			return err
		}
	}
	return nil
}

type vcsCall struct {
	Op      string
	Dir     string
	Message string
	Files   []string
	Tags    bool
}

type fakeVCS struct {
	calls []vcsCall
	// onClone populates the cloned directory
	onClone func(dir string) error
}

func (v *fakeVCS) Clone(ctx context.Context, url, dir string) error {
	v.calls = append(v.calls, vcsCall{Op: "clone", Dir: dir, Message: url})
	if v.onClone != nil {
		return v.onClone(dir)
	}
	return os.MkdirAll(dir, 0o755)
}

func (v *fakeVCS) CommitFiles(ctx context.Context, repoDir, message string, files ...string) error {
	v.calls = append(v.calls, vcsCall{Op: "commit", Dir: repoDir, Message: message, Files: files})
	return nil
}

func (v *fakeVCS) CommitAll(ctx context.Context, repoDir, message string) error {
	v.calls = append(v.calls, vcsCall{Op: "commit-all", Dir: repoDir, Message: message})
	return nil
}

func (v *fakeVCS) Push(ctx context.Context, repoDir string, tags bool) error {
	v.calls = append(v.calls, vcsCall{Op: "push", Dir: repoDir, Tags: tags})
	return nil
}

func (v *fakeVCS) ops() []string {
	out := make([]string, len(v.calls))
	for i, c := range v.calls {
		out[i] = c.Op
	}
	return out
}
