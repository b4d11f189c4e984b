package tasks

import (
	"fmt"
	"os"
)

// WithDir runs fn with dir as the working directory and restores the
// previous one afterwards, also when fn fails or panics. An empty dir runs
// fn in place.
func WithDir(dir string, fn func() error) (err error) {
	current, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}
	if dir != "" {
		if err := os.Chdir(dir); err != nil {
			return fmt.Errorf("change to %s: %w", dir, err)
		}
	}
	defer func() {
		if cerr := os.Chdir(current); cerr != nil && err == nil {
			err = fmt.Errorf("restore working directory %s: %w", current, cerr)
		}
	}()
	return fn()
}
