package remote_mock

import (
	"context"
	"strings"
	"sync"

	"github.com/fnothaft/cgcloud/internal/remote"
)

// Runner records every command and file upload. A command whose line contains
// one of the FailOn substrings exits with status 1.
type Runner struct {
	mu       sync.Mutex
	Commands []remote.Command
	Uploads  map[string]string
	FailOn   []string
	// Outputs maps a line substring to the output returned for it.
	Outputs map[string]string
	// FailFirst makes the first n commands containing a key fail.
	FailFirst map[string]int
}

func NewRunner(failOn ...string) *Runner {
	return &Runner{
		Uploads:   make(map[string]string),
		Outputs:   make(map[string]string),
		FailFirst: make(map[string]int),
		FailOn:    failOn,
	}
}

func (r *Runner) Run(ctx context.Context, cmd remote.Command) (remote.Result, error) {
	r.mu.Lock()
	r.Commands = append(r.Commands, cmd)
	for k, n := range r.FailFirst {
		if n > 0 && strings.Contains(cmd.Line, k) {
			r.FailFirst[k] = n - 1
			r.mu.Unlock()
			return remote.Result{ExitCode: 1}, &remote.CommandError{Command: cmd, ExitCode: 1}
		}
	}
	r.mu.Unlock()

	for _, f := range r.FailOn {
		if strings.Contains(cmd.Line, f) {
			return remote.Result{ExitCode: 1}, &remote.CommandError{Command: cmd, ExitCode: 1}
		}
	}
	for k, out := range r.Outputs {
		if strings.Contains(cmd.Line, k) {
			return remote.Result{Output: out}, nil
		}
	}
	return remote.Result{}, nil
}

func (r *Runner) Put(ctx context.Context, user, path string, content []byte, sudo bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Uploads[path] = string(content)
	return nil
}

// Lines returns the command lines run so far.
func (r *Runner) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	lines := make([]string, 0, len(r.Commands))
	for _, c := range r.Commands {
		lines = append(lines, c.Line)
	}
	return lines
}
