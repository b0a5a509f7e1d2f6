// Package remote runs shell commands on provisioned instances.
package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrRemoteCommandFailure = errors.New("remote command failed")
	ErrConnection           = errors.New("cannot connect to remote host")
)

// Command is a single shell command line executed on the instance.
type Command struct {
	Line string
	// User is the account to log in as.
	User string
	// Sudo runs Line through password-less sudo.
	Sudo bool
}

func (c Command) String() string {
	if c.Sudo {
		return fmt.Sprintf("%s: sudo %s", c.User, c.Line)
	}
	return fmt.Sprintf("%s: %s", c.User, c.Line)
}

type Result struct {
	ExitCode int
	Output   string
}

// CommandError is returned for commands that ran but exited non-zero.
type CommandError struct {
	Command  Command
	ExitCode int
	Output   string
}

func (e *CommandError) Error() string {
	out := strings.TrimSpace(e.Output)
	if out == "" {
		return fmt.Sprintf("%q exited with status %d", e.Command.String(), e.ExitCode)
	}
	return fmt.Sprintf("%q exited with status %d: %s", e.Command.String(), e.ExitCode, out)
}

func (e *CommandError) Unwrap() error {
	return ErrRemoteCommandFailure
}

// Runner is the remote execution channel. Authentication, transport and
// reconnecting are its business.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// Uploader writes files on the instance.
type Uploader interface {
	Put(ctx context.Context, user, path string, content []byte, sudo bool) error
}

// Probe reports whether the host accepts commands for user.
func Probe(ctx context.Context, r Runner, user string) error {
	_, err := r.Run(ctx, Command{Line: "true", User: user})
	return err
}

// Quote single-quotes s for a POSIX shell.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}
