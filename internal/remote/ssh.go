package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

// ssh reserves this exit status for its own failures
const sshTransportFailure = 255

// SSH runs commands through the OpenSSH client binary.
type SSH struct {
	Host           string
	Port           int
	IdentityFile   string
	ConnectTimeout time.Duration
	// Attempts bounds how often a command is retried after a transport failure.
	Attempts   int
	RetryDelay time.Duration

	exec func(ctx context.Context, args []string, stdin io.Reader) ([]byte, int, error)
}

func NewSSH(host string, port int, identityFile string) *SSH {
	return &SSH{
		Host:           host,
		Port:           port,
		IdentityFile:   identityFile,
		ConnectTimeout: 10 * time.Second,
		Attempts:       3,
		RetryDelay:     5 * time.Second,
		exec:           execSSH,
	}
}

func execSSH(ctx context.Context, args []string, stdin io.Reader) ([]byte, int, error) {
	cmd := exec.CommandContext(ctx, "ssh", args...)
	cmd.Stdin = stdin
	output, err := cmd.CombinedOutput()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return output, exitErr.ExitCode(), nil
		}
		return output, -1, fmt.Errorf("ssh command failed from unknown reason: %w", err)
	}
	return output, 0, nil
}

func (s *SSH) args(user, line string) []string {
	args := []string{
		"-p", strconv.Itoa(s.Port),
		"-o", "StrictHostKeyChecking=no",
		"-o", "UserKnownHostsFile=/dev/null",
		"-o", "BatchMode=yes",
		"-o", "LogLevel=ERROR",
		"-o", fmt.Sprintf("ConnectTimeout=%d", int(s.ConnectTimeout.Seconds())),
	}
	if s.IdentityFile != "" {
		args = append(args, "-i", s.IdentityFile)
	}
	return append(args, user+"@"+s.Host, line)
}

func remoteLine(cmd Command) string {
	if cmd.Sudo {
		return "sudo -n bash -c " + Quote(cmd.Line)
	}
	return cmd.Line
}

func (s *SSH) run(ctx context.Context, cmd Command, line string, stdin []byte) (Result, error) {
	attempts := s.Attempts
	if attempts < 1 {
		attempts = 1
	}
	log := logrus.WithFields(logrus.Fields{"host": s.Host, "user": cmd.User})

	for i := 1; ; i++ {
		log.Debugf("Running %q", line)
		var in io.Reader
		if stdin != nil {
			in = bytes.NewReader(stdin)
		}
		output, code, err := s.exec(ctx, s.args(cmd.User, line), in)
		if err != nil {
			return Result{}, err
		}
		result := Result{ExitCode: code, Output: string(output)}
		switch {
		case code == 0:
			return result, nil
		case code != sshTransportFailure:
			return result, &CommandError{Command: cmd, ExitCode: code, Output: result.Output}
		case i >= attempts:
			return result, fmt.Errorf("%w %s@%s after %d attempts: %s", ErrConnection, cmd.User, s.Host, i, bytes.TrimSpace(output))
		}

		log.Warnf("Connection failed (attempt %d/%d), retrying in %v", i, attempts, s.RetryDelay)
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(s.RetryDelay):
		}
	}
}

func (s *SSH) Run(ctx context.Context, cmd Command) (Result, error) {
	return s.run(ctx, cmd, remoteLine(cmd), nil)
}

// Put streams content into path on the remote host.
func (s *SSH) Put(ctx context.Context, user, path string, content []byte, sudo bool) error {
	cmd := Command{Line: "cat > " + Quote(path), User: user}
	if sudo {
		cmd.Line = "sudo -n tee " + Quote(path) + " > /dev/null"
	}
	_, err := s.run(ctx, cmd, cmd.Line, content)
	return err
}
