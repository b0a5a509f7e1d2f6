package cluster

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fnothaft/cgcloud/internal/remote"
)

const DefaultInstallDir = "/opt/sparkbox"

type WaitOptions struct {
	// InstallDir is where the Spark distribution lives on the master.
	InstallDir string
	Slaves     int
	Interval   time.Duration
	Timeout    time.Duration
}

func (o WaitOptions) withDefaults() WaitOptions {
	if o.InstallDir == "" {
		o.InstallDir = DefaultInstallDir
	}
	if o.Interval == 0 {
		o.Interval = 5 * time.Second
	}
	if o.Timeout == 0 {
		o.Timeout = 10 * time.Minute
	}
	return o
}

// readinessChecks must pass in order: first every slave registered with the
// Spark master, then HDFS reports as many live datanodes.
func readinessChecks(o WaitOptions) []string {
	return []string{
		fmt.Sprintf("test $(cat %s/spark/conf/slaves | wc -l) = %d", o.InstallDir, o.Slaves),
		fmt.Sprintf("hdfs dfsadmin -report -live | fgrep 'Live datanodes (%d)'", o.Slaves),
	}
}

// WaitForSlaves polls the master until the cluster reports all slaves. Each
// check has its own deadline.
func WaitForSlaves(ctx context.Context, master remote.Runner, user string, opts WaitOptions) error {
	opts = opts.withDefaults()
	for _, line := range readinessChecks(opts) {
		logrus.Infof("Waiting for %q on the master", line)
		err := Poll(ctx, opts.Interval, opts.Timeout, func(ctx context.Context) error {
			_, err := master.Run(ctx, remote.Command{Line: line, User: user})
			if err != nil && !errors.Is(err, remote.ErrRemoteCommandFailure) && !errors.Is(err, remote.ErrConnection) {
				return fmt.Errorf("%w: %w", ErrFatal, err)
			}
			return err
		})
		if err != nil {
			return fmt.Errorf("cluster didn't come up in time: %w", err)
		}
	}
	return nil
}
