package common

import (
	"fmt"

	"github.com/coreos/go-systemd/v22/journal"
	"github.com/sirupsen/logrus"
)

// ConfigureLogging sets the level of the standard logrus logger and, when
// asked to and a journal is reachable, forwards entries to it.
func ConfigureLogging(level string, toJournal bool) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logrus.SetLevel(lvl)

	if toJournal {
		if !journal.Enabled() {
			logrus.Warn("systemd journal is not available, logging to stderr only")
			return nil
		}
		logrus.AddHook(&BuildHook{})
		logrus.AddHook(&JournalHook{Identifier: "cgcloud"})
	}
	return nil
}
