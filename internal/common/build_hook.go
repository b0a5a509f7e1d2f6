package common

import (
	"github.com/sirupsen/logrus"
)

// BuildHook stamps entries with the build of the running binary so journal
// records of different cgcloud versions can be told apart.
type BuildHook struct{}

func (h *BuildHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *BuildHook) Fire(e *logrus.Entry) error {
	e.Data["build_commit"] = BuildCommit
	e.Data["build_time"] = BuildTime
	return nil
}
