package common

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestBuildHook(t *testing.T) {
	buf := &bytes.Buffer{}
	l := &logrus.Logger{
		Out: buf,
		Formatter: &logrus.TextFormatter{
			DisableTimestamp: true,
			DisableColors:    true,
		},
		Hooks: make(logrus.LevelHooks),
		Level: logrus.DebugLevel,
	}
	l.AddHook(&BuildHook{})
	l.Info("test message")
	require.Contains(t, buf.String(), "build_commit="+BuildCommit)
	require.Contains(t, buf.String(), "msg=\"test message\"")
}
