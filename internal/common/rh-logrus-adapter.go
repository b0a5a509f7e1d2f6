package common

import (
	"strings"

	rh "github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

type LeveledLogrus struct {
	*logrus.Logger
}

// NewRHLeveledLogger lets retryablehttp clients log through logrus.
func NewRHLeveledLogger(logger *logrus.Logger) rh.LeveledLogger {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return rh.LeveledLogger(&LeveledLogrus{logger})
}

// retries are worth seeing at the default level
const monitoringKeyword = "retrying"

func fields(keysAndValues ...interface{}) logrus.Fields {
	f := make(logrus.Fields)
	for i := 0; i < len(keysAndValues)-1; i += 2 {
		if k, ok := keysAndValues[i].(string); ok {
			f[k] = keysAndValues[i+1]
		}
	}
	return f
}

func (l *LeveledLogrus) Error(msg string, keysAndValues ...interface{}) {
	l.WithFields(fields(keysAndValues...)).Error(msg)
}

func (l *LeveledLogrus) Info(msg string, keysAndValues ...interface{}) {
	l.WithFields(fields(keysAndValues...)).Info(msg)
}

func (l *LeveledLogrus) Debug(msg string, keysAndValues ...interface{}) {
	if strings.Contains(msg, monitoringKeyword) {
		l.WithFields(fields(keysAndValues...)).Info(msg)
	} else {
		l.WithFields(fields(keysAndValues...)).Debug(msg)
	}
}

func (l *LeveledLogrus) Warn(msg string, keysAndValues ...interface{}) {
	l.WithFields(fields(keysAndValues...)).Warn(msg)
}
