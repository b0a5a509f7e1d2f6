// Inspired by github.com/wercker/journalhook (MIT license)
package common

import (
	"fmt"
	"strings"

	"github.com/coreos/go-systemd/v22/journal"
	"github.com/sirupsen/logrus"
)

// JournalHook forwards logrus entries to the systemd journal, turning entry
// fields such as "instance" into journal fields such as INSTANCE.
type JournalHook struct {
	Identifier string
}

var severityMap = map[logrus.Level]journal.Priority{
	logrus.TraceLevel: journal.PriDebug,
	logrus.DebugLevel: journal.PriDebug,
	logrus.InfoLevel:  journal.PriInfo,
	logrus.WarnLevel:  journal.PriWarning,
	logrus.ErrorLevel: journal.PriErr,
	logrus.FatalLevel: journal.PriCrit,
	logrus.PanicLevel: journal.PriEmerg,
}

func journalKey(key string) string {
	key = strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		case r >= 'a' && r <= 'z':
			return r - 32
		}
		return '_'
	}, key)
	return strings.TrimLeft(key, "_")
}

func journalFields(identifier string, data logrus.Fields) map[string]string {
	fields := make(map[string]string, len(data)+1)
	for k, v := range data {
		fields[journalKey(k)] = fmt.Sprint(v)
	}
	if identifier != "" {
		fields["SYSLOG_IDENTIFIER"] = identifier
	}
	return fields
}

func (hook *JournalHook) Fire(entry *logrus.Entry) error {
	return journal.Send(entry.Message, severityMap[entry.Level], journalFields(hook.Identifier, entry.Data))
}

func (hook *JournalHook) Levels() []logrus.Level {
	return logrus.AllLevels
}
