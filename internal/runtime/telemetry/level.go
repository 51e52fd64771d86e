// Package telemetry manages the long-lived engine feeds: start/stop
// controlled streams of log and traffic samples, as opposed to the
// one-shot exchanges handled by the exchange package.
package telemetry

import "fmt"

// Level is the severity filter for feeds that support server-side
// filtering. Silent is terminal: a stream at Silent is not merely quiet,
// it is deactivated.
type Level string

const (
	LevelDebug   Level = "debug"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelSilent  Level = "silent"
)

var levelRank = map[Level]int{
	LevelDebug:   0,
	LevelInfo:    1,
	LevelWarning: 2,
	LevelError:   3,
	LevelSilent:  4,
}

// ParseLevel validates a stored level string.
func ParseLevel(s string) (Level, error) {
	l := Level(s)
	if _, ok := levelRank[l]; !ok {
		return "", fmt.Errorf("telemetry: unknown level %q", s)
	}
	return l, nil
}

// Silent reports whether l deactivates its stream.
func (l Level) Silent() bool { return l == LevelSilent }

// Valid reports whether l belongs to the severity set.
func (l Level) Valid() bool {
	_, ok := levelRank[l]
	return ok
}

// AtLeast reports whether l is at or above min in severity order.
func (l Level) AtLeast(min Level) bool {
	return levelRank[l] >= levelRank[min]
}
