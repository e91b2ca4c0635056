// Package eventlog appends server events in the classic news log format:
// a bracketed GMT timestamp followed by the message, one line per event.
package eventlog

import (
	"fmt"
	"os"
	"regexp"
	"sync"
	"time"
)

const timeLayout = "Mon Jan 02 15:04:05 2006"

// sensitiveRE matches command lines that carry a password. Matching lines
// must never reach the log.
var sensitiveRE = regexp.MustCompile(`(?i)AUTHINFO[ \t]+PASS`)

// Logger writes one line per event to a log file, or to stderr when no
// file is configured. The zero value logs to stderr.
type Logger struct {
	mu   sync.Mutex
	path string
}

// New returns a logger appending to path. An empty path logs to stderr.
func New(path string) *Logger {
	return &Logger{path: path}
}

// Printf formats and appends one event line. The file is reopened per
// event, so external log rotation needs no signalling; if the open fails
// the line falls back to stderr.
func (l *Logger) Printf(format string, args ...any) {
	line := fmt.Sprintf("[%s] %s\n",
		time.Now().UTC().Format(timeLayout), fmt.Sprintf(format, args...))

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.path != "" {
		f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err == nil {
			_, werr := f.WriteString(line)
			cerr := f.Close()
			if werr == nil && cerr == nil {
				return
			}
		}
	}
	os.Stderr.WriteString(line)
}

// SensitiveCommand reports whether a received command line carries a
// password and must be kept out of the log.
func SensitiveCommand(line string) bool {
	return sensitiveRE.MatchString(line)
}
