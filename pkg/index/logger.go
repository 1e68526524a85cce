package index

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/cockroachdb/pebble"
)

// pebbleLogger sends pebble's log lines to slog. Pebble is chatty about WAL
// replay and compactions, so informational lines are logged at debug.
type pebbleLogger struct {
	logger *slog.Logger
}

var _ pebble.Logger = pebbleLogger{}

func (l pebbleLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...), "component", "pebble")
}

// Fatalf exits like pebble's default logger does.
func (l pebbleLogger) Fatalf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...), "component", "pebble")
	os.Exit(1)
}
