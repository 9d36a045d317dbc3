// Package logctx wires the btclog backend shared by every MOLT
// package, mirroring the teacher's own subsystem-logger convention
// (each package holds a package-scoped `log` variable set once at
// startup via UseLogger, defaulting to a disabled logger so library
// consumers who never call SetupLoggers get silence instead of noise).
package logctx

import (
	"os"

	"github.com/btcsuite/btclog"
	"github.com/jrick/logrotate"
)

// Subsystem is implemented by every package that wants a logger wired
// up by SetupLoggers.
type Subsystem interface {
	UseLogger(logger btclog.Logger)
}

// Backend creates a btclog.Backend that writes to stdout and, if
// logFile is non-empty, to a rotating log file via jrick/logrotate.
func Backend(logFile string) (btclog.Backend, func(), error) {
	if logFile == "" {
		return btclog.NewBackend(os.Stdout), func() {}, nil
	}

	rotator, err := logrotate.NewRotator(logFile, 10)
	if err != nil {
		return nil, nil, err
	}

	writer := io2{stdout: os.Stdout, file: rotator}
	backend := btclog.NewBackend(writer)
	return backend, func() { rotator.Close() }, nil
}

// io2 fans writes out to both stdout and a rotating file, matching the
// teacher's pattern of always mirroring daemon logs to the console.
type io2 struct {
	stdout interface{ Write([]byte) (int, error) }
	file   interface{ Write([]byte) (int, error) }
}

func (w io2) Write(p []byte) (int, error) {
	n, err := w.stdout.Write(p)
	if err != nil {
		return n, err
	}
	return w.file.Write(p)
}

// NewSubLogger returns a logger for the named subsystem at the given
// level, e.g. NewSubLogger(backend, "GOSP", "debug").
func NewSubLogger(backend btclog.Backend, subsystem, level string) btclog.Logger {
	logger := backend.Logger(subsystem)
	lvl, ok := btclog.LevelFromString(level)
	if !ok {
		lvl = btclog.LevelInfo
	}
	logger.SetLevel(lvl)
	return logger
}

// SetupLoggers wires every known subsystem logger against backend at
// the given level.
func SetupLoggers(backend btclog.Backend, level string, subsystems map[string]Subsystem) {
	for tag, sys := range subsystems {
		sys.UseLogger(NewSubLogger(backend, tag, level))
	}
}
