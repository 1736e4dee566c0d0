package build

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/btcsuite/btclog"
)

// LogWriter is the io.Writer every subsystem logger ultimately writes to.
// Log lines are always written to Stdout and, once a log file has been
// configured, to the rotating file writer as well.
type LogWriter struct {
	// Stdout is the console sink. A nil value means os.Stdout.
	Stdout io.Writer

	// Rotator is the optional file sink. It is nil until a log file has
	// been initialized.
	Rotator *RotatingLogWriter
}

// Write writes the provided byte slice to the console and, if present, to the
// log rotator.
func (w *LogWriter) Write(b []byte) (int, error) {
	out := w.Stdout
	if out == nil {
		out = os.Stdout
	}
	_, _ = out.Write(b)

	if w.Rotator != nil {
		_, _ = w.Rotator.Write(b)
	}

	return len(b), nil
}

// NewSubLogger constructs a new subsystem log from the passed logger
// generator. If no generator is provided, logging for the subsystem is
// disabled.
func NewSubLogger(subsystem string,
	genSubLogger func(string) btclog.Logger) btclog.Logger {

	if genSubLogger == nil {
		return btclog.Disabled
	}

	return genSubLogger(subsystem)
}

// SubLoggers is a type that holds a map of subsystem loggers keyed by their
// subsystem name.
type SubLoggers map[string]btclog.Logger

// LeveledSubLogger provides the ability to retrieve the subsystem loggers of
// a logger and set their log levels individually or all at once.
type LeveledSubLogger interface {
	// SubLoggers returns the map of all registered subsystem loggers.
	SubLoggers() SubLoggers

	// SupportedSubsystems returns a slice of strings containing the names
	// of the supported subsystems. Should ideally correspond to the keys
	// of the subsystem logger map and be sorted.
	SupportedSubsystems() []string

	// SetLogLevel assigns an individual subsystem logger a new log level.
	SetLogLevel(subsystemID string, logLevel string)

	// SetLogLevels assigns all subsystem loggers the same new log level.
	SetLogLevels(logLevel string)
}

// SubLoggerManager is a LeveledSubLogger backed by a single btclog backend.
type SubLoggerManager struct {
	backend    *btclog.Backend
	subLoggers SubLoggers
}

// A compile-time check to ensure SubLoggerManager implements
// LeveledSubLogger.
var _ LeveledSubLogger = (*SubLoggerManager)(nil)

// NewSubLoggerManager creates a manager whose loggers all write to w.
func NewSubLoggerManager(w io.Writer) *SubLoggerManager {
	return &SubLoggerManager{
		backend:    btclog.NewBackend(w),
		subLoggers: make(SubLoggers),
	}
}

// GenSubLogger creates and registers a new logger for the given subsystem.
// It matches the genSubLogger signature expected by NewSubLogger.
func (m *SubLoggerManager) GenSubLogger(subsystem string) btclog.Logger {
	logger := m.backend.Logger(subsystem)
	m.subLoggers[subsystem] = logger

	return logger
}

// SubLoggers returns the map of all registered subsystem loggers.
func (m *SubLoggerManager) SubLoggers() SubLoggers {
	return m.subLoggers
}

// SupportedSubsystems returns a sorted slice of the registered subsystems.
func (m *SubLoggerManager) SupportedSubsystems() []string {
	subsystems := make([]string, 0, len(m.subLoggers))
	for subsysID := range m.subLoggers {
		subsystems = append(subsystems, subsysID)
	}

	sort.Strings(subsystems)

	return subsystems
}

// SetLogLevel sets the logging level for the provided subsystem. Invalid
// subsystems are ignored.
func (m *SubLoggerManager) SetLogLevel(subsystemID string, logLevel string) {
	logger, ok := m.subLoggers[subsystemID]
	if !ok {
		return
	}

	// Defaults to info if the log level is invalid.
	level, _ := btclog.LevelFromString(logLevel)
	logger.SetLevel(level)
}

// SetLogLevels sets the log level for all subsystem loggers to the passed
// level.
func (m *SubLoggerManager) SetLogLevels(logLevel string) {
	for subsystemID := range m.subLoggers {
		m.SetLogLevel(subsystemID, logLevel)
	}
}

// ParseAndSetDebugLevels attempts to parse the specified debug level and set
// the levels accordingly on the given logger. An appropriate error is returned
// if anything is invalid.
func ParseAndSetDebugLevels(level string, logger LeveledSubLogger) error {
	// Split at the delimiter.
	levels := strings.Split(level, ",")
	if len(levels) == 0 {
		return fmt.Errorf("invalid log level: %v", level)
	}

	// If the first entry has no =, treat is as the log level for all
	// subsystems.
	globalLevel := levels[0]
	if !strings.Contains(globalLevel, "=") {
		// Validate debug log level.
		if !validLogLevel(globalLevel) {
			str := "the specified debug level [%v] is invalid"
			return fmt.Errorf(str, globalLevel)
		}

		// Change the logging level for all subsystems.
		logger.SetLogLevels(globalLevel)

		// The rest will target specific subsystems.
		levels = levels[1:]
	}

	// Go through the subsystem/level pairs while detecting issues and
	// update the log levels accordingly.
	for _, logLevelPair := range levels {
		if !strings.Contains(logLevelPair, "=") {
			str := "the specified debug level contains an " +
				"invalid subsystem/level pair [%v]"
			return fmt.Errorf(str, logLevelPair)
		}

		// Extract the specified subsystem and log level.
		fields := strings.Split(logLevelPair, "=")
		if len(fields) != 2 {
			str := "the specified debug level has an invalid " +
				"format [%v] -- use format subsystem1=level1," +
				"subsystem2=level2"
			return fmt.Errorf(str, logLevelPair)
		}
		subsysID, logLevel := fields[0], fields[1]
		subLoggers := logger.SubLoggers()

		// Validate subsystem.
		if _, exists := subLoggers[subsysID]; !exists {
			str := "the specified subsystem [%v] is invalid -- " +
				"supported subsystems are %v"
			return fmt.Errorf(
				str, subsysID, logger.SupportedSubsystems(),
			)
		}

		// Validate log level.
		if !validLogLevel(logLevel) {
			str := "the specified debug level [%v] is invalid"
			return fmt.Errorf(str, logLevel)
		}

		logger.SetLogLevel(subsysID, logLevel)
	}

	return nil
}

// validLogLevel returns whether or not logLevel is a valid debug log level.
func validLogLevel(logLevel string) bool {
	switch logLevel {
	case "trace", "debug", "info", "warn", "error", "critical", "off":
		return true
	}

	return false
}
