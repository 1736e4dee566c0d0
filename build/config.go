package build

import (
	"fmt"
)

const (
	// Gzip is the gzip compression algorithm for rotated logs.
	Gzip = "gzip"

	// Zstd is the zstd compression algorithm for rotated logs.
	Zstd = "zstd"

	defaultLogCompressor = Gzip

	// DefaultMaxLogFiles is the default maximum number of log files to
	// keep.
	DefaultMaxLogFiles = 3

	// DefaultMaxLogFileSize is the default maximum log file size in MB.
	DefaultMaxLogFileSize = 10
)

// logCompressors maps the identifier of each supported compression algorithm
// to the extension used for the compressed log files.
var logCompressors = map[string]string{
	Gzip: "gz",
	Zstd: "zst",
}

// SupportedLogCompressor returns whether or not logCompressor is a supported
// compression algorithm for log files.
func SupportedLogCompressor(logCompressor string) bool {
	_, ok := logCompressors[logCompressor]

	return ok
}

// FileLoggerConfig holds the options of the rotating log file.
//
//nolint:lll
type FileLoggerConfig struct {
	Disable        bool   `long:"disable" description:"Do not write a log file."`
	Compressor     string `long:"compressor" description:"Compression algorithm to use when rotating logs." choice:"gzip" choice:"zstd"`
	MaxLogFiles    int    `long:"max-files" description:"Maximum logfiles to keep (0 for no rotation)"`
	MaxLogFileSize int    `long:"max-file-size" description:"Maximum logfile size in MB"`
}

// DefaultFileLoggerConfig returns the default log file options.
func DefaultFileLoggerConfig() *FileLoggerConfig {
	return &FileLoggerConfig{
		Compressor:     defaultLogCompressor,
		MaxLogFiles:    DefaultMaxLogFiles,
		MaxLogFileSize: DefaultMaxLogFileSize,
	}
}

// Validate validates the FileLoggerConfig values.
func (c *FileLoggerConfig) Validate() error {
	if !SupportedLogCompressor(c.Compressor) {
		return fmt.Errorf("invalid log compressor: %v", c.Compressor)
	}

	if c.MaxLogFiles < 0 {
		return fmt.Errorf("max log files must not be negative")
	}

	if c.MaxLogFileSize <= 0 {
		return fmt.Errorf("max log file size must be positive")
	}

	return nil
}
