package fixedpeers

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/dashpay/fixedpeers/build"
	"github.com/dashpay/fixedpeers/directory"
	"github.com/dashpay/fixedpeers/discovery"
	"github.com/dashpay/fixedpeers/healthcheck"
	flags "github.com/jessevdk/go-flags"
)

const (
	// DefaultConfigFilename is the name of the configuration file inside
	// the application directory.
	DefaultConfigFilename = "fixedpeers.conf"

	// DefaultPlistPath is the fixed peer list shipped with the wallet,
	// relative to the scripts directory of the wallet repository.
	DefaultPlistPath = "../DashWallet/FixedPeers.plist"

	// DefaultTargetSize is the number of peers the fixed list aims for.
	DefaultTargetSize = 100

	defaultLogFilename = "fixedpeers.log"
	defaultLogDirname  = "logs"
	defaultLogLevel    = "info"

	// maxTargetSize bounds the target size to something a wallet can
	// reasonably ship.
	maxTargetSize = 10000
)

var (
	// DefaultAppDir is the default directory for the configuration and
	// log files.
	DefaultAppDir = btcutil.AppDataDir("fixedpeers", false)

	// DefaultConfigFile is the default full path of the configuration
	// file.
	DefaultConfigFile = filepath.Join(DefaultAppDir, DefaultConfigFilename)

	defaultLogDir = filepath.Join(DefaultAppDir, defaultLogDirname)
)

// DirectoryConfig holds the options for loading the masternode directory.
//
//nolint:lll
type DirectoryConfig struct {
	URL       string        `long:"url" description:"The masternode index to download the directory from"`
	CacheFile string        `long:"cachefile" description:"Local copy of the directory; used instead of the index when it exists"`
	Timeout   time.Duration `long:"timeout" description:"The maximum time to wait for the index to respond"`
	SaveCache bool          `long:"savecache" description:"Save a downloaded directory to the cache file so later runs can reuse it"`
}

// PeersConfig holds the criteria a peer has to meet to be listed.
//
//nolint:lll
type PeersConfig struct {
	Port         uint16        `long:"port" description:"The peer port every listed peer must use"`
	MinProtocol  int32         `long:"minprotocol" description:"The lowest protocol version a listed peer may run"`
	TargetSize   int           `long:"targetsize" description:"The number of peers the fixed list should contain"`
	ProbeTimeout time.Duration `long:"probetimeout" description:"The connect timeout used when probing a listed peer"`
}

// Config is the configuration of the fixed peer list maintenance tool.
//
//nolint:lll
type Config struct {
	ShowVersion bool `short:"V" long:"version" description:"Display version information and exit"`

	AppDir     string `long:"appdir" description:"The base directory that contains the configuration and log files"`
	ConfigFile string `short:"C" long:"configfile" description:"Path to configuration file"`
	LogDir     string `long:"logdir" description:"Directory to log output"`

	DebugLevel string `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`

	LogConfig *build.FileLoggerConfig `group:"logging" namespace:"logging"`

	PlistPath   string `long:"plistpath" description:"The fixed peer list to maintain"`
	ArchiveDir  string `long:"archivedir" description:"Keep a timestamped copy of every replaced fixed peer list in this directory; unset disables archiving"`
	DryRun      bool   `long:"dryrun" description:"Compute the new fixed peer list without writing it"`
	MetricsFile string `long:"metricsfile" description:"Write run metrics in the Prometheus text format to this file"`

	Directory *DirectoryConfig `group:"directory" namespace:"directory"`

	Peers *PeersConfig `group:"peers" namespace:"peers"`
}

// DefaultConfig returns all default values for the Config struct.
func DefaultConfig() Config {
	return Config{
		AppDir:     DefaultAppDir,
		ConfigFile: DefaultConfigFile,
		LogDir:     defaultLogDir,
		DebugLevel: defaultLogLevel,
		LogConfig:  build.DefaultFileLoggerConfig(),
		PlistPath:  DefaultPlistPath,
		Directory: &DirectoryConfig{
			URL:       directory.DefaultURL,
			CacheFile: directory.DefaultCacheFile,
			Timeout:   directory.DefaultTimeout,
		},
		Peers: &PeersConfig{
			Port:         discovery.DefaultPeerPort,
			MinProtocol:  discovery.DefaultMinProtocol,
			TargetSize:   DefaultTargetSize,
			ProbeTimeout: healthcheck.DefaultProbeTimeout,
		},
	}
}

// LoadConfig initializes and parses the config using a config file and
// command line options. preCfg holds the command line options that were
// already parsed on top of the defaults, args are the raw command line
// arguments.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Load configuration file overwriting defaults with any specified options
//  3. Parse CLI options and overwrite/add any specified options
func LoadConfig(preCfg Config, args []string) (*Config, error) {
	// If the config file path has not been modified by the user, then
	// we'll use the default config file path. However, if the user has
	// modified their app dir, then we should assume they intend to use
	// the config file within it.
	configFileDir := CleanAndExpandPath(preCfg.AppDir)
	configFilePath := CleanAndExpandPath(preCfg.ConfigFile)
	if configFileDir != DefaultAppDir {
		if configFilePath == DefaultConfigFile {
			configFilePath = filepath.Join(
				configFileDir, DefaultConfigFilename,
			)
		}
	}

	// Next, load any additional configuration options from the file.
	var configFileError error
	cfg := DefaultConfig()
	if err := flags.IniParse(configFilePath, &cfg); err != nil {
		// If it's a parsing related error, then we'll return
		// immediately, otherwise we can proceed as possibly the config
		// file doesn't exist which is OK.
		var iniErr *flags.IniError
		if errors.As(err, &iniErr) {
			return nil, err
		}

		configFileError = err
	}

	// Finally, parse the command line options again to ensure they take
	// precedence. Command names and their options are handled by the
	// caller.
	parser := flags.NewParser(&cfg, flags.IgnoreUnknown)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	// Make sure everything we just loaded makes sense.
	cleanCfg, err := ValidateConfig(cfg)
	if err != nil {
		return nil, err
	}

	// Warn about missing config file only after all other configuration
	// is done.
	if configFileError != nil {
		log.Debugf("Not using a config file: %v", configFileError)
	}

	return cleanCfg, nil
}

// ValidateConfig checks the given configuration to be sane. This makes sure
// no illegal values or combination of values are set. All file system paths
// are normalized. The cleaned up config is returned on success.
func ValidateConfig(cfg Config) (*Config, error) {
	// If the provided app directory is not the default, the log directory
	// lives within it.
	appDir := CleanAndExpandPath(cfg.AppDir)
	if appDir != DefaultAppDir && cfg.LogDir == defaultLogDir {
		cfg.LogDir = filepath.Join(appDir, defaultLogDirname)
	}
	cfg.AppDir = appDir

	cfg.ConfigFile = CleanAndExpandPath(cfg.ConfigFile)
	cfg.LogDir = CleanAndExpandPath(cfg.LogDir)
	cfg.PlistPath = CleanAndExpandPath(cfg.PlistPath)
	cfg.ArchiveDir = CleanAndExpandPath(cfg.ArchiveDir)
	cfg.MetricsFile = CleanAndExpandPath(cfg.MetricsFile)
	cfg.Directory.CacheFile = CleanAndExpandPath(cfg.Directory.CacheFile)

	if cfg.PlistPath == "" {
		return nil, errors.New("plistpath must be set")
	}

	if cfg.Directory.URL == "" && cfg.Directory.CacheFile == "" {
		return nil, errors.New("either directory.url or " +
			"directory.cachefile must be set")
	}

	if cfg.Directory.SaveCache && cfg.Directory.CacheFile == "" {
		return nil, errors.New("directory.savecache requires " +
			"directory.cachefile")
	}

	if cfg.Directory.Timeout <= 0 {
		return nil, fmt.Errorf("directory.timeout must be positive, "+
			"got %v", cfg.Directory.Timeout)
	}

	if cfg.Peers.ProbeTimeout <= 0 {
		return nil, fmt.Errorf("peers.probetimeout must be positive, "+
			"got %v", cfg.Peers.ProbeTimeout)
	}

	if cfg.Peers.Port == 0 {
		return nil, errors.New("peers.port must be set")
	}

	if cfg.Peers.MinProtocol < 0 {
		return nil, fmt.Errorf("peers.minprotocol must not be "+
			"negative, got %d", cfg.Peers.MinProtocol)
	}

	if cfg.Peers.TargetSize < 0 || cfg.Peers.TargetSize > maxTargetSize {
		return nil, fmt.Errorf("peers.targetsize must be between 0 "+
			"and %d, got %d", maxTargetSize, cfg.Peers.TargetSize)
	}

	if !cfg.LogConfig.Disable {
		if err := cfg.LogConfig.Validate(); err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}

// LogFile returns the full path of the log file.
func (c *Config) LogFile() string {
	return filepath.Join(c.LogDir, defaultLogFilename)
}

// CleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
// This function is taken from https://github.com/btcsuite/btcd
func CleanAndExpandPath(path string) string {
	if path == "" {
		return ""
	}

	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		var homeDir string
		u, err := user.Current()
		if err == nil {
			homeDir = u.HomeDir
		} else {
			homeDir = os.Getenv("HOME")
		}

		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but the variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}
