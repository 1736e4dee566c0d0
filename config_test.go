package fixedpeers

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestValidateConfig checks that nonsensical option combinations are
// rejected.
func TestValidateConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		modify func(cfg *Config)
		err    string
	}{
		{
			name:   "defaults",
			modify: func(cfg *Config) {},
		},
		{
			name: "negative target",
			modify: func(cfg *Config) {
				cfg.Peers.TargetSize = -1
			},
			err: "peers.targetsize",
		},
		{
			name: "huge target",
			modify: func(cfg *Config) {
				cfg.Peers.TargetSize = maxTargetSize + 1
			},
			err: "peers.targetsize",
		},
		{
			name: "no probe timeout",
			modify: func(cfg *Config) {
				cfg.Peers.ProbeTimeout = 0
			},
			err: "peers.probetimeout",
		},
		{
			name: "no fetch timeout",
			modify: func(cfg *Config) {
				cfg.Directory.Timeout = -time.Second
			},
			err: "directory.timeout",
		},
		{
			name: "no port",
			modify: func(cfg *Config) {
				cfg.Peers.Port = 0
			},
			err: "peers.port",
		},
		{
			name: "no directory",
			modify: func(cfg *Config) {
				cfg.Directory.URL = ""
				cfg.Directory.CacheFile = ""
			},
			err: "directory.url",
		},
		{
			name: "save without cache file",
			modify: func(cfg *Config) {
				cfg.Directory.CacheFile = ""
				cfg.Directory.SaveCache = true
			},
			err: "directory.savecache",
		},
		{
			name: "no plist",
			modify: func(cfg *Config) {
				cfg.PlistPath = ""
			},
			err: "plistpath",
		},
		{
			name: "bad compressor",
			modify: func(cfg *Config) {
				cfg.LogConfig.Compressor = "lz4"
			},
			err: "log compressor",
		},
		{
			name: "bad compressor without log file",
			modify: func(cfg *Config) {
				cfg.LogConfig.Disable = true
				cfg.LogConfig.Compressor = "lz4"
			},
		},
	}

	for _, tc := range tests {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			tc.modify(&cfg)

			cleanCfg, err := ValidateConfig(cfg)
			if tc.err != "" {
				require.ErrorContains(t, err, tc.err)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cleanCfg)
		})
	}
}

// TestValidateConfigAppDir moves the log directory into a custom app dir.
func TestValidateConfigAppDir(t *testing.T) {
	t.Parallel()

	appDir := t.TempDir()

	cfg := DefaultConfig()
	cfg.AppDir = appDir

	cleanCfg, err := ValidateConfig(cfg)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(appDir, defaultLogDirname),
		cleanCfg.LogDir)
	require.Equal(t, filepath.Join(appDir, defaultLogDirname,
		defaultLogFilename), cleanCfg.LogFile())
}

// TestLoadConfig checks that the command line takes precedence over the
// config file, which takes precedence over the defaults.
func TestLoadConfig(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	plistPath := filepath.Join(dir, "FixedPeers.plist")
	archiveDir := filepath.Join(dir, "archives")
	configFile := filepath.Join(dir, DefaultConfigFilename)

	conf := "[Application Options]\n" +
		"plistpath=" + plistPath + "\n" +
		"archivedir=" + archiveDir + "\n" +
		"\n" +
		"[peers]\n" +
		"peers.targetsize=50\n" +
		"peers.minprotocol=70210\n"
	require.NoError(t, os.WriteFile(configFile, []byte(conf), 0o600))

	preCfg := DefaultConfig()
	preCfg.ConfigFile = configFile

	args := []string{
		"--configfile=" + configFile,
		"--peers.targetsize=60",
		"update",
		"--someflag",
	}
	cfg, err := LoadConfig(preCfg, args)
	require.NoError(t, err)

	require.Equal(t, plistPath, cfg.PlistPath)
	require.Equal(t, archiveDir, cfg.ArchiveDir)
	require.Equal(t, 60, cfg.Peers.TargetSize)
	require.EqualValues(t, 70210, cfg.Peers.MinProtocol)
	require.EqualValues(t, 9999, cfg.Peers.Port)
}

// TestLoadConfigNoFile falls back to the defaults without a config file.
func TestLoadConfigNoFile(t *testing.T) {
	t.Parallel()

	preCfg := DefaultConfig()
	preCfg.ConfigFile = filepath.Join(t.TempDir(), "absent.conf")

	cfg, err := LoadConfig(preCfg, nil)
	require.NoError(t, err)
	require.Equal(t, DefaultPlistPath, filepath.ToSlash(cfg.PlistPath))
	require.Equal(t, DefaultTargetSize, cfg.Peers.TargetSize)

	// Archiving is opt-in so nothing is written next to the list unless
	// asked for.
	require.Empty(t, cfg.ArchiveDir)
}

// TestCleanAndExpandPath expands environment variables and cleans paths.
func TestCleanAndExpandPath(t *testing.T) {
	t.Setenv("FIXEDPEERS_TEST_DIR", "/tmp/fixedpeers")

	require.Empty(t, CleanAndExpandPath(""))
	require.Equal(t, "/tmp/fixedpeers/list.plist",
		CleanAndExpandPath("$FIXEDPEERS_TEST_DIR//list.plist"))
	require.Equal(t, "../DashWallet/FixedPeers.plist",
		CleanAndExpandPath("../DashWallet/./FixedPeers.plist"))
}
