package fixedpeers

import (
	"github.com/btcsuite/btclog"
	"github.com/dashpay/fixedpeers/build"
	"github.com/dashpay/fixedpeers/directory"
	"github.com/dashpay/fixedpeers/discovery"
	"github.com/dashpay/fixedpeers/fixedlist"
	"github.com/dashpay/fixedpeers/healthcheck"
	"github.com/dashpay/fixedpeers/peerdb"
)

// Subsystem defines the logging code for the orchestrator.
const Subsystem = "FXPR"

// log is the orchestrator's logger. It is replaced with a real logger by
// SetupLoggers.
var log = build.NewSubLogger(Subsystem, nil)

// SetupLoggers initializes all package-global logger variables so they all
// write to the backend of the given manager.
func SetupLoggers(root *build.SubLoggerManager) {
	log = build.NewSubLogger(Subsystem, root.GenSubLogger)

	AddSubLogger(root, directory.Subsystem, directory.UseLogger)
	AddSubLogger(root, peerdb.Subsystem, peerdb.UseLogger)
	AddSubLogger(root, discovery.Subsystem, discovery.UseLogger)
	AddSubLogger(root, healthcheck.Subsystem, healthcheck.UseLogger)
	AddSubLogger(root, fixedlist.Subsystem, fixedlist.UseLogger)
}

// AddSubLogger is a helper method to conveniently create and register the
// logger of one or more sub systems.
func AddSubLogger(root *build.SubLoggerManager, subsystem string,
	useLoggers ...func(btclog.Logger)) {

	// Create and register just a single logger to prevent them from
	// overwriting each other internally.
	logger := build.NewSubLogger(subsystem, root.GenSubLogger)
	for _, useLogger := range useLoggers {
		useLogger(logger)
	}
}
