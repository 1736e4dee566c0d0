package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dashpay/fixedpeers"
	"github.com/dashpay/fixedpeers/build"
	flags "github.com/jessevdk/go-flags"
)

type subCommand interface {
	Register(parser *flags.Parser) error
}

func main() {
	a := &app{
		preCfg: fixedpeers.DefaultConfig(),
	}

	parser := flags.NewParser(&a.preCfg, flags.Default)
	parser.SubcommandsOptional = true

	subCommands := []subCommand{
		newUpdateCommand(a),
		newValidateCommand(a),
		newRankCommand(a),
	}
	for _, subCommand := range subCommands {
		if err := subCommand.Register(parser); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	_, err := parser.Parse()
	a.close()

	var flagErr *flags.Error
	switch {
	case err == nil:

	case errors.As(err, &flagErr) && flagErr.Type == flags.ErrHelp:
		return

	default:
		os.Exit(1)
	}

	switch {
	case a.preCfg.ShowVersion:
		fmt.Println("fixedpeers version", build.Version(),
			"commit="+build.Commit)

	case parser.Active == nil:
		parser.WriteHelp(os.Stderr)
		os.Exit(1)
	}
}

// app holds the state shared by all commands.
type app struct {
	preCfg fixedpeers.Config

	rotator *build.RotatingLogWriter

	stopSignals context.CancelFunc
}

// setup loads the full configuration, starts logging and returns an updater
// built from the configuration together with a context that is canceled on
// SIGINT or SIGTERM.
func (a *app) setup() (context.Context, *fixedpeers.Updater, error) {
	cfg, err := fixedpeers.LoadConfig(a.preCfg, os.Args[1:])
	if err != nil {
		return nil, nil, err
	}

	logWriter := &build.LogWriter{}
	logMgr := build.NewSubLoggerManager(logWriter)
	fixedpeers.SetupLoggers(logMgr)

	if cfg.DebugLevel == "show" {
		fmt.Println("Supported subsystems",
			strings.Join(logMgr.SupportedSubsystems(), ", "))
		os.Exit(0)
	}

	if err := build.ParseAndSetDebugLevels(
		cfg.DebugLevel, logMgr,
	); err != nil {
		return nil, nil, err
	}

	if !cfg.LogConfig.Disable {
		a.rotator = build.NewRotatingLogWriter()
		err := a.rotator.InitLogRotator(cfg.LogConfig, cfg.LogFile())
		if err != nil {
			return nil, nil, err
		}
		logWriter.Rotator = a.rotator
	}

	updater, err := fixedpeers.NewUpdaterFromConfig(cfg)
	if err != nil {
		return nil, nil, err
	}

	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM,
	)
	a.stopSignals = stop

	return ctx, updater, nil
}

// close releases the signal handler and closes the log file.
func (a *app) close() {
	if a.stopSignals != nil {
		a.stopSignals()
	}
	if a.rotator != nil {
		_ = a.rotator.Close()
	}
}
