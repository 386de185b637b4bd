// Package cli provides the command-line interface for virtual-pointer.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/devicelab-dev/virtual-pointer/pkg/config"
	"github.com/devicelab-dev/virtual-pointer/pkg/logger"
	"github.com/urfave/cli/v2"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Usage:   "Path to virtual-pointer.yaml (default: ./virtual-pointer.yaml, then the home directory)",
		EnvVars: []string{"VPOINTER_CONFIG"},
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Aliases: []string{"v"},
		Usage:   "Enable verbose logging to stderr",
		EnvVars: []string{"VPOINTER_VERBOSE"},
	},
	&cli.StringFlag{
		Name:  "log-file",
		Usage: "Write the log to this file instead of the output directory",
	},
	&cli.BoolFlag{
		Name:  "no-ansi",
		Usage: "Disable ANSI colors",
	},
	&cli.BoolFlag{
		Name:  "touch",
		Usage: "Force touch events (--touch=false forces mouse events)",
	},
}

var (
	// logConfigured is set when --log-file or --verbose already routed the log.
	logConfigured bool
	// logLevel is reapplied whenever the log is rerouted.
	logLevel string
)

// NewApp builds the virtual-pointer application.
func NewApp() *cli.App {
	return &cli.App{
		Name:    "virtual-pointer",
		Usage:   "Simulate pointer gestures against a render tree",
		Version: Version,
		Description: `virtual-pointer runs YAML gesture flows (tap, press, double tap, drag,
flick, move) against scene files and reports the pointer events they dispatch.

Examples:
  virtual-pointer run flow.yaml --scene board.scene.yaml
  virtual-pointer run flows/ -e TARGET=#card --simulate
  virtual-pointer hit board.scene.yaml 120 140
  virtual-pointer profile --touch`,
		Flags: GlobalFlags,
		Commands: []*cli.Command{
			runCommand,
			validateCommand,
			hitCommand,
			profileCommand,
		},
		Before: setup,
		After: func(*cli.Context) error {
			logger.Close()
			return nil
		},
		// Exit codes are handled by Execute so tests can run the app in-process
		ExitErrHandler: func(*cli.Context, error) {},
	}
}

// Execute runs the CLI.
func Execute() {
	err := NewApp().Run(os.Args)
	if err == nil {
		return
	}
	var exit cli.ExitCoder
	if errors.As(err, &exit) {
		if msg := exit.Error(); msg != "" {
			fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
		}
		os.Exit(exit.ExitCode())
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func setup(c *cli.Context) error {
	setColors(detectColors() && !c.Bool("no-ansi"))

	logConfigured = false
	logLevel = ""
	if path := c.String("log-file"); path != "" {
		if err := logger.Init(path); err != nil {
			return err
		}
		logConfigured = true
	} else if c.Bool("verbose") {
		logger.InitWriter(c.App.ErrWriter)
		logConfigured = true
	}
	if c.Bool("verbose") {
		logLevel = "debug"
	}
	return applyLogLevel()
}

func applyLogLevel() error {
	if logLevel == "" {
		return nil
	}
	return logger.SetLevel(logLevel)
}

// loadConfig resolves the workspace config for the invocation and applies
// the global flags that override it.
func loadConfig(c *cli.Context) (*config.Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}
	cfg, err := config.Discover(c.String("config"), wd)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Source != "" {
		logger.Info("Config: %s", cfg.Source)
	}

	if !c.Bool("verbose") && cfg.LogLevel != "" {
		logLevel = cfg.LogLevel
		if err := applyLogLevel(); err != nil {
			logger.Warn("Ignoring logLevel: %v", err)
			logLevel = ""
		}
	}
	if c.IsSet("touch") {
		touch := c.Bool("touch")
		cfg.Touch = &touch
	}
	return cfg, nil
}
