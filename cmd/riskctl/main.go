package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ZanzyTHEbar/credit-risk-lens/internal/config"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/monitoring"
)

var (
	name    = "riskctl"
	version = "v0.0.1-default"
	commit  = ""

	debugFlag = &cli.BoolFlag{
		Name:  "debug",
		Usage: "Prints verbose logs (optional, default: false)",
	}

	configFlag = &cli.StringFlag{
		Name:    "config",
		Usage:   "Path to a YAML configuration file (optional)",
		EnvVars: []string{config.EnvConfigPath},
	}
)

const appConfigKey = "config"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:     name,
		Version:  fmt.Sprintf("%s - (commit: %s)", version, commit),
		Compiled: time.Now(),
		Usage:    "Train, inspect and run the credit risk model offline",
		Flags: []cli.Flag{
			debugFlag,
			configFlag,
		},
		Commands: []*cli.Command{
			synthCmd,
			trainCmd,
			analyzeCmd,
			categorizeCmd,
		},
		Before: func(c *cli.Context) error {
			level := slog.LevelInfo
			if c.Bool(debugFlag.Name) {
				level = slog.LevelDebug
			}
			slog.SetDefault(monitoring.NewTextLogger(c.App.ErrWriter, level).Logger)

			cfg := config.Default()
			if path := c.String(configFlag.Name); path != "" {
				var err error
				if cfg, err = config.LoadFile(path); err != nil {
					return err
				}
			}
			if c.App.Metadata == nil {
				c.App.Metadata = map[string]interface{}{}
			}
			c.App.Metadata[appConfigKey] = cfg
			return nil
		},
	}
}

func appConfig(c *cli.Context) config.Config {
	if cfg, ok := c.App.Metadata[appConfigKey].(config.Config); ok {
		return cfg
	}
	return config.Default()
}
