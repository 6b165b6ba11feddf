package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/richard-senior/leaguesim/internal/logger"
	"github.com/richard-senior/leaguesim/pkg/config"
)

const usage = `usage: leaguesim [command] [flags]

commands:
  simulate   forecast a league's final table (default)
  fetch      download a league snapshot to a file
  serve      run the stdio tool server
  history    list stored runs, or show one with -id
  leagues    list the league catalogue

run "leaguesim <command> -h" for the flags of a command
`

var commands = map[string]func(args []string) error{
	"simulate": runSimulate,
	"fetch":    runFetch,
	"serve":    runServe,
	"history":  runHistory,
	"leagues":  runLeagues,
}

func main() {
	// Configure logging
	logger.SetShowDateTime(true)

	// stdout belongs to reports and the tool protocol
	if err := logger.SetLogOutput('f'); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}

	name, args := "simulate", os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		name, args = args[0], args[1:]
	}
	if name == "help" {
		fmt.Print(usage)
		return
	}
	run, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", name, usage)
		os.Exit(2)
	}

	logger.Info("Starting leaguesim", name)
	if err := run(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		logger.Error("Command failed:", name, err)
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file if given, installs it globally and applies its log level
func loadConfig(path string) (*config.LeaguesimConfig, error) {
	cfg := config.DefaultConfig()
	if path != "" {
		var err error
		if cfg, err = config.LoadConfig(path); err != nil {
			return nil, err
		}
	}
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Warn("Ignoring log level", err)
	}
	logger.SetLevel(level)
	config.UpdateConfig(cfg)
	return cfg, nil
}
