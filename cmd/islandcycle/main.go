// Command islandcycle runs The Island Cycle presentation.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/phanxgames/islandcycle"
)

func main() {
	configPath := flag.String("config", "", "YAML configuration file (defaults are used when empty)")
	assetDir := flag.String("assets", "", "Directory holding the images and videos (overrides the config)")
	scriptPath := flag.String("script", "", "YAML scenario to play instead of interactive input; exits when finished")
	debug := flag.Bool("debug", false, "Print per-scene timing and enable the performance overlay")
	touch := flag.Bool("touch", false, "Force the touch presentation")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	level, err := parseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "islandcycle: %v\n", err)
		os.Exit(2)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	islandcycle.SetLogger(logger)

	cfg := islandcycle.DefaultConfig()
	if *configPath != "" {
		cfg, err = islandcycle.LoadConfig(*configPath)
		if err != nil {
			logger.Error("load config", "err", err)
			os.Exit(1)
		}
	}
	if *assetDir != "" {
		cfg.AssetDir = *assetDir
	}
	if *debug {
		cfg.Debug = true
		cfg.PerfOverlay = true
	}
	if *touch {
		cfg.Device.ForceTouch = true
	}

	var script *islandcycle.Scenario
	if *scriptPath != "" {
		script, err = islandcycle.LoadScenario(*scriptPath)
		if err != nil {
			logger.Error("load scenario", "err", err)
			os.Exit(1)
		}
	}

	if err := islandcycle.Run(cfg, nil, script); err != nil {
		logger.Error("islandcycle stopped", "err", err)
		os.Exit(1)
	}
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid -log-level %q", s)
	}
	return l, nil
}
