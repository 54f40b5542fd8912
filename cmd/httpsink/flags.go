package main

import (
	"flag"
	"time"
)

type cliConfig struct {
	configPath      string
	shutdownTimeout time.Duration
	validate        bool
	showVersion     bool
}

func parseFlags() *cliConfig {
	cfg := &cliConfig{}

	flag.StringVar(&cfg.configPath, "config", "config.yaml", "Path to the YAML configuration file")
	flag.DurationVar(&cfg.shutdownTimeout, "shutdown-timeout", 30*time.Second,
		"Maximum time to wait for the final flush on shutdown")
	flag.BoolVar(&cfg.validate, "validate", false, "Validate the configuration and exit")
	flag.BoolVar(&cfg.showVersion, "version", false, "Print version and exit")
	flag.Parse()

	return cfg
}
