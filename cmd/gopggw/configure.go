package main

import (
	"flag"
	"os"

	"github.com/rickchristie/pg-gateway/internal/configure"
)

func runConfigure() error {
	fs := flag.NewFlagSet("configure", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Path to configuration file")
	fs.Parse(os.Args[2:])

	return configure.Run(*configPath)
}
