package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/chainsafe/trader-flows/pkg/app"
	nodeapp "github.com/chainsafe/trader-flows/pkg/app/node"
	"github.com/chainsafe/trader-flows/pkg/config"
)

var (
	configPath = flag.String("config", "config.yaml", "Path to configuration file")
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	var runner app.Runner = nodeapp.NewServer(cfg)
	if err := runner.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Node stopped: %v\n", err)
		os.Exit(1)
	}
}
