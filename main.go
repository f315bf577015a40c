package main

import (
	"fmt"
	"os"

	"github.com/tagwise/tagwise/cmd"
	"github.com/tagwise/tagwise/internal/conf"
	"github.com/tagwise/tagwise/internal/logging"
)

func main() {
	logging.Init()

	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading configuration: %v\n", err)
		os.Exit(1)
	}

	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
