package main

import (
	"os"

	"github.com/adhunik-labs/adhunik/internal/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
