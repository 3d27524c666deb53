package main

import (
	"os"

	"github.com/tktogether/motleycrowd/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
