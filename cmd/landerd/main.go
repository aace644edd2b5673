package main

import (
	"os"

	"github.com/landerd/landerd/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
