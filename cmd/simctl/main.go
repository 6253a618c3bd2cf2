package main

import (
	"os"

	"github.com/sungho-yun/gapsim/internal/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
