package main

import (
	"os"

	"github.com/nhle/accomplishment-tracker/internal/cli"
)

func main() {
	cmd := cli.NewRootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
