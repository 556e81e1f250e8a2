package main

import (
	"os"

	"github.com/slipway-build/slipway/cmd"
	"github.com/slipway-build/slipway/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(errors.GetExitCode(err))
	}
}
