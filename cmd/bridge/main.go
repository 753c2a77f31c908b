package main

import (
	"os"

	"github.com/rustyeddy/bridge/cmd/bridge/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
