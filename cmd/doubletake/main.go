package main

import (
	"os"

	"github.com/doubletake-dev/doubletake/internal/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
