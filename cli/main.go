package main

import (
	"os"

	"github.com/nevc-media/vidstream/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
