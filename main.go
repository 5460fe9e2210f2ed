package main

import (
	"os"

	"github.com/forgehq/forge/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
