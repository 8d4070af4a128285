package main

import (
	"os"

	"github.com/campusqa/campusqa-cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
