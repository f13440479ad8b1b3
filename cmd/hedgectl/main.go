package main

import (
	"os"

	"github.com/hedgedesk/exposure-engine/cmd/hedgectl/cmd"
)

func main() {
	if err := cmd.New().Execute(); err != nil {
		os.Exit(1)
	}
}
