package main

import (
	"os"

	"github.com/mcronce/hass-event-collector/cmd/collector/cmd"
	"github.com/mcronce/hass-event-collector/internal/common"
)

func main() {
	common.ConfigureLogging()
	err := cmd.RootCmd().Execute()
	if err != nil {
		os.Exit(1)
	}
}
