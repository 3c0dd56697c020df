package cmd

import (
	"github.com/spf13/cobra"

	"github.com/mcronce/hass-event-collector/internal/collector"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Collects events until interrupted",
		RunE:  runCollector,
	}
	cmd.Flags().Int("workers", 1, "Number of concurrent workers (1-255)")
	cmd.Flags().String("logLevel", "info", "Log level: trace, debug, info, warn or error")
	return cmd
}

func runCollector(cmd *cobra.Command, _ []string) error {
	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	countLogMessages()
	return collector.Run(config)
}
