package cmd

import (
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mcronce/hass-event-collector/internal/collector/configuration"
	"github.com/mcronce/hass-event-collector/internal/collector/metrics"
	"github.com/mcronce/hass-event-collector/internal/common"
	"github.com/mcronce/hass-event-collector/internal/common/logging"
)

const (
	CustomConfigLocation string = "config"
	defaultConfigPath    string = "./config/collector"
)

func RootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "hass-event-collector",
		SilenceUsage: true,
		Short:        "Records Home Assistant state changes as time series",
	}

	cmd.PersistentFlags().StringSlice(
		CustomConfigLocation,
		[]string{},
		"Fully qualified path to application configuration file (for multiple config files repeat this arg or separate paths with commas)")

	cmd.AddCommand(
		runCmd(),
		checkConfigCmd(),
	)

	return cmd
}

func loadConfig(cmd *cobra.Command) (*configuration.CollectorConfiguration, error) {
	userSpecifiedConfigs, err := cmd.Flags().GetStringSlice(CustomConfigLocation)
	if err != nil {
		return nil, err
	}
	var config configuration.CollectorConfiguration
	if _, err := common.LoadConfig(&config, defaultConfigPath, userSpecifiedConfigs, cmd.Flags(), configuration.DecodeHooks()...); err != nil {
		return nil, err
	}
	return &config, nil
}

func countLogMessages() {
	hook, err := logging.NewPrometheusHook(metrics.MetricsPrefix, prometheus.DefaultRegisterer)
	if err != nil {
		log.WithError(err).Warn("Log messages will not be counted")
		return
	}
	log.AddHook(hook)
}
