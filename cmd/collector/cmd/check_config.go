package cmd

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/mcronce/hass-event-collector/internal/collector/configuration"
	"github.com/mcronce/hass-event-collector/internal/collector/filter"
	"github.com/mcronce/hass-event-collector/internal/collector/hass"
)

func checkConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check-config",
		Short: "Validates the configuration and prints the effective settings",
		RunE:  checkConfig,
	}
	return cmd
}

// effectiveConfig is what check-config prints. Credentials are left out.
type effectiveConfig struct {
	LogLevel        string               `json:"logLevel"`
	Workers         int                  `json:"workers"`
	DefaultFilter   filter.DefaultFilter `json:"defaultFilter"`
	EntityFilter    filter.EntityFilter  `json:"entityFilter"`
	MetricsPort     uint16               `json:"metricsPort"`
	RefreshInterval string               `json:"refreshInterval"`
	Hass            string               `json:"hass"`
	Feed            string               `json:"feed"`
	Sink            string               `json:"sink"`
}

func newEffectiveConfig(config *configuration.CollectorConfiguration) effectiveConfig {
	sink := "log"
	if config.InfluxDB.URL != "" {
		sink = config.InfluxDB.URL
	}
	return effectiveConfig{
		LogLevel:        config.LogLevel,
		Workers:         config.Workers,
		DefaultFilter:   config.DefaultFilter,
		EntityFilter:    config.EntityFilter,
		MetricsPort:     config.MetricsPort,
		RefreshInterval: config.Metadata.RefreshInterval.String(),
		Hass:            hass.URL(config.Hass.Host, config.Hass.Port, config.Hass.Secure),
		Feed:            config.Feed.Type,
		Sink:            sink,
	}
}

func checkConfig(cmd *cobra.Command, _ []string) error {
	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	out, err := yaml.Marshal(newEffectiveConfig(config))
	if err != nil {
		return errors.WithStack(err)
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}
