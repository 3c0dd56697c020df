package common

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	commonconfig "github.com/mcronce/hass-event-collector/internal/common/config"
	"github.com/mcronce/hass-event-collector/internal/common/health"
)

const envPrefix = "HASS_COLLECTOR"

// LoadConfig reads config.yaml from defaultPath, merges any user-specified files over it and then applies
// environment overrides, e.g. HASS_COLLECTOR_FEED_MQTT_HOST for feed.mqtt.host. Flags in flags that were set on
// the command line take precedence over everything else. hooks decode types the common hooks do not know about.
func LoadConfig(
	config commonconfig.Config,
	defaultPath string,
	overrideConfigs []string,
	flags *pflag.FlagSet,
	hooks ...mapstructure.DecodeHookFunc,
) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath(defaultPath)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading base config path=%s: %v", defaultPath, err)
	}
	log.Infof("Read base config from %s", v.ConfigFileUsed())

	for _, overrideConfig := range overrideConfigs {
		v.SetConfigFile(overrideConfig)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config from %s: %v", overrideConfig, err)
		}
		log.Infof("Read config from %s", v.ConfigFileUsed())
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, err
		}
	}

	if err := v.Unmarshal(config, commonconfig.CustomHooks(hooks...)...); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		commonconfig.LogValidationErrors(err)
		return nil, err
	}
	return v, nil
}

func ConfigureLogging() {
	log.SetFormatter(&log.TextFormatter{ForceColors: true, FullTimestamp: true})
	log.SetOutput(os.Stdout)
}

// SetLogLevel applies a logrus level name (debug, info, warn, error) to the standard logger.
func SetLogLevel(level string) error {
	if level == "" {
		return nil
	}
	parsed, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	log.SetLevel(parsed)
	return nil
}

// ServeMetrics exposes the default Prometheus registry on /metrics and checker on /health. A zero port disables
// the server.
func ServeMetrics(port uint16, checker health.Checker) (shutdown func()) {
	return ServeMetricsFor(port, prometheus.DefaultGatherer, checker)
}

func ServeMetricsFor(port uint16, gatherer prometheus.Gatherer, checker health.Checker) (shutdown func()) {
	if port == 0 {
		return func() {}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	if checker != nil {
		health.SetupHttpMux(mux, checker)
	}
	return ServeHttp(port, mux)
}

func ServeHttp(port uint16, mux http.Handler) (shutdown func()) {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Starting http server listening on %d", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Errorf("http server listening on %d failed", port)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		log.Printf("Stopping http server listening on %d", port)
		if err := srv.Shutdown(ctx); err != nil {
			log.WithError(err).Warnf("http server listening on %d did not shut down cleanly", port)
		}
	}
}
