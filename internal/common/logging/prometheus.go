package logging

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// PrometheusHook implements logrus.Hook, counting log lines per level.
type PrometheusHook struct {
	counter *prometheus.CounterVec
}

var hookLevels = []logrus.Level{
	logrus.DebugLevel,
	logrus.InfoLevel,
	logrus.WarnLevel,
	logrus.ErrorLevel,
}

// NewPrometheusHook creates the log line counter and registers it with registerer.
func NewPrometheusHook(prefix string, registerer prometheus.Registerer) (*PrometheusHook, error) {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: prefix + "log_messages",
		Help: "Total number of log lines logged by level",
	}, []string{"level"})
	if err := registerer.Register(counter); err != nil {
		return nil, err
	}
	for _, level := range hookLevels {
		counter.WithLabelValues(level.String())
	}
	return &PrometheusHook{counter: counter}, nil
}

func (h *PrometheusHook) Levels() []logrus.Level {
	return hookLevels
}

func (h *PrometheusHook) Fire(entry *logrus.Entry) error {
	h.counter.WithLabelValues(entry.Level.String()).Inc()
	return nil
}
