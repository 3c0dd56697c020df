package pipeline

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mcronce/hass-event-collector/internal/collector/filter"
	"github.com/mcronce/hass-event-collector/internal/collector/metadata"
	"github.com/mcronce/hass-event-collector/internal/collector/metrics"
	"github.com/mcronce/hass-event-collector/internal/collector/model"
)

type recordingSink struct {
	mu      sync.Mutex
	points  []*model.Point
	err     error
	release chan struct{}
	started chan struct{}
}

func (s *recordingSink) Write(_ context.Context, point *model.Point) error {
	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.release != nil {
		<-s.release
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.points = append(s.points, point)
	return nil
}

func (s *recordingSink) Points() []*model.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*model.Point(nil), s.points...)
}

func testMetrics() *metrics.Metrics {
	return metrics.NewMetrics("test_", prometheus.NewRegistry())
}

func livingRoomRegistry() *metadata.Registry {
	return metadata.NewRegistry(metadata.NewSnapshot(
		[]metadata.Area{{ID: "living_room", Name: "Living Room"}},
		[]metadata.Device{
			{ID: "dev1", Name: "Living Room Sensor", AreaID: "living_room"},
			{ID: "dev2", Name: "Hall Switch"},
		},
		[]metadata.Entity{
			{EntityID: "sensor.temp", DeviceID: "dev1"},
			{EntityID: "switch.hall", Name: "Hall Light", DeviceID: "dev2"},
			{EntityID: "sensor.orphan", DeviceID: "missing"},
		},
	))
}

func newTestProcessor(sink Sink) *Processor {
	return NewProcessor(filter.EntityFilter{}, filter.Allow, livingRoomRegistry(), sink, testMetrics())
}

const tempEvent = `{
	"entity_id": "sensor.temp",
	"new_state": {
		"entity_id": "sensor.temp",
		"state": "21.5",
		"last_updated": "2023-12-27T15:28:26.287133+00:00",
		"attributes": {"device_class": "temperature"}
	}
}`
