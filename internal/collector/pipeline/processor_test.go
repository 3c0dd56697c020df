package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcronce/hass-event-collector/internal/collector/filter"
	"github.com/mcronce/hass-event-collector/internal/collector/metadata"
	"github.com/mcronce/hass-event-collector/internal/collector/model"
)

func TestProcess_EndToEnd(t *testing.T) {
	sink := &recordingSink{}
	p := newTestProcessor(sink)

	outcome := p.Process(context.Background(), []byte(tempEvent))
	assert.Equal(t, OutcomeWritten, outcome)

	points := sink.Points()
	require.Len(t, points, 1)
	point := points[0]
	assert.Equal(t, "hass:sensor", point.Measurement)
	assert.Equal(t, map[string]interface{}{"value": 21.5}, point.Fields)
	assert.Equal(t, map[string]string{
		"entity.id":    "sensor.temp",
		"device.name":  "Living Room Sensor",
		"device.area":  "Living Room",
		"device.class": "temperature",
	}, point.Tags)
	expectedTs, err := time.Parse(time.RFC3339, "2023-12-27T15:28:26.287133Z")
	require.NoError(t, err)
	assert.True(t, expectedTs.Equal(point.Time))
}

func TestProcess_Envelope(t *testing.T) {
	sink := &recordingSink{}
	p := newTestProcessor(sink)

	payload := `{"event_type": "state_changed", "event_data": {"entity_id": "switch.hall", "old_state": null,
		"new_state": {"entity_id": "switch.hall", "state": "on", "last_updated": "2024-01-02T03:04:05Z", "attributes": {}}}}`
	assert.Equal(t, OutcomeWritten, p.Process(context.Background(), []byte(payload)))

	points := sink.Points()
	require.Len(t, points, 1)
	assert.Equal(t, "hass:switch", points[0].Measurement)
	assert.Equal(t, 1.0, points[0].Fields["value"])
	assert.Equal(t, map[string]string{
		"entity.id":   "switch.hall",
		"entity.name": "Hall Light",
		"device.name": "Hall Switch",
	}, points[0].Tags)
}

func TestProcess_MetadataMiss(t *testing.T) {
	sink := &recordingSink{}
	p := NewProcessor(filter.EntityFilter{}, filter.Allow, metadata.NewRegistry(metadata.NewSnapshot(nil, nil, nil)), sink, testMetrics())

	assert.Equal(t, OutcomeNoMetadata, p.Process(context.Background(), []byte(tempEvent)))
	assert.Empty(t, sink.Points())
}

func stateEvent(entityID, stateEntityID, state, ts string) string {
	return fmt.Sprintf(`{"entity_id": %q, "new_state": {"entity_id": %q, "state": %q, "last_updated": %q}}`,
		entityID, stateEntityID, state, ts)
}

func TestProcess_Skips(t *testing.T) {
	const ts = "2023-12-27T15:28:26Z"
	tests := map[string]struct {
		payload  string
		expected Outcome
	}{
		"not json":             {payload: `{"entity_id":`, expected: OutcomeInvalidPayload},
		"null payload":         {payload: `null`, expected: OutcomeInvalidPayload},
		"empty object":         {payload: `{}`, expected: OutcomeInvalidPayload},
		"no entity id":         {payload: `{"new_state": {"entity_id": "sensor.temp", "state": "21.5", "last_updated": "` + ts + `"}}`, expected: OutcomeInvalidPayload},
		"missing new state":    {payload: `{"entity_id": "sensor.temp", "old_state": {"entity_id": "sensor.temp", "state": "1"}}`, expected: OutcomeMissingNewState},
		"null new state":       {payload: `{"entity_id": "sensor.temp", "new_state": null}`, expected: OutcomeMissingNewState},
		"state entity no dot":  {payload: stateEvent("sensor.temp", "sensortemp", "1", ts), expected: OutcomeInvalidEntityID},
		"bad timestamp":        {payload: stateEvent("sensor.temp", "sensor.temp", "1", "yesterday"), expected: OutcomeInvalidTimestamp},
		"empty timestamp":      {payload: stateEvent("sensor.temp", "sensor.temp", "1", ""), expected: OutcomeInvalidTimestamp},
		"unknown entity":       {payload: stateEvent("sensor.nope", "sensor.nope", "1", ts), expected: OutcomeNoMetadata},
		"dangling device":      {payload: stateEvent("sensor.orphan", "sensor.orphan", "1", ts), expected: OutcomeNoMetadata},
		"non numeric state":    {payload: stateEvent("sensor.temp", "sensor.temp", "unavailable", ts), expected: OutcomeNonNumericValue},
		"numeric before token": {payload: stateEvent("sensor.temp", "sensor.temp", "0", ts), expected: OutcomeWritten},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			sink := &recordingSink{}
			p := newTestProcessor(sink)
			assert.Equal(t, tc.expected, p.Process(context.Background(), []byte(tc.payload)))
			if tc.expected != OutcomeWritten {
				assert.Empty(t, sink.Points())
			}
		})
	}
}

func TestProcess_FilterPolicy(t *testing.T) {
	sensors := filter.New(filter.Rule{Kind: "sensor", Name: regexp.MustCompile("^temp$")})
	tests := map[string]struct {
		policy   filter.DefaultFilter
		payload  string
		expected Outcome
	}{
		"allow, matched is dropped":     {policy: filter.Allow, payload: tempEvent, expected: OutcomeFiltered},
		"allow, unmatched is admitted":  {policy: filter.Allow, payload: stateEvent("switch.hall", "switch.hall", "off", "2023-12-27T15:28:26Z"), expected: OutcomeWritten},
		"deny, matched is admitted":     {policy: filter.Deny, payload: tempEvent, expected: OutcomeWritten},
		"deny, unmatched is dropped":    {policy: filter.Deny, payload: stateEvent("switch.hall", "switch.hall", "off", "2023-12-27T15:28:26Z"), expected: OutcomeFiltered},
		"deny, malformed id is dropped": {policy: filter.Deny, payload: stateEvent("sensortemp", "sensor.temp", "1", "2023-12-27T15:28:26Z"), expected: OutcomeFiltered},
		"allow, missing id is rejected": {policy: filter.Allow, payload: `{"new_state": {"entity_id": "sensor.temp", "state": "21.5", "last_updated": "2023-12-27T15:28:26Z"}}`, expected: OutcomeInvalidPayload},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			sink := &recordingSink{}
			p := NewProcessor(sensors, tc.policy, livingRoomRegistry(), sink, testMetrics())
			assert.Equal(t, tc.expected, p.Process(context.Background(), []byte(tc.payload)))
		})
	}
}

func TestProcess_SinkError(t *testing.T) {
	sink := &recordingSink{err: errors.New("influx unavailable")}
	p := newTestProcessor(sink)

	assert.Equal(t, OutcomeSinkError, p.Process(context.Background(), []byte(tempEvent)))
	// The processor carries on with the next message.
	sink.mu.Lock()
	sink.err = nil
	sink.mu.Unlock()
	assert.Equal(t, OutcomeWritten, p.Process(context.Background(), []byte(tempEvent)))
	assert.Len(t, sink.Points(), 1)
}

func TestBuildPoint_EntityNameFallsBackToOriginalName(t *testing.T) {
	meta := metadata.Result{
		Entity: metadata.Entity{EntityID: "light.desk", OriginalName: "Desk Lamp"},
		Device: metadata.Device{Name: "Lamp"},
	}
	point := BuildPoint("light", 1, time.Unix(0, 0), meta, &model.State{})
	assert.Equal(t, "Desk Lamp", point.Tags[model.TagEntityName])
	assert.NotContains(t, point.Tags, model.TagDeviceArea)
	assert.NotContains(t, point.Tags, model.TagDeviceClass)
	assert.True(t, strings.HasPrefix(point.String(), "hass:light,"))
}

func TestBuildPoint_NonStringDeviceClassIgnored(t *testing.T) {
	meta := metadata.Result{Entity: metadata.Entity{EntityID: "sensor.x"}, Device: metadata.Device{Name: "X"}}
	state := &model.State{Attributes: map[string]interface{}{"device_class": 12}}
	point := BuildPoint("sensor", 1, time.Unix(0, 0), meta, state)
	assert.NotContains(t, point.Tags, model.TagDeviceClass)
	assert.NotContains(t, point.Tags, model.TagEntityName)
	assert.Equal(t, "X", point.Tags[model.TagDeviceName])
}
