package pipeline

import (
	"context"
	"encoding/json"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/mcronce/hass-event-collector/internal/collector/filter"
	"github.com/mcronce/hass-event-collector/internal/collector/metadata"
	"github.com/mcronce/hass-event-collector/internal/collector/metrics"
	"github.com/mcronce/hass-event-collector/internal/collector/model"
	"github.com/mcronce/hass-event-collector/internal/collector/value"
	"github.com/mcronce/hass-event-collector/internal/common/logging"
)

// Outcome is how processing of a single message ended.
type Outcome string

const (
	OutcomeWritten          Outcome = "written"
	OutcomeInvalidPayload   Outcome = "invalid_payload"
	OutcomeFiltered         Outcome = "filtered"
	OutcomeMissingNewState  Outcome = "missing_new_state"
	OutcomeInvalidEntityID  Outcome = "invalid_entity_id"
	OutcomeInvalidTimestamp Outcome = "invalid_timestamp"
	OutcomeNoMetadata       Outcome = "metadata_not_found"
	OutcomeNonNumericValue  Outcome = "non_numeric_value"
	OutcomeSinkError        Outcome = "sink_error"
)

// Sink persists points. A failed write is logged and the point dropped; sinks are not retried.
type Sink interface {
	Write(ctx context.Context, point *model.Point) error
}

// Lookup resolves entity metadata; satisfied by *metadata.Registry.
type Lookup interface {
	Find(entityID string) (metadata.Result, bool)
}

// Processor turns one raw message into at most one point. It holds no per-message state and is safe for use by
// any number of workers.
type Processor struct {
	filter   filter.EntityFilter
	policy   filter.DefaultFilter
	registry Lookup
	sink     Sink
	metrics  *metrics.Metrics
}

func NewProcessor(entityFilter filter.EntityFilter, policy filter.DefaultFilter, registry Lookup, sink Sink, m *metrics.Metrics) *Processor {
	return &Processor{
		filter:   entityFilter,
		policy:   policy,
		registry: registry,
		sink:     sink,
		metrics:  m,
	}
}

func (p *Processor) Process(ctx context.Context, payload []byte) Outcome {
	var ev model.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		log.WithError(err).WithField("event", string(payload)).Error("Failed to deserialize event")
		return OutcomeInvalidPayload
	}

	if !p.policy.Admits(p.filter.MatchesEvent(&ev)) {
		log.WithField("entity_id", ev.Data.EntityID).Debug("Did not match filter")
		return OutcomeFiltered
	}

	state := ev.Data.NewState
	if state == nil {
		log.WithField("entity_id", ev.Data.EntityID).Warn("New state missing")
		return OutcomeMissingNewState
	}

	kind, _, ok := model.SplitEntityID(state.EntityID)
	if !ok {
		log.WithField("entity_id", state.EntityID).Warn("Invalid entity ID")
		return OutcomeInvalidEntityID
	}

	ts, err := time.Parse(time.RFC3339Nano, state.LastUpdated)
	if err != nil {
		log.WithError(err).WithField("ts", state.LastUpdated).Error("Failed to parse timestamp")
		return OutcomeInvalidTimestamp
	}

	meta, ok := p.registry.Find(state.EntityID)
	if !ok {
		log.WithField("entity_id", state.EntityID).Warn("Metadata not found")
		return OutcomeNoMetadata
	}

	v, err := value.Parse(state.State)
	if err != nil {
		log.WithFields(log.Fields{"entity_id": meta.Entity.EntityID, "value": state.State}).
			Warn("Failed to parse numerical value from state")
		return OutcomeNonNumericValue
	}

	point := BuildPoint(kind, v, ts, meta, state)
	log.WithField("point", point).Debug("Built datapoint")

	start := time.Now()
	err = p.sink.Write(ctx, point)
	p.metrics.ObserveSinkWrite(time.Since(start))
	if err != nil {
		logging.WithStacktrace(log.WithField("entity_id", state.EntityID), err).Error("Failed to write data")
		return OutcomeSinkError
	}
	return OutcomeWritten
}

// BuildPoint assembles the output point. entity.id and device.name are always set; entity.name, device.area and
// device.class only when known.
func BuildPoint(kind string, v float64, ts time.Time, meta metadata.Result, state *model.State) *model.Point {
	point := model.NewPoint(kind, v, ts).
		AddTag(model.TagEntityID, meta.Entity.EntityID).
		AddTag(model.TagDeviceName, meta.Device.Name)

	if name := meta.Entity.DisplayName(); name != "" {
		point.AddTag(model.TagEntityName, name)
	}
	if meta.Area != nil {
		point.AddTag(model.TagDeviceArea, meta.Area.Name)
	}
	if class, ok := state.DeviceClass(); ok {
		point.AddTag(model.TagDeviceClass, class)
	}
	return point
}
