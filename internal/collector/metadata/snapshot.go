package metadata

import (
	"context"

	"github.com/pkg/errors"
)

// Snapshot is a point-in-time view of the registries. It is never modified after NewSnapshot returns, so it can be
// shared between goroutines without locking.
type Snapshot struct {
	entitiesByID map[string]Entity
	devicesByID  map[string]Device
	areasByID    map[string]Area
}

// Result is the metadata resolved for one entity. Area is nil when the device has no (known) area.
type Result struct {
	Entity Entity
	Device Device
	Area   *Area
}

func NewSnapshot(areas []Area, devices []Device, entities []Entity) *Snapshot {
	s := &Snapshot{
		entitiesByID: make(map[string]Entity, len(entities)),
		devicesByID:  make(map[string]Device, len(devices)),
		areasByID:    make(map[string]Area, len(areas)),
	}
	for _, e := range entities {
		s.entitiesByID[e.EntityID] = e
	}
	for _, d := range devices {
		s.devicesByID[d.ID] = d
	}
	for _, a := range areas {
		s.areasByID[a.ID] = a
	}
	return s
}

// Load fetches areas, devices and entities, in that order, and builds a snapshot from them.
func Load(ctx context.Context, fetcher Fetcher) (*Snapshot, error) {
	areas, err := fetcher.Areas(ctx)
	if err != nil {
		return nil, errors.WithMessage(err, "fetching area registry")
	}
	devices, err := fetcher.Devices(ctx)
	if err != nil {
		return nil, errors.WithMessage(err, "fetching device registry")
	}
	entities, err := fetcher.Entities(ctx)
	if err != nil {
		return nil, errors.WithMessage(err, "fetching entity registry")
	}
	return NewSnapshot(areas, devices, entities), nil
}

// Find resolves an entity. It fails if the entity is unknown, has no device, or references a device that is not
// in this snapshot; a partial result is never returned. A missing area is tolerated.
func (s *Snapshot) Find(entityID string) (Result, bool) {
	entity, ok := s.entitiesByID[entityID]
	if !ok || entity.DeviceID == "" {
		return Result{}, false
	}
	device, ok := s.devicesByID[entity.DeviceID]
	if !ok {
		return Result{}, false
	}
	result := Result{Entity: entity, Device: device}
	if device.AreaID != "" {
		if area, ok := s.areasByID[device.AreaID]; ok {
			result.Area = &area
		}
	}
	return result, true
}

func (s *Snapshot) NumEntities() int {
	return len(s.entitiesByID)
}

func (s *Snapshot) NumDevices() int {
	return len(s.devicesByID)
}

func (s *Snapshot) NumAreas() int {
	return len(s.areasByID)
}
