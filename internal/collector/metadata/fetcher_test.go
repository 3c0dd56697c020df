package metadata

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// fakeFetcher serves fixed registries, optionally failing. Every completed Entities call is reported on calls
// if it is non-nil.
type fakeFetcher struct {
	mu       sync.Mutex
	areas    []Area
	devices  []Device
	entities []Entity
	err      error
	calls    chan struct{}
}

func (f *fakeFetcher) setError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeFetcher) Areas(ctx context.Context) ([]Area, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.err != nil {
		f.notify()
		return nil, f.err
	}
	return f.areas, nil
}

func (f *fakeFetcher) Devices(_ context.Context) ([]Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.devices, nil
}

func (f *fakeFetcher) Entities(_ context.Context) ([]Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notify()
	return f.entities, nil
}

func (f *fakeFetcher) notify() {
	if f.calls != nil {
		f.calls <- struct{}{}
	}
}

var errFetch = errors.New("registry unavailable")

func livingRoomFetcher() *fakeFetcher {
	return &fakeFetcher{
		areas: []Area{{ID: "living_room", Name: "Living Room"}},
		devices: []Device{
			{ID: "dev1", Name: "Living Room Sensor", AreaID: "living_room"},
			{ID: "dev2", Name: "Hall Switch"},
			{ID: "dev3", Name: "Moved Sensor", AreaID: "demolished"},
		},
		entities: []Entity{
			{EntityID: "sensor.temp", Name: "Temperature", DeviceID: "dev1"},
			{EntityID: "switch.hall", OriginalName: "Hall", DeviceID: "dev2"},
			{EntityID: "sensor.orphan", DeviceID: "gone"},
			{EntityID: "sensor.deviceless"},
			{EntityID: "sensor.moved", DeviceID: "dev3"},
		},
	}
}
