package metadata

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generation(n int) *Snapshot {
	tag := fmt.Sprintf("gen-%d", n)
	return NewSnapshot(
		[]Area{{ID: "area", Name: tag}},
		[]Device{{ID: "device", Name: tag, AreaID: "area"}},
		[]Entity{
			{EntityID: "sensor.a", Name: tag, DeviceID: "device"},
			{EntityID: "sensor.b", Name: tag, DeviceID: "device"},
		},
	)
}

func TestRegistry_Publish(t *testing.T) {
	r := NewRegistry(NewSnapshot(nil, nil, nil))
	_, ok := r.Find("sensor.a")
	assert.False(t, ok)

	r.Publish(generation(1))
	result, ok := r.Find("sensor.a")
	require.True(t, ok)
	assert.Equal(t, "gen-1", result.Device.Name)
}

func TestRegistry_SnapshotIsStableAcrossPublish(t *testing.T) {
	r := NewRegistry(generation(1))
	held := r.Snapshot()
	r.Publish(generation(2))

	result, ok := held.Find("sensor.a")
	require.True(t, ok)
	assert.Equal(t, "gen-1", result.Device.Name)

	result, ok = r.Find("sensor.a")
	require.True(t, ok)
	assert.Equal(t, "gen-2", result.Device.Name)
}

// Every lookup must see one whole generation: entity, device and area names always agree.
func TestRegistry_ConcurrentLookupsDuringRefresh(t *testing.T) {
	const (
		readers     = 8
		lookups     = 2000
		generations = 500
	)
	r := NewRegistry(generation(0))

	wg := sync.WaitGroup{}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= generations; i++ {
			r.Publish(generation(i))
		}
	}()

	mismatches := make(chan string, readers*lookups)
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < lookups; j++ {
				result, ok := r.Find("sensor.b")
				if !ok || result.Area == nil {
					mismatches <- "missing"
					continue
				}
				if result.Entity.Name != result.Device.Name || result.Device.Name != result.Area.Name {
					mismatches <- fmt.Sprintf("%s/%s/%s", result.Entity.Name, result.Device.Name, result.Area.Name)
				}
			}
		}()
	}
	wg.Wait()
	close(mismatches)

	for m := range mismatches {
		t.Errorf("lookup observed a mixed snapshot: %s", m)
	}
	result, ok := r.Find("sensor.a")
	require.True(t, ok)
	assert.Equal(t, fmt.Sprintf("gen-%d", generations), result.Device.Name)
}
