// Package metadata holds the Home Assistant registry data used to enrich events: which device owns an entity
// and which area the device is in.
package metadata

import "context"

// Area is an entry of the Home Assistant area registry.
type Area struct {
	ID   string `json:"area_id"`
	Name string `json:"name"`
}

// Device is an entry of the Home Assistant device registry. AreaID is empty if the device has no area.
type Device struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	AreaID string `json:"area_id"`
}

// Entity is an entry of the Home Assistant entity registry. DeviceID is empty if the entity has no device.
type Entity struct {
	EntityID     string `json:"entity_id"`
	Name         string `json:"name"`
	OriginalName string `json:"original_name"`
	DeviceID     string `json:"device_id"`
}

// DisplayName is the user-assigned name, falling back to the integration-supplied one.
func (e Entity) DisplayName() string {
	if e.Name != "" {
		return e.Name
	}
	return e.OriginalName
}

// Fetcher retrieves the three registries. Implementations may fail with transport or application errors.
type Fetcher interface {
	Areas(ctx context.Context) ([]Area, error)
	Devices(ctx context.Context) ([]Device, error)
	Entities(ctx context.Context) ([]Entity, error)
}
