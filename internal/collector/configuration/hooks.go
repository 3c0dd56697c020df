package configuration

import (
	"encoding/json"
	"reflect"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"

	"github.com/mcronce/hass-event-collector/internal/collector/filter"
)

// DecodeHooks are the hooks CollectorConfiguration needs on top of the common ones.
func DecodeHooks() []mapstructure.DecodeHookFunc {
	return []mapstructure.DecodeHookFunc{
		DefaultFilterHookFunc(),
		EntityFilterHookFunc(),
	}
}

func DefaultFilterHookFunc() mapstructure.DecodeHookFuncType {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		if f.Kind() != reflect.String || t != reflect.TypeOf(filter.Allow) {
			return data, nil
		}
		return filter.ParseDefaultFilter(data.(string))
	}
}

// EntityFilterHookFunc accepts either a JSON-encoded string (as supplied through the environment) or a list of
// rule maps written directly in a config file.
func EntityFilterHookFunc() mapstructure.DecodeHookFuncType {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		if t != reflect.TypeOf(filter.EntityFilter{}) {
			return data, nil
		}
		switch f.Kind() {
		case reflect.String:
			return filter.Parse(data.(string))
		case reflect.Slice:
			raw, err := json.Marshal(data)
			if err != nil {
				return nil, errors.Wrap(err, "re-encoding entity filter")
			}
			return filter.Parse(string(raw))
		default:
			return data, nil
		}
	}
}
