package config

import (
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// CustomHooks replaces viper's default decode hook, so the duration and slice hooks it would otherwise apply are
// composed back in here. extra hooks run after them, in order.
func CustomHooks(extra ...mapstructure.DecodeHookFunc) []viper.DecoderConfigOption {
	hooks := []mapstructure.DecodeHookFunc{
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	}
	hooks = append(hooks, extra...)
	return []viper.DecoderConfigOption{
		viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(hooks...)),
	}
}
