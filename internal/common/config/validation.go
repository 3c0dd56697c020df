package config

import (
	"strings"

	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"
)

type Config interface {
	Validate() error
}

// Validate checks the validate struct tags of config.
func Validate(config interface{}) error {
	return validator.New().Struct(config)
}

// LogValidationErrors logs one line per failed field. Errors that did not come from the validator are logged as
// they are.
func LogValidationErrors(err error) {
	if err == nil {
		return
	}
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		log.Errorf("ConfigError: %v", err)
		return
	}
	for _, fieldErr := range validationErrors {
		field := stripPrefix(fieldErr.Namespace())
		switch fieldErr.Tag() {
		case "required":
			log.Errorf("ConfigError: %s is required but was not found", field)
		case "required_with":
			log.Errorf("ConfigError: %s is required when %s is set", field, fieldErr.Param())
		case "oneof":
			log.Errorf("ConfigError: %s is %q; must be one of %s", field, fieldErr.Value(), fieldErr.Param())
		case "min", "max":
			log.Errorf("ConfigError: %s is %v; %s is %s", field, fieldErr.Value(), fieldErr.Tag(), fieldErr.Param())
		default:
			log.Errorf("ConfigError: %s has invalid value %v: %s", field, fieldErr.Value(), fieldErr.Tag())
		}
	}
}

// stripPrefix drops the root struct name from a validator namespace.
func stripPrefix(namespace string) string {
	if _, rest, found := strings.Cut(namespace, "."); found {
		return rest
	}
	return namespace
}
