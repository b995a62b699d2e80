// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import "errors"

var (
	// ErrUnknownConfigField is returned when the YAML file names a field
	// AppConfig does not have.
	ErrUnknownConfigField = errors.New("unknown config field")
	// ErrInvalidConfig wraps every validation failure.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrUnsupportedFormat is returned for config files that are not YAML.
	ErrUnsupportedFormat = errors.New("unsupported config format")
)

// FieldError names one invalid setting.
type FieldError struct {
	Field   string
	Message string
	Value   any
}

func (e FieldError) Error() string {
	if e.Value == nil {
		return e.Field + ": " + e.Message
	}
	return e.Field + ": " + e.Message + " (got " + formatValue(e.Value) + ")"
}

func (e FieldError) Unwrap() error { return ErrInvalidConfig }
