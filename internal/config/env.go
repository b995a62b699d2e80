// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ManuGH/camcore/internal/log"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CAMCORE_"

// parseEnv looks key up and converts it with parse. Unset or blank keys
// return def; unparseable values are logged and also return def.
func parseEnv[T any](key string, def T, kind string, parse func(string) (T, error)) T {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	value := strings.TrimSpace(raw)
	if value == "" && kind != "string" {
		return def
	}
	logger := log.WithComponent("config")
	parsed, err := parse(value)
	if err != nil {
		logger.Warn().
			Err(err).
			Str("key", key).
			Str("value", raw).
			Str("default", fmt.Sprint(def)).
			Msgf("invalid %s in environment variable, using default", kind)
		return def
	}
	logger.Debug().
		Str("key", key).
		Str("value", fmt.Sprint(parsed)).
		Str("source", "environment").
		Msg("using environment variable")
	return parsed
}

// ParseString reads a string from the environment, falling back to
// defaultValue when the key is unset.
func ParseString(key, defaultValue string) string {
	return parseEnv(key, defaultValue, "string", func(s string) (string, error) { return s, nil })
}

func ParseInt(key string, defaultValue int) int {
	return parseEnv(key, defaultValue, "integer", strconv.Atoi)
}

func ParseFloat(key string, defaultValue float64) float64 {
	return parseEnv(key, defaultValue, "float", func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	})
}

// ParseDuration reads a Go duration ("250ms", "5s") from the environment.
func ParseDuration(key string, defaultValue time.Duration) time.Duration {
	return parseEnv(key, defaultValue, "duration", time.ParseDuration)
}

// ParseBool accepts strconv.ParseBool forms plus yes/no and on/off.
func ParseBool(key string, defaultValue bool) bool {
	return parseEnv(key, defaultValue, "boolean", func(s string) (bool, error) {
		switch strings.ToLower(s) {
		case "yes", "on":
			return true, nil
		case "no", "off":
			return false, nil
		}
		return strconv.ParseBool(s)
	})
}
