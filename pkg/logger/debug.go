//go:build debug
// +build debug

package logger

import "github.com/rs/zerolog"

// defaultLevel is used when no level is configured. Builds with the debug
// tag log every pipeline transition.
const defaultLevel = zerolog.DebugLevel
