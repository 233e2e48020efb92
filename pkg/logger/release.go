//go:build !debug
// +build !debug

package logger

import "github.com/rs/zerolog"

const defaultLevel = zerolog.InfoLevel
