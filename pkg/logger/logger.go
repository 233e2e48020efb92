package logger

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/ashpect/cacheproxy/pkg/config"
)

// New builds the process logger. Output goes to out, or stdout when out is
// nil. An empty level uses the build's default level.
func New(cfg config.LogCfg, out io.Writer) (zerolog.Logger, error) {
	if out == nil {
		out = os.Stdout
	}

	level := defaultLevel
	if cfg.Level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("log level %q: %w", cfg.Level, err)
		}
		level = parsed
	}

	if cfg.Console {
		out = zerolog.ConsoleWriter{Out: out}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}

// Component returns a child logger tagged with the component name.
func Component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}

// Preview renders a body for diagnostics: the text itself when it is valid
// UTF-8, otherwise a hex dump of its first bytes. Output is cut to max
// bytes of input.
func Preview(body []byte, max int) string {
	truncated := len(body) > max
	head := body
	if truncated {
		head = body[:max]
	}

	if utf8.Valid(body) {
		// do not split a multi-byte rune at the cut
		for len(head) > 0 && !utf8.Valid(head) {
			head = head[:len(head)-1]
		}
		if truncated {
			return string(head) + "..."
		}
		return string(head)
	}

	dump := fmt.Sprintf("non-UTF-8 body (%d bytes): %s", len(body), hex.EncodeToString(head))
	if truncated {
		dump += "..."
	}
	return dump
}
