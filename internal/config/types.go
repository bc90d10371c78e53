package config

import (
	"fmt"
	"strconv"
	"time"
)

// Duration is a non-negative time.Duration written in Go duration syntax
// ("90s", "1m30s"). A quoted bare number, as every BERTRANK_ variable is,
// counts seconds.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler; koanf decodes
// through it.
func (d *Duration) UnmarshalText(text []byte) error {
	s := string(text)
	parsed, err := time.ParseDuration(s)
	if err != nil {
		secs, numErr := strconv.ParseFloat(s, 64)
		if numErr != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		parsed = time.Duration(secs * float64(time.Second))
	}
	if parsed < 0 {
		return fmt.Errorf("duration cannot be negative: %s", s)
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the value as a time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
