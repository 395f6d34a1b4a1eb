package transcript

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// parseTime converts a TTML time expression to a duration.
//
// Accepted forms: "12.5", "12.5s", "250ms", "1.5m", "2h", "1:02.5" and "1:02:03.5".
func parseTime(raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("empty time expression")
	}

	if strings.Contains(s, ":") {
		return parseClockTime(s)
	}

	unit := time.Second
	switch {
	case strings.HasSuffix(s, "ms"):
		unit, s = time.Millisecond, strings.TrimSuffix(s, "ms")
	case strings.HasSuffix(s, "h"):
		unit, s = time.Hour, strings.TrimSuffix(s, "h")
	case strings.HasSuffix(s, "m"):
		unit, s = time.Minute, strings.TrimSuffix(s, "m")
	case strings.HasSuffix(s, "s"):
		s = strings.TrimSuffix(s, "s")
	}

	v, err := parseNonNegative(s)
	if err != nil {
		return 0, fmt.Errorf("time %q: %w", raw, err)
	}
	return toDuration(v, unit), nil
}

func parseClockTime(s string) (time.Duration, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("clock time %q: want m:ss or h:mm:ss", s)
	}

	var total float64
	for _, p := range parts {
		v, err := parseNonNegative(p)
		if err != nil {
			return 0, fmt.Errorf("clock time %q: %w", s, err)
		}
		total = total*60 + v
	}
	return toDuration(total, time.Second), nil
}

func parseNonNegative(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, fmt.Errorf("value %q out of range", s)
	}
	return v, nil
}

func toDuration(v float64, unit time.Duration) time.Duration {
	return time.Duration(math.Round(v * float64(unit)))
}
