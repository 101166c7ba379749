package scheduler

import (
	"strconv"
	"strings"
	"time"
)

// MinInterval is the shortest report period accepted.
const MinInterval = time.Minute

// ParseInterval reads a report period. Go durations ("30m", "1h30m") are
// accepted as is; "d" and "w" count whole days and weeks ("1d", "2w").
func ParseInterval(raw string) (time.Duration, bool) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return 0, false
	}
	var unit time.Duration
	switch raw[len(raw)-1] {
	case 'd':
		unit = 24 * time.Hour
	case 'w':
		unit = 7 * 24 * time.Hour
	}
	var d time.Duration
	if unit > 0 {
		n, err := strconv.Atoi(raw[:len(raw)-1])
		if err != nil || n <= 0 {
			return 0, false
		}
		d = time.Duration(n) * unit
	} else {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return 0, false
		}
		d = parsed
	}
	if d < MinInterval {
		return 0, false
	}
	return d, true
}
