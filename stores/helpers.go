package stores

import (
	"time"

	"github.com/oarkflow/date"
)

func parseFlexibleTime(s string) (time.Time, error) {
	return date.Parse(s)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func sqlNullTimeOrNil(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

// scanTime normalizes the driver-dependent representations a timestamp
// column can come back as. A NULL or unparsable value yields the zero time.
func scanTime(raw interface{}) time.Time {
	switch v := raw.(type) {
	case time.Time:
		return v
	case string:
		if t, err := parseFlexibleTime(v); err == nil {
			return t
		}
	case []byte:
		if t, err := parseFlexibleTime(string(v)); err == nil {
			return t
		}
	case int64:
		if v > 0 {
			return time.Unix(v, 0).UTC()
		}
	}
	return time.Time{}
}
