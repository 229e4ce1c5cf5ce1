package billing

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Upstream systems emit dates in more than one shape: RFC3339 timestamps,
// bare calendar dates, and unix epochs in seconds or milliseconds. The
// helpers here normalize all of them; values that cannot be interpreted are
// treated as absent rather than rejected, so a malformed date never fails a
// request but may be excluded from day-based aggregation.

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDate interprets v as a point in time. ok is false when v has no
// usable interpretation.
func ParseDate(v interface{}) (time.Time, bool) {
	switch d := v.(type) {
	case time.Time:
		if d.IsZero() {
			return time.Time{}, false
		}
		return d, true
	case string:
		s := strings.TrimSpace(d)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return fromEpoch(n), true
		}
		return time.Time{}, false
	case float64:
		if d == 0 {
			return time.Time{}, false
		}
		return fromEpoch(int64(d)), true
	case int64:
		if d == 0 {
			return time.Time{}, false
		}
		return fromEpoch(d), true
	case json.Number:
		n, err := d.Int64()
		if err != nil || n == 0 {
			return time.Time{}, false
		}
		return fromEpoch(n), true
	default:
		return time.Time{}, false
	}
}

// fromEpoch treats magnitudes beyond year-9999-in-seconds as milliseconds.
func fromEpoch(n int64) time.Time {
	if n > 1e12 || n < -1e12 {
		return time.UnixMilli(n).UTC()
	}
	return time.Unix(n, 0).UTC()
}

// DayKey normalizes t to its YYYY-MM-DD calendar day in UTC. Zero times
// yield "" so they never match a real day.
func DayKey(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}

// DateValue is a request-payload date that accepts every representation
// ParseDate understands. Unparseable input leaves Valid false instead of
// failing the bind.
type DateValue struct {
	Time  time.Time
	Valid bool
}

func (d *DateValue) UnmarshalJSON(b []byte) error {
	d.Time, d.Valid = time.Time{}, false
	var raw interface{}
	dec := json.NewDecoder(strings.NewReader(string(b)))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil
	}
	d.Time, d.Valid = ParseDate(raw)
	return nil
}

func (d DateValue) MarshalJSON() ([]byte, error) {
	if !d.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(d.Time)
}
