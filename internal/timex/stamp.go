package timex

import (
	"encoding/json"
	"fmt"
	"time"
)

// StampLayout is the local, zone-less ISO-8601 form used by the existing
// documents, e.g. 2025-01-31T17:04:05.123456.
const StampLayout = "2006-01-02T15:04:05.000000"

// DateLayout is the calendar-date form used for quota dates.
const DateLayout = "2006-01-02"

var parseLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Stamp is a timestamp that round-trips through the zone-less layout.
type Stamp struct {
	time.Time
}

// NewStamp truncates t to microseconds, the precision stored on disk.
func NewStamp(t time.Time) Stamp {
	return Stamp{Time: t.Truncate(time.Microsecond)}
}

// Format renders t in StampLayout using local time.
func Format(t time.Time) string {
	return t.Local().Format(StampLayout)
}

// Date renders the calendar date of t.
func Date(t time.Time) string {
	return t.Local().Format(DateLayout)
}

// Parse accepts every timestamp layout seen in stored documents.
func Parse(s string) (time.Time, error) {
	for _, layout := range parseLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

func (s Stamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(Format(s.Time))
}

func (s *Stamp) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	t, err := Parse(raw)
	if err != nil {
		return err
	}
	s.Time = t
	return nil
}
