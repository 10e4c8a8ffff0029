package schema

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// floatingLayouts are accepted for timestamps that carry no zone offset.
// The Gantt client treats those as wall-clock values, so they are written
// back without an offset.
var floatingLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

const floatingOutputLayout = "2006-01-02T15:04:05"

// Time is a task timestamp. Floating is true when the value was parsed
// without a zone offset.
type Time struct {
	time.Time
	Floating bool
}

// NewTime wraps t as an offset-aware timestamp.
func NewTime(t time.Time) Time {
	return Time{Time: t}
}

// ParseTime parses s as RFC 3339 or as one of the floating layouts.
func ParseTime(s string) (Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return Time{Time: t}, nil
	}
	for _, layout := range floatingLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Time{Time: t, Floating: true}, nil
		}
	}
	return Time{}, fmt.Errorf("unsupported timestamp %q", s)
}

// String formats the timestamp the way it is stored and transmitted.
func (t Time) String() string {
	if t.Floating {
		return t.Time.Format(floatingOutputLayout)
	}
	return t.Time.Format(time.RFC3339)
}

// Equal reports whether both timestamps format identically.
func (t Time) Equal(o Time) bool {
	return t.String() == o.String()
}

func (t Time) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Time) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	parsed, err := ParseTime(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// UnmarshalYAML lets seed files use plain scalars for dates.
func (t *Time) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseTime(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Value implements driver.Valuer; timestamps are stored as text.
func (t Time) Value() (driver.Value, error) {
	return t.String(), nil
}

// Scan implements sql.Scanner.
func (t *Time) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*t = Time{}
		return nil
	case string:
		parsed, err := ParseTime(v)
		if err != nil {
			return err
		}
		*t = parsed
		return nil
	case []byte:
		return t.Scan(string(v))
	case time.Time:
		*t = Time{Time: v}
		return nil
	default:
		return fmt.Errorf("cannot scan %T into schema.Time", src)
	}
}
