package id

import "time"

// Timestamp is a UTC instant with millisecond precision, per spec §6's
// Clock port contract. It is a distinct type (not a bare time.Time)
// so that truncation to millisecond precision happens exactly once,
// at the port boundary, rather than inconsistently at every call site.
type Timestamp struct {
	t time.Time
}

// NewTimestamp truncates t to millisecond precision and converts to UTC.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{t: t.UTC().Truncate(time.Millisecond)}
}

func (ts Timestamp) Time() time.Time { return ts.t }

func (ts Timestamp) IsZero() bool { return ts.t.IsZero() }

func (ts Timestamp) Before(other Timestamp) bool { return ts.t.Before(other.t) }

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + ts.t.Format(time.RFC3339Nano) + `"`), nil
}

func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	if len(data) < 2 {
		ts.t = time.Time{}
		return nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, string(data[1:len(data)-1]))
	if err != nil {
		return err
	}
	ts.t = parsed
	return nil
}
