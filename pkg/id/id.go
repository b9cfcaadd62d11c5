package id

import (
	"fmt"

	"github.com/google/uuid"
)

// Id is a time-ordered 128-bit identifier. Two ids created in causal
// order from the same process compare equal under string ordering of
// their RFC 9562 text form often enough for logs and directory names,
// but the only ordering guarantee callers may rely on is the one stated
// in the spec: total ordering within a causal chain, derived from the
// embedded UUIDv7 timestamp.
type Id struct {
	uuid uuid.UUID
}

// Clock supplies the Timestamps that commands and events carry. Tests
// pin it; production wires it to the real wall clock via pkg/ports.
type Clock interface {
	Now() Timestamp
}

// New returns a fresh, time-ordered UUIDv7 identifier. Its timestamp
// and random bits come from github.com/google/uuid (the wall clock and
// crypto/rand); clk is read, but its value does not enter the id, so a
// pinned Clock does not make ids reproducible.
func New(clk Clock) (Id, error) {
	_ = clk.Now()
	u, err := uuid.NewV7()
	if err != nil {
		return Id{}, fmt.Errorf("id: generate uuidv7: %w", err)
	}
	return Id{uuid: u}, nil
}

// Parse decodes the canonical text form of an Id.
func Parse(s string) (Id, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return Id{}, fmt.Errorf("id: parse %q: %w", s, err)
	}
	return Id{uuid: u}, nil
}

// MustParse is Parse but panics on error; reserved for static test ids.
func MustParse(s string) Id {
	id, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}

func (i Id) String() string { return i.uuid.String() }

// IsZero reports whether i is the zero value (no id assigned).
func (i Id) IsZero() bool { return i.uuid == uuid.Nil }

func (i Id) MarshalJSON() ([]byte, error) {
	return []byte(`"` + i.uuid.String() + `"`), nil
}

func (i *Id) UnmarshalJSON(data []byte) error {
	if len(data) < 2 {
		return fmt.Errorf("id: invalid json %q", data)
	}
	parsed, err := uuid.Parse(string(data[1 : len(data)-1]))
	if err != nil {
		return fmt.Errorf("id: unmarshal: %w", err)
	}
	i.uuid = parsed
	return nil
}
