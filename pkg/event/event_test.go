package event

import (
	"testing"

	"github.com/cimkeys/cim-keys/pkg/id"
)

func TestCanonicalizeSortsKeysAndDropsWhitespace(t *testing.T) {
	in := []byte(`{"b": 2, "a": {"z": 1, "y": 2}, "c": [3, 1, 2]}`)

	got, err := Canonicalize(in)
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}

	want := `{"a":{"y":2,"z":1},"b":2,"c":[3,1,2]}`
	if string(got) != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestCanonicalizePreservesIntegerText(t *testing.T) {
	in := []byte(`{"n": 9007199254740993}`)

	got, err := Canonicalize(in)
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}

	want := `{"n":9007199254740993}`
	if string(got) != want {
		t.Fatalf("got %s, want %s (exponent or precision loss)", got, want)
	}
}

func TestDomainEventMarshalJSONIsDeterministic(t *testing.T) {
	ev := DomainEvent{
		Envelope: Envelope{
			EventID:       id.MustParse("018f1e3a-0000-7000-8000-000000000001"),
			AggregateID:   id.MustParse("018f1e3a-0000-7000-8000-000000000002"),
			CorrelationID: id.MustParse("018f1e3a-0000-7000-8000-000000000003"),
			CausationID:   id.MustParse("018f1e3a-0000-7000-8000-000000000003"),
			SchemaVersion: 1,
		},
		Kind: KindKeyGenerated,
		Payload: KeyGenerated{
			KeyID:       id.MustParse("018f1e3a-0000-7000-8000-000000000004"),
			Algorithm:   "ed25519",
			Fingerprint: "deadbeef",
		},
	}

	a, err := ev.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	b, err := ev.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	if string(a) != string(b) {
		t.Fatalf("non-deterministic marshal: %s vs %s", a, b)
	}

	for _, c := range a {
		if c == ' ' || c == '\n' || c == '\t' {
			t.Fatalf("expected no whitespace in canonical form, got %s", a)
		}
	}
}

func TestBrokerPublishSubscribe(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	want := DomainEvent{Kind: KindManifestSealed, Payload: ManifestSealed{EventCount: 3}}
	b.Publish(want)

	got := <-sub
	if got.Kind != want.Kind {
		t.Fatalf("got kind %q, want %q", got.Kind, want.Kind)
	}
}
