package event

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/cimkeys/cim-keys/pkg/id"
	"github.com/cimkeys/cim-keys/pkg/types"
)

// AggregateKind names one of the eleven aggregates an event belongs to
// (spec §4.5's per-aggregate enum level of the three-level wrapping).
type AggregateKind string

const (
	AggregatePerson        AggregateKind = "person"
	AggregateOrganization  AggregateKind = "organization"
	AggregateLocation      AggregateKind = "location"
	AggregateCertificate   AggregateKind = "certificate"
	AggregateKey           AggregateKind = "key"
	AggregateYubiKey       AggregateKind = "yubikey"
	AggregateNatsOperator  AggregateKind = "nats_operator"
	AggregateNatsAccount   AggregateKind = "nats_account"
	AggregateNatsUser      AggregateKind = "nats_user"
	AggregateRelationship  AggregateKind = "relationship"
	AggregateManifest      AggregateKind = "manifest"
)

// Kind names an inner event variant (spec §4.5's `PersonCreated`,
// `CertificateGenerated`, … level).
type Kind string

const (
	KindStateTransitioned    Kind = "state_transitioned"
	KindPersonCreated        Kind = "person_created"
	KindOrganizationCreated  Kind = "organization_created"
	KindLocationCreated      Kind = "location_created"
	KindKeyGenerated         Kind = "key_generated"
	KindCertificateGenerated Kind = "certificate_generated"
	KindYubiKeyProvisioned   Kind = "yubikey_provisioned"
	KindKeyBoundToSlot       Kind = "key_bound_to_slot"
	KindNatsJwtSigned        Kind = "nats_jwt_signed"
	KindRelationshipCreated  Kind = "relationship_created"
	KindManifestSealed       Kind = "manifest_sealed"
	KindManifestExported     Kind = "manifest_exported"
)

// StateTransitioned is a generic inner event recording one FSM
// transition; the projection folds it into the named aggregate's
// State. No handler in pkg/command emits it: the transitions they make
// travel in domain-specific payloads (ManifestSealed, ManifestExported,
// KeyBoundToSlot).
type StateTransitioned struct {
	Aggregate AggregateKind `json:"aggregate"`
	From      string        `json:"from"`
	To        string        `json:"to"`
}

// PersonCreated carries a newly created Person's fields.
type PersonCreated struct {
	PersonID id.Id  `json:"person_id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	OrgID    id.Id  `json:"org_id"`
}

// OrganizationCreated carries a newly created Organization's fields.
type OrganizationCreated struct {
	OrgID id.Id  `json:"org_id"`
	Name  string `json:"name"`
}

// LocationCreated carries a newly created Location's fields.
type LocationCreated struct {
	LocationID id.Id  `json:"location_id"`
	Name       string `json:"name"`
	Address    string `json:"address"`
}

// KeyGenerated carries a newly derived key pair's public material.
type KeyGenerated struct {
	KeyID       id.Id              `json:"key_id"`
	Algorithm   types.KeyAlgorithm `json:"algorithm"`
	PublicBytes []byte             `json:"public_bytes"`
	Fingerprint string             `json:"fingerprint"`
	OwnerID     id.Id              `json:"owner_id"`
}

// CertificateGenerated carries an issued certificate's record.
type CertificateGenerated struct {
	CertID       id.Id    `json:"cert_id"`
	Subject      string   `json:"subject"`
	IssuerID     id.Id    `json:"issuer_id"`
	IsCA         bool     `json:"is_ca"`
	NotBefore    string   `json:"not_before"`
	NotAfter     string   `json:"not_after"`
	SerialHex    string   `json:"serial_hex"`
	KeyUsage     []string `json:"key_usage"`
	ExtKeyUsage  []string `json:"ext_key_usage"`
	SAN          []string `json:"san"`
	PEM          []byte   `json:"pem"`
	Fingerprint  string   `json:"fingerprint"`
	SigningKeyID id.Id    `json:"signing_key_id"`
}

// YubiKeyProvisioned marks a YubiKey as bound to an owner.
type YubiKeyProvisioned struct {
	YubiKeyID id.Id  `json:"yubikey_id"`
	Serial    string `json:"serial"`
	OwnerID   id.Id  `json:"owner_id"`
}

// KeyBoundToSlot records a PIV slot assignment on a YubiKey.
type KeyBoundToSlot struct {
	YubiKeyID id.Id          `json:"yubikey_id"`
	Slot      types.PIVSlot  `json:"slot"`
	KeyID     id.Id          `json:"key_id"`
}

// NatsJwtSigned carries a signed NATS Operator/Account/User JWT.
type NatsJwtSigned struct {
	EntityID   id.Id  `json:"entity_id"`
	Role       string `json:"role"`
	Name       string `json:"name"`
	KeyID      id.Id  `json:"key_id"`
	PublicNkey string `json:"public_nkey"`
	JWT        string `json:"jwt"`
	IssuerID   id.Id  `json:"issuer_id"`
}

// RelationshipCreated records a new directed edge between two entities.
type RelationshipCreated struct {
	RelationshipID id.Id                  `json:"relationship_id"`
	Kind           types.RelationshipKind `json:"kind"`
	FromID         id.Id                  `json:"from_id"`
	ToID           id.Id                  `json:"to_id"`
}

// ManifestSealed marks the manifest aggregate sealed with an event
// count snapshot.
type ManifestSealed struct {
	ManifestID id.Id `json:"manifest_id"`
	EventCount int   `json:"event_count"`
}

// ManifestExported marks the manifest aggregate exported.
type ManifestExported struct {
	ManifestID id.Id `json:"manifest_id"`
}

// Envelope is the correlation metadata attached to every event
// (spec §3, §4.5).
type Envelope struct {
	EventID       id.Id
	AggregateID   id.Id
	CorrelationID id.Id
	CausationID   id.Id
	Timestamp     id.Timestamp
	SchemaVersion int
}

// DomainEvent is the top-level discriminated union (spec §4.5's third
// wrapping level): an envelope, a Kind discriminator, and the typed
// inner payload for that kind.
type DomainEvent struct {
	Envelope Envelope
	Kind     Kind
	Payload  any
}

// wireEvent mirrors spec §4.5's field order exactly; field order here
// only documents intent; the resulting keys are always re-sorted by
// Canonicalize.
type wireEvent struct {
	EventID       id.Id         `json:"event_id"`
	Kind          Kind          `json:"kind"`
	Payload       any           `json:"payload"`
	AggregateID   id.Id         `json:"aggregate_id"`
	CorrelationID id.Id         `json:"correlation_id"`
	CausationID   id.Id         `json:"causation_id"`
	Timestamp     id.Timestamp  `json:"timestamp"`
	SchemaVersion int           `json:"schema_version"`
}

// MarshalJSON always produces canonical JSON: sorted keys, no
// whitespace, and integers preserved verbatim (no exponent rewriting).
func (e DomainEvent) MarshalJSON() ([]byte, error) {
	raw, err := json.Marshal(wireEvent{
		EventID:       e.Envelope.EventID,
		Kind:          e.Kind,
		Payload:       e.Payload,
		AggregateID:   e.Envelope.AggregateID,
		CorrelationID: e.Envelope.CorrelationID,
		CausationID:   e.Envelope.CausationID,
		Timestamp:     e.Envelope.Timestamp,
		SchemaVersion: e.Envelope.SchemaVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("event: marshal: %w", err)
	}
	return Canonicalize(raw)
}

// wireEventIn mirrors wireEvent but keeps Payload as a raw message, so
// it can be decoded into the concrete type Kind names only after Kind
// itself has been read off the wire.
type wireEventIn struct {
	EventID       id.Id           `json:"event_id"`
	Kind          Kind            `json:"kind"`
	Payload       json.RawMessage `json:"payload"`
	AggregateID   id.Id           `json:"aggregate_id"`
	CorrelationID id.Id           `json:"correlation_id"`
	CausationID   id.Id           `json:"causation_id"`
	Timestamp     id.Timestamp    `json:"timestamp"`
	SchemaVersion int             `json:"schema_version"`
}

// UnmarshalJSON reconstructs a typed Payload by dispatching on Kind,
// the inverse of MarshalJSON's wireEvent encoding. This is what
// replay (pkg/manager reading events.jsonl back in) needs to hand
// pkg/projection.Projection.Apply a Payload it can type-switch on.
func (e *DomainEvent) UnmarshalJSON(data []byte) error {
	var wire wireEventIn
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("event: unmarshal envelope: %w", err)
	}

	payload, err := decodePayload(wire.Kind, wire.Payload)
	if err != nil {
		return err
	}

	e.Envelope = Envelope{
		EventID:       wire.EventID,
		AggregateID:   wire.AggregateID,
		CorrelationID: wire.CorrelationID,
		CausationID:   wire.CausationID,
		Timestamp:     wire.Timestamp,
		SchemaVersion: wire.SchemaVersion,
	}
	e.Kind = wire.Kind
	e.Payload = payload
	return nil
}

// decodePayload unmarshals raw into the concrete struct kind names,
// returning it by value so callers get back exactly the type
// Projection.Apply's switch matches on.
func decodePayload(kind Kind, raw json.RawMessage) (any, error) {
	switch kind {
	case KindStateTransitioned:
		var p StateTransitioned
		err := unmarshalPayload(kind, raw, &p)
		return p, err
	case KindPersonCreated:
		var p PersonCreated
		err := unmarshalPayload(kind, raw, &p)
		return p, err
	case KindOrganizationCreated:
		var p OrganizationCreated
		err := unmarshalPayload(kind, raw, &p)
		return p, err
	case KindLocationCreated:
		var p LocationCreated
		err := unmarshalPayload(kind, raw, &p)
		return p, err
	case KindKeyGenerated:
		var p KeyGenerated
		err := unmarshalPayload(kind, raw, &p)
		return p, err
	case KindCertificateGenerated:
		var p CertificateGenerated
		err := unmarshalPayload(kind, raw, &p)
		return p, err
	case KindYubiKeyProvisioned:
		var p YubiKeyProvisioned
		err := unmarshalPayload(kind, raw, &p)
		return p, err
	case KindKeyBoundToSlot:
		var p KeyBoundToSlot
		err := unmarshalPayload(kind, raw, &p)
		return p, err
	case KindNatsJwtSigned:
		var p NatsJwtSigned
		err := unmarshalPayload(kind, raw, &p)
		return p, err
	case KindRelationshipCreated:
		var p RelationshipCreated
		err := unmarshalPayload(kind, raw, &p)
		return p, err
	case KindManifestSealed:
		var p ManifestSealed
		err := unmarshalPayload(kind, raw, &p)
		return p, err
	case KindManifestExported:
		var p ManifestExported
		err := unmarshalPayload(kind, raw, &p)
		return p, err
	default:
		return nil, fmt.Errorf("event: unknown kind %q", kind)
	}
}

func unmarshalPayload(kind Kind, raw json.RawMessage, dest any) error {
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("event: unmarshal payload for %s: %w", kind, err)
	}
	return nil
}

// Canonicalize re-serializes JSON data with recursively sorted object
// keys, no whitespace, and numbers preserved in their original textual
// form (via json.Number, so no exponent rewriting of integers). This
// is what spec §4.5 requires for byte-deterministic event replay; no
// canonical-JSON library appears anywhere in the retrieval pack, and
// the transform is a few lines over encoding/json, so it is hand
// written rather than imported.
func Canonicalize(data []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("event: canonicalize decode: %w", err)
	}

	out, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("event: canonicalize encode: %w", err)
	}
	return out, nil
}

// Subscriber is a channel that receives published events, for a
// process-local live view (e.g. a CLI progress indicator) of the
// event stream being folded into the projection.
type Subscriber chan DomainEvent

// Broker distributes published events to subscribers. It does not
// persist anything; pkg/projection owns durability.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[Subscriber]bool
	eventCh     chan DomainEvent
	stopCh      chan struct{}
}

// NewBroker creates a new, unstarted event broker.
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]bool),
		eventCh:     make(chan DomainEvent, 256),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's distribution loop.
func (b *Broker) Start() { go b.run() }

// Stop halts distribution. Safe to call at most once.
func (b *Broker) Stop() { close(b.stopCh) }

// Subscribe registers a new subscription.
func (b *Broker) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 64)
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subscribers, sub)
	close(sub)
}

// Publish hands ev to the broker's distribution loop.
func (b *Broker) Publish(ev DomainEvent) {
	select {
	case b.eventCh <- ev:
	case <-b.stopCh:
	}
}

func (b *Broker) run() {
	for {
		select {
		case ev := <-b.eventCh:
			b.broadcast(ev)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(ev DomainEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		select {
		case sub <- ev:
		default:
			// subscriber buffer full, drop: the broker is a live
			// progress view, not a delivery guarantee.
		}
	}
}
