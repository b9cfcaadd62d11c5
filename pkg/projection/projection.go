// Package projection folds the event stream into an in-memory read
// model (View) that command handlers and the policy engine query, and
// durably persists it to disk (writer.go) with a disposable bbolt
// replay index (cache.go). It is grounded on the teacher's
// manager.WarrenFSM Apply/Snapshot/Restore triad, generalized from one
// flat store into eleven per-aggregate maps.
package projection

import (
	"fmt"
	"time"

	"github.com/cimkeys/cim-keys/pkg/event"
	"github.com/cimkeys/cim-keys/pkg/id"
	"github.com/cimkeys/cim-keys/pkg/types"
)

// View is the read-only state command handlers and policies consult.
// Its maps are shared with the owning Projection; callers must treat
// it as read-only — only Projection.Apply mutates state.
type View struct {
	People        map[id.Id]*types.Person
	Organizations map[id.Id]*types.Organization
	Locations     map[id.Id]*types.Location
	Certificates  map[id.Id]*types.Certificate
	Keys          map[id.Id]*types.Key
	YubiKeys      map[id.Id]*types.YubiKey
	NatsOperators map[id.Id]*types.NatsOperator
	NatsAccounts  map[id.Id]*types.NatsAccount
	NatsUsers     map[id.Id]*types.NatsUser
	Relationships map[id.Id]*types.Relationship
	Manifest      *types.Manifest
}

func newView(manifestID id.Id, trustDomain string) View {
	return View{
		People:        make(map[id.Id]*types.Person),
		Organizations: make(map[id.Id]*types.Organization),
		Locations:     make(map[id.Id]*types.Location),
		Certificates:  make(map[id.Id]*types.Certificate),
		Keys:          make(map[id.Id]*types.Key),
		YubiKeys:      make(map[id.Id]*types.YubiKey),
		NatsOperators: make(map[id.Id]*types.NatsOperator),
		NatsAccounts:  make(map[id.Id]*types.NatsAccount),
		NatsUsers:     make(map[id.Id]*types.NatsUser),
		Relationships: make(map[id.Id]*types.Relationship),
		Manifest: &types.Manifest{
			ID:            manifestID,
			State:         types.ManifestBuilding,
			TrustDomain:   trustDomain,
			SchemaVersion: 1,
		},
	}
}

// Projection owns the View and the idempotence ledger (spec §4.8: a
// total replay must yield the same state as incremental application,
// and re-applying an already-applied event is a no-op).
type Projection struct {
	view    View
	applied map[id.Id]bool
}

// New creates an empty Projection seeded with a Manifest aggregate in
// its Building state.
func New(manifestID id.Id, trustDomain string) *Projection {
	return &Projection{
		view:    newView(manifestID, trustDomain),
		applied: make(map[id.Id]bool),
	}
}

// View returns the current read model.
func (p *Projection) View() *View { return &p.view }

// Applied reports whether ev's EventID has already been folded.
func (p *Projection) Applied(eventID id.Id) bool { return p.applied[eventID] }

// Apply folds a single event into the view. It is idempotent: if
// ev.Envelope.EventID was already applied, Apply is a no-op and
// returns nil.
func (p *Projection) Apply(ev event.DomainEvent) error {
	if p.applied[ev.Envelope.EventID] {
		return nil
	}

	switch payload := ev.Payload.(type) {
	case event.StateTransitioned:
		if err := p.applyStateTransitioned(ev.Envelope.AggregateID, payload); err != nil {
			return err
		}
	case event.PersonCreated:
		p.view.People[payload.PersonID] = &types.Person{
			ID: payload.PersonID, State: types.PersonCreated,
			FullName: payload.FullName, Email: payload.Email, OrgID: payload.OrgID,
			SchemaVersion: 1,
		}
	case event.OrganizationCreated:
		p.view.Organizations[payload.OrgID] = &types.Organization{
			ID: payload.OrgID, State: types.OrganizationForming, Name: payload.Name,
			SchemaVersion: 1,
		}
	case event.LocationCreated:
		p.view.Locations[payload.LocationID] = &types.Location{
			ID: payload.LocationID, State: types.LocationAvailable,
			Name: payload.Name, Address: payload.Address, SchemaVersion: 1,
		}
	case event.KeyGenerated:
		p.view.Keys[payload.KeyID] = &types.Key{
			ID: payload.KeyID, State: types.KeyActive, Algorithm: payload.Algorithm,
			PublicBytes: payload.PublicBytes, Fingerprint: payload.Fingerprint,
			OwnerID: payload.OwnerID, SchemaVersion: 1,
		}
	case event.CertificateGenerated:
		notBefore, err := time.Parse(time.RFC3339Nano, payload.NotBefore)
		if err != nil {
			return fmt.Errorf("projection: parse not_before: %w", err)
		}
		notAfter, err := time.Parse(time.RFC3339Nano, payload.NotAfter)
		if err != nil {
			return fmt.Errorf("projection: parse not_after: %w", err)
		}
		p.view.Certificates[payload.CertID] = &types.Certificate{
			ID: payload.CertID, State: types.CertificateActive, Subject: payload.Subject,
			IssuerID: payload.IssuerID, NotBefore: notBefore, NotAfter: notAfter,
			SerialHex: payload.SerialHex, IsCA: payload.IsCA, KeyUsage: payload.KeyUsage,
			ExtKeyUsage: payload.ExtKeyUsage, SAN: payload.SAN, PEM: payload.PEM,
			Fingerprint: payload.Fingerprint, SigningKeyID: payload.SigningKeyID,
			SchemaVersion: 1,
		}
	case event.YubiKeyProvisioned:
		p.view.YubiKeys[payload.YubiKeyID] = &types.YubiKey{
			ID: payload.YubiKeyID, State: types.YubiKeyProvisioned, Serial: payload.Serial,
			OwnerID: payload.OwnerID, Slots: make(map[types.PIVSlot]*types.KeyBinding),
			SchemaVersion: 1,
		}
	case event.KeyBoundToSlot:
		yk, ok := p.view.YubiKeys[payload.YubiKeyID]
		if !ok {
			return fmt.Errorf("projection: key_bound_to_slot: unknown yubikey %s", payload.YubiKeyID)
		}
		key, ok := p.view.Keys[payload.KeyID]
		if !ok {
			return fmt.Errorf("projection: key_bound_to_slot: unknown key %s", payload.KeyID)
		}
		yk.Slots[payload.Slot] = &types.KeyBinding{KeyID: payload.KeyID, Algorithm: key.Algorithm}
		if yk.State == types.YubiKeyProvisioned {
			yk.State = types.YubiKeyActive
		}
	case event.NatsJwtSigned:
		if err := p.applyNatsJwtSigned(payload); err != nil {
			return err
		}
	case event.RelationshipCreated:
		p.view.Relationships[payload.RelationshipID] = &types.Relationship{
			ID: payload.RelationshipID, State: types.RelationshipProposed, Kind: payload.Kind,
			FromID: payload.FromID, ToID: payload.ToID, CreatedAt: ev.Envelope.Timestamp.Time(),
			SchemaVersion: 1,
		}
	case event.ManifestSealed:
		p.view.Manifest.State = types.ManifestSealed
		p.view.Manifest.EventCount = payload.EventCount
		p.view.Manifest.SealedAt = ev.Envelope.Timestamp.Time()
	case event.ManifestExported:
		p.view.Manifest.State = types.ManifestExported
	default:
		return fmt.Errorf("projection: unknown event payload type %T", ev.Payload)
	}

	p.applied[ev.Envelope.EventID] = true
	return nil
}

func (p *Projection) applyNatsJwtSigned(payload event.NatsJwtSigned) error {
	switch payload.Role {
	case "operator":
		p.view.NatsOperators[payload.EntityID] = &types.NatsOperator{
			ID: payload.EntityID, State: types.NatsOperatorActive, Name: payload.Name,
			KeyID: payload.KeyID, PublicNkey: payload.PublicNkey, JWT: payload.JWT,
			SchemaVersion: 1,
		}
	case "account":
		p.view.NatsAccounts[payload.EntityID] = &types.NatsAccount{
			ID: payload.EntityID, State: types.NatsAccountActive, Name: payload.Name,
			OperatorID: payload.IssuerID, KeyID: payload.KeyID, PublicNkey: payload.PublicNkey,
			JWT: payload.JWT, SchemaVersion: 1,
		}
	case "user":
		p.view.NatsUsers[payload.EntityID] = &types.NatsUser{
			ID: payload.EntityID, State: types.NatsUserActive, Name: payload.Name,
			AccountID: payload.IssuerID, KeyID: payload.KeyID, PublicNkey: payload.PublicNkey,
			JWT: payload.JWT, SchemaVersion: 1,
		}
	default:
		return fmt.Errorf("projection: nats_jwt_signed: unknown role %q", payload.Role)
	}
	return nil
}

// applyStateTransitioned routes a generic transition to the aggregate
// it names, identified by AggregateID. The transition itself was
// already validated by pkg/aggregate before the event was emitted;
// Apply only records the resulting state.
func (p *Projection) applyStateTransitioned(aggregateID id.Id, payload event.StateTransitioned) error {
	switch payload.Aggregate {
	case event.AggregatePerson:
		r, ok := p.view.People[aggregateID]
		if !ok {
			return fmt.Errorf("projection: state_transitioned: unknown person %s", aggregateID)
		}
		r.State = types.PersonState(payload.To)
	case event.AggregateOrganization:
		r, ok := p.view.Organizations[aggregateID]
		if !ok {
			return fmt.Errorf("projection: state_transitioned: unknown organization %s", aggregateID)
		}
		r.State = types.OrganizationState(payload.To)
	case event.AggregateLocation:
		r, ok := p.view.Locations[aggregateID]
		if !ok {
			return fmt.Errorf("projection: state_transitioned: unknown location %s", aggregateID)
		}
		r.State = types.LocationState(payload.To)
	case event.AggregateCertificate:
		r, ok := p.view.Certificates[aggregateID]
		if !ok {
			return fmt.Errorf("projection: state_transitioned: unknown certificate %s", aggregateID)
		}
		r.State = types.CertificateState(payload.To)
	case event.AggregateKey:
		r, ok := p.view.Keys[aggregateID]
		if !ok {
			return fmt.Errorf("projection: state_transitioned: unknown key %s", aggregateID)
		}
		r.State = types.KeyState(payload.To)
	case event.AggregateYubiKey:
		r, ok := p.view.YubiKeys[aggregateID]
		if !ok {
			return fmt.Errorf("projection: state_transitioned: unknown yubikey %s", aggregateID)
		}
		r.State = types.YubiKeyState(payload.To)
	case event.AggregateNatsOperator:
		r, ok := p.view.NatsOperators[aggregateID]
		if !ok {
			return fmt.Errorf("projection: state_transitioned: unknown nats operator %s", aggregateID)
		}
		r.State = types.NatsOperatorState(payload.To)
	case event.AggregateNatsAccount:
		r, ok := p.view.NatsAccounts[aggregateID]
		if !ok {
			return fmt.Errorf("projection: state_transitioned: unknown nats account %s", aggregateID)
		}
		r.State = types.NatsAccountState(payload.To)
	case event.AggregateNatsUser:
		r, ok := p.view.NatsUsers[aggregateID]
		if !ok {
			return fmt.Errorf("projection: state_transitioned: unknown nats user %s", aggregateID)
		}
		r.State = types.NatsUserState(payload.To)
	case event.AggregateRelationship:
		r, ok := p.view.Relationships[aggregateID]
		if !ok {
			return fmt.Errorf("projection: state_transitioned: unknown relationship %s", aggregateID)
		}
		r.State = types.RelationshipState(payload.To)
	case event.AggregateManifest:
		p.view.Manifest.State = types.ManifestState(payload.To)
	default:
		return fmt.Errorf("projection: state_transitioned: unknown aggregate kind %q", payload.Aggregate)
	}
	return nil
}
