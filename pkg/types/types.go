package types

import (
	"time"

	"github.com/cimkeys/cim-keys/pkg/id"
)

// SubkeyLabel is an ordered path like ("pki","root_ca","ed25519") or
// ("nats","operator",opID) that deterministically salts seed
// derivation (spec §3) so two distinct purposes never share subkey
// bytes.
type SubkeyLabel []string

// Envelope is the correlation metadata carried by every command and
// every event (spec §3): a command's CorrelationID propagates to all
// events it spawns, whose CausationID equals the command's own ID.
type Envelope struct {
	ID            id.Id
	CorrelationID id.Id
	CausationID   id.Id
	Timestamp     id.Timestamp
}

// KeyAlgorithm names a supported key algorithm, mirroring
// pkg/security.Algorithm without importing it (types stays leaf-level).
type KeyAlgorithm string

const (
	KeyAlgorithmEd25519   KeyAlgorithm = "ed25519"
	KeyAlgorithmECDSAP256 KeyAlgorithm = "ecdsa-p256"
	KeyAlgorithmRSA2048   KeyAlgorithm = "rsa-2048"
	KeyAlgorithmRSA4096   KeyAlgorithm = "rsa-4096"
)

// PersonState is Person's FSM state (spec §4.6).
type PersonState string

const (
	PersonCreated     PersonState = "created"
	PersonActive      PersonState = "active"
	PersonSuspended   PersonState = "suspended"
	PersonRetired     PersonState = "retired"
	PersonTerminated  PersonState = "terminated"
)

// Person is an operator or credential holder (spec §3).
type Person struct {
	ID          id.Id
	State       PersonState
	FullName    string
	Email       string
	OrgID       id.Id
	SchemaVersion int
}

// OrganizationState is Organization's FSM state.
type OrganizationState string

const (
	OrganizationForming   OrganizationState = "forming"
	OrganizationActive    OrganizationState = "active"
	OrganizationSuspended OrganizationState = "suspended"
	OrganizationDissolved OrganizationState = "dissolved"
)

// Organization is an administrative grouping of people and locations.
type Organization struct {
	ID            id.Id
	State         OrganizationState
	Name          string
	SchemaVersion int
}

// LocationState is Location's FSM state.
type LocationState string

const (
	LocationAvailable     LocationState = "available"
	LocationInUse         LocationState = "in_use"
	LocationMaintenance   LocationState = "maintenance"
	LocationDecommissioned LocationState = "decommissioned"
)

// Location is a physical or logical site (a datacenter rack, an
// office safe) that YubiKeys and people are associated with.
type Location struct {
	ID            id.Id
	State         LocationState
	Name          string
	Address       string
	SchemaVersion int
}

// CertificateState is Certificate's FSM state.
type CertificateState string

const (
	CertificatePending CertificateState = "pending"
	CertificateActive  CertificateState = "active"
	CertificateExpired CertificateState = "expired"
	CertificateRevoked CertificateState = "revoked"
)

// Certificate is the spec §3 certificate record: issuance metadata
// plus the PEM encoding and fingerprint of the issued X.509
// certificate. IssuerID is the zero Id for a self-signed root.
type Certificate struct {
	ID            id.Id
	State         CertificateState
	Subject       string
	IssuerID      id.Id
	NotBefore     time.Time
	NotAfter      time.Time
	SerialHex     string
	IsCA          bool
	KeyUsage      []string
	ExtKeyUsage   []string
	SAN           []string
	PEM           []byte
	Fingerprint   string
	SigningKeyID  id.Id
	SchemaVersion int
}

// KeyState is Key's FSM state.
type KeyState string

const (
	KeyGenerated   KeyState = "generated"
	KeyActive      KeyState = "active"
	KeyRotated     KeyState = "rotated"
	KeyCompromised KeyState = "compromised"
	KeyArchived    KeyState = "archived"
	KeyDestroyed   KeyState = "destroyed"
)

// Key is the spec §3 key-pair record as persisted in the projection:
// public bytes and fingerprint only — secret bytes live exclusively in
// a secretbuf.Buffer during command execution and are sealed (pkg
// security.Seal) before being written to disk.
type Key struct {
	ID            id.Id
	State         KeyState
	Algorithm     KeyAlgorithm
	PublicBytes   []byte
	SealedSecret  []byte
	Fingerprint   string
	OwnerID       id.Id
	SchemaVersion int
}

// PIVSlot identifies a YubiKey PIV slot (spec §3's {9A, 9C, 9D, 9E,
// 82-95} set).
type PIVSlot string

const (
	PIVSlotAuthentication PIVSlot = "9A"
	PIVSlotSigning        PIVSlot = "9C"
	PIVSlotKeyManagement  PIVSlot = "9D"
	PIVSlotCardAuth       PIVSlot = "9E"
)

// retiredPIVSlots enumerates the 20 retired-key-management slots
// "82".."95" (spec §3's {9A, 9C, 9D, 9E, 82-95} PIV slot set).
var retiredPIVSlots = [...]PIVSlot{
	"82", "83", "84", "85", "86", "87", "88", "89", "8A", "8B",
	"8C", "8D", "8E", "8F", "90", "91", "92", "93", "94", "95",
}

// RetiredPIVSlot returns the nth (1-indexed) retired-key slot.
func RetiredPIVSlot(n int) (PIVSlot, bool) {
	if n < 1 || n > len(retiredPIVSlots) {
		return "", false
	}
	return retiredPIVSlots[n-1], true
}

// KeyBinding names the Key occupying a YubiKey PIV slot.
type KeyBinding struct {
	KeyID     id.Id
	Algorithm KeyAlgorithm
}

// YubiKeyState is YubiKey's FSM state.
type YubiKeyState string

const (
	YubiKeyUnprovisioned YubiKeyState = "unprovisioned"
	YubiKeyProvisioned   YubiKeyState = "provisioned"
	YubiKeyActive        YubiKeyState = "active"
	YubiKeyRetired       YubiKeyState = "retired"
	YubiKeyCompromised   YubiKeyState = "compromised"
)

// YubiKey is the spec §3 YubiKey record: a serial number and its PIV
// slot bindings. At most one KeyBinding per slot.
type YubiKey struct {
	ID            id.Id
	State         YubiKeyState
	Serial        string
	OwnerID       id.Id
	Slots         map[PIVSlot]*KeyBinding
	SchemaVersion int
}

// NatsOperatorState is NATS Operator's FSM state.
type NatsOperatorState string

const (
	NatsOperatorCreated NatsOperatorState = "created"
	NatsOperatorActive  NatsOperatorState = "active"
	NatsOperatorRetired NatsOperatorState = "retired"
)

// NatsOperator is the root of a NATS security hierarchy: self-signed,
// holds account signing authority.
type NatsOperator struct {
	ID            id.Id
	State         NatsOperatorState
	Name          string
	KeyID         id.Id
	PublicNkey    string
	JWT           string
	SchemaVersion int
}

// NatsAccountState is NATS Account's FSM state.
type NatsAccountState string

const (
	NatsAccountPending  NatsAccountState = "pending"
	NatsAccountActive   NatsAccountState = "active"
	NatsAccountSuspended NatsAccountState = "suspended"
	NatsAccountRevoked  NatsAccountState = "revoked"
)

// NatsAccount is issued and signed by a NatsOperator; holds user
// signing authority.
type NatsAccount struct {
	ID            id.Id
	State         NatsAccountState
	Name          string
	OperatorID    id.Id
	KeyID         id.Id
	PublicNkey    string
	JWT           string
	SchemaVersion int
}

// NatsUserState is NATS User's FSM state.
type NatsUserState string

const (
	NatsUserPending NatsUserState = "pending"
	NatsUserActive  NatsUserState = "active"
	NatsUserLocked  NatsUserState = "locked"
	NatsUserRevoked NatsUserState = "revoked"
)

// NatsUser is issued and signed by a NatsAccount.
type NatsUser struct {
	ID            id.Id
	State         NatsUserState
	Name          string
	AccountID     id.Id
	KeyID         id.Id
	PublicNkey    string
	JWT           string
	Permissions   NatsPermissions
	SchemaVersion int
}

// NatsPermissions is the subset of NATS publish/subscribe permission
// claims this tool lets an operator attach to a User at issuance.
type NatsPermissions struct {
	Publish   []string
	Subscribe []string
}

// RelationshipKind names the nature of a directed edge between two
// entities (spec §3: "Relationships are directed, timestamped edges
// ... never embedded inside endpoints").
type RelationshipKind string

const (
	RelationshipEmployedBy  RelationshipKind = "employed_by"
	RelationshipLocatedAt   RelationshipKind = "located_at"
	RelationshipOwns        RelationshipKind = "owns"
	RelationshipDelegatesTo RelationshipKind = "delegates_to"
)

// RelationshipState is Relationship's FSM state.
type RelationshipState string

const (
	RelationshipProposed   RelationshipState = "proposed"
	RelationshipActive     RelationshipState = "active"
	RelationshipExpired    RelationshipState = "expired"
	RelationshipTerminated RelationshipState = "terminated"
)

// Relationship is a directed, timestamped edge between two entity IDs.
type Relationship struct {
	ID            id.Id
	State         RelationshipState
	Kind          RelationshipKind
	FromID        id.Id
	ToID          id.Id
	CreatedAt     time.Time
	SchemaVersion int
}

// ManifestState is Manifest's FSM state.
type ManifestState string

const (
	ManifestBuilding ManifestState = "building"
	ManifestSealed   ManifestState = "sealed"
	ManifestExported ManifestState = "exported"
)

// Manifest is the top-level aggregate tracking the state of the
// on-disk projection as a whole (spec §4.8's manifest.json).
type Manifest struct {
	ID            id.Id
	State         ManifestState
	TrustDomain   string
	EventCount    int
	SealedAt      time.Time
	SchemaVersion int
}
