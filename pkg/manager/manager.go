// Package manager is the single-writer command orchestrator: it
// dispatches a submitted command to its pkg/command handler, folds
// the resulting events into the in-memory projection, and persists
// them through pkg/projection's writer — in that order, so a crash
// never leaves the projection ahead of the durable log.
//
// Grounded on the teacher's manager.Manager/Config/NewManager
// constructor-injection shape (store, secrets manager, and CA wired
// in at construction, not discovered later) and its propose-then-FSM-
// apply flow, generalized from a Raft-replicated command stream to
// direct, in-process dispatch — spec §5 mandates a single writer, not
// a replicated log, so hashicorp/raft has no role here.
package manager

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cimkeys/cim-keys/pkg/command"
	"github.com/cimkeys/cim-keys/pkg/event"
	"github.com/cimkeys/cim-keys/pkg/id"
	"github.com/cimkeys/cim-keys/pkg/log"
	"github.com/cimkeys/cim-keys/pkg/ports"
	"github.com/cimkeys/cim-keys/pkg/projection"
	"github.com/cimkeys/cim-keys/pkg/secretbuf"
	"github.com/cimkeys/cim-keys/pkg/security"
	"github.com/cimkeys/cim-keys/pkg/seed"
	"github.com/cimkeys/cim-keys/pkg/types"
)

// Config holds the orchestrator's startup configuration.
type Config struct {
	// DataDir is the root both the projection's flat-file tree and
	// its bbolt replay cache live under.
	DataDir string
	// TrustDomain names the trust domain a freshly created manifest
	// is stamped with; ignored on restart, where the manifest ID and
	// its fields are recovered from manifest.json.
	TrustDomain string
	// SmartcardTimeout overrides command.Deps' PC/SC round-trip
	// deadline; zero keeps the package default.
	SmartcardTimeout time.Duration
}

// wrapKeyLabel derives the AES-256-GCM key Manager uses to seal
// private material at rest (spec §4.9), distinct from any PKI or NATS
// subkey label so it can never collide with issued key material.
var wrapKeyLabel = types.SubkeyLabel{"at-rest", "wrap"}

// Manager is the single writer: one Manager per open store, holding
// the master seed no other component ever sees, the folded
// projection, and the durable writer and replay cache built on top of
// it.
type Manager struct {
	mu sync.Mutex

	cfg       Config
	fs        ports.Filesystem
	clock     id.Clock
	smartcard ports.Smartcard

	keys    keySource
	wrapKey *secretbuf.Buffer

	proj        *projection.Projection
	writer      *projection.Writer
	cache       *projection.Cache
	broker      *event.Broker
	lastEventID id.Id
	eventCount  int
}

// keySource adapts pkg/seed's free function to command.KeySource,
// binding it to this Manager's master seed.
type keySource struct{ master *secretbuf.Buffer }

func (k keySource) Subkey(label types.SubkeyLabel, length int) (*secretbuf.Buffer, error) {
	return seed.Subkey(k.master, seed.Label(label), length)
}

// New opens or initializes a store at cfg.DataDir: it replays
// events.jsonl (if present) into a fresh projection, verifies or
// rebuilds the bbolt replay cache, and returns a Manager ready to
// accept Submit calls. master is the derived master seed (pkg/seed.
// DeriveMasterSeed's output); the caller retains ownership and must
// Destroy it only after calling Close.
func New(cfg Config, master *secretbuf.Buffer, fs ports.Filesystem, clock id.Clock, smartcard ports.Smartcard) (*Manager, error) {
	wrapKey, err := seed.Subkey(master, seed.Label(wrapKeyLabel), 32)
	if err != nil {
		return nil, fmt.Errorf("manager: derive wrap key: %w", err)
	}

	m := &Manager{
		cfg:       cfg,
		fs:        fs,
		clock:     clock,
		smartcard: smartcard,
		keys:      keySource{master: master},
		wrapKey:   wrapKey,
		broker:    event.NewBroker(),
	}

	if err := m.replay(); err != nil {
		return nil, err
	}

	cachePath := filepath.Join(cfg.DataDir, "cache.db")
	cache, err := projection.OpenCache(cachePath)
	if err != nil {
		return nil, fmt.Errorf("manager: open replay cache: %w", err)
	}
	trusted, err := cache.Trusted(m.lastEventID)
	if err != nil {
		cache.Close()
		return nil, fmt.Errorf("manager: check replay cache trust: %w", err)
	}
	if !trusted {
		log.WithComponent("manager").Warn().Msg("replay cache stale or absent, rebuilding from projection")
		if err := cache.Rebuild(m.proj.View(), m.lastEventID); err != nil {
			cache.Close()
			return nil, fmt.Errorf("manager: rebuild replay cache: %w", err)
		}
	}
	m.cache = cache
	m.writer = projection.NewWriter(fs, m)
	m.broker.Start()

	return m, nil
}

// Close releases the replay cache and stops the event broker. It does
// not touch the master seed; the caller owns that buffer's lifetime.
func (m *Manager) Close() error {
	m.broker.Stop()
	if m.cache != nil {
		return m.cache.Close()
	}
	return nil
}

// View returns the current read model for queries (the CLI's
// `verify`/listing verbs, pkg/projection.View.CertificatesNearingExpiry).
func (m *Manager) View() *projection.View { return m.proj.View() }

// EventCount reports how many events have been folded into this
// store across restarts, the value a SealManifest command's
// EventCount field should carry.
func (m *Manager) EventCount() int { return m.eventCount }

// Subscribe registers a live subscription to every event Submit
// applies, for a CLI progress display.
func (m *Manager) Subscribe() event.Subscriber { return m.broker.Subscribe() }

// Submit dispatches cmd to its handler, folds the returned events into
// the projection, and persists them before returning. Submit holds
// Manager's lock for its whole duration: only one command is ever in
// flight, matching spec §5's single-writer requirement.
func (m *Manager) Submit(ctx context.Context, cmd any) ([]event.DomainEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	deps := command.Deps{
		Keys:             m.keys,
		Clock:            m.clock,
		Smartcard:        m.smartcard,
		SmartcardTimeout: m.cfg.SmartcardTimeout,
	}

	events, err := dispatch(ctx, cmd, m.proj.View(), deps)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}

	for _, ev := range events {
		if err := m.proj.Apply(ev); err != nil {
			return nil, fmt.Errorf("manager: apply event %s: %w", ev.Envelope.EventID, err)
		}
	}

	if err := m.writer.WriteEvents(m.proj.View(), events); err != nil {
		return nil, &command.IoError{Err: err}
	}

	m.lastEventID = events[len(events)-1].Envelope.EventID
	m.eventCount += len(events)

	if err := m.cache.Rebuild(m.proj.View(), m.lastEventID); err != nil {
		log.WithComponent("manager").Warn().Err(err).Msg("replay cache rebuild failed after write")
	}

	for _, ev := range events {
		m.broker.Publish(ev)
	}

	return events, nil
}

// dispatch maps a concrete command value to its pkg/command handler.
// Every command the CLI can submit is listed here; an unrecognized
// type is a programmer error, not a user one, so it still surfaces as
// a ValidationError rather than a panic.
func dispatch(ctx context.Context, cmd any, view *projection.View, deps command.Deps) ([]event.DomainEvent, error) {
	switch c := cmd.(type) {
	case command.GenerateRootCA:
		return command.HandleGenerateRootCA(c, view, deps)
	case command.GenerateIntermediateCA:
		return command.HandleGenerateIntermediateCA(c, view, deps)
	case command.GenerateLeafCertificate:
		return command.HandleGenerateLeafCertificate(c, view, deps)
	case command.ProvisionYubiKey:
		return command.HandleProvisionYubiKey(ctx, c, view, deps)
	case command.IssueNatsOperator:
		return command.HandleIssueNatsOperator(c, view, deps)
	case command.IssueNatsAccount:
		return command.HandleIssueNatsAccount(c, view, deps)
	case command.IssueNatsUser:
		return command.HandleIssueNatsUser(c, view, deps)
	case command.CreateOrganization:
		return command.HandleCreateOrganization(c, view, deps)
	case command.CreateLocation:
		return command.HandleCreateLocation(c, view, deps)
	case command.CreatePerson:
		return command.HandleCreatePerson(c, view, deps)
	case command.CreateRelationship:
		return command.HandleCreateRelationship(c, view, deps)
	case command.SealManifest:
		return command.HandleSealManifest(c, view, deps)
	case command.ExportManifest:
		return command.HandleExportManifest(c, view, deps)
	default:
		return nil, &command.ValidationError{Reason: fmt.Sprintf("unrecognized command type %T", cmd)}
	}
}

// replay seeds m.proj from manifest.json (if present, recovering the
// manifest aggregate's stable ID) and then folds events.jsonl on top
// of it in order. A fresh store has neither file: a new manifest ID
// is minted and the projection starts empty.
func (m *Manager) replay() error {
	manifestID, err := m.recoverManifestID()
	if err != nil {
		return err
	}
	m.proj = projection.New(manifestID, m.cfg.TrustDomain)

	data, err := m.fs.Read("events.jsonl")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("manager: read events.jsonl: %w", err)
	}

	trimmed := bytes.TrimRight(data, "\n")
	if len(trimmed) == 0 {
		return nil
	}

	for i, line := range bytes.Split(trimmed, []byte("\n")) {
		var ev event.DomainEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			return &command.CorruptionError{Reason: fmt.Sprintf("events.jsonl line %d: %v", i+1, err)}
		}
		if err := m.proj.Apply(ev); err != nil {
			return &command.CorruptionError{Reason: fmt.Sprintf("events.jsonl line %d: %v", i+1, err)}
		}
		m.lastEventID = ev.Envelope.EventID
		m.eventCount++
	}
	return nil
}

// recoverManifestID reads manifest.json's ID so the manifest
// aggregate's identity survives a restart; there is no
// ManifestCreated event, so the flat file is this one field's only
// durable record of it.
func (m *Manager) recoverManifestID() (id.Id, error) {
	data, err := m.fs.Read("manifest.json")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return id.New(m.clock)
		}
		return id.Id{}, fmt.Errorf("manager: read manifest.json: %w", err)
	}

	var manifest types.Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return id.Id{}, &command.CorruptionError{Reason: fmt.Sprintf("manifest.json: %v", err)}
	}
	return manifest.ID, nil
}

// SealedKey implements projection.SecretMaterial: it re-derives keyID
// from the master seed and seals the resulting private bytes under
// Manager's wrap key. The label used depends on which domain keyID
// belongs to (PKI vs. NATS), determined by where the key is actually
// referenced in the projection rather than by any flag on the Key
// record itself.
func (m *Manager) SealedKey(keyID id.Id) ([]byte, error) {
	view := m.proj.View()
	key, ok := view.Keys[keyID]
	if !ok {
		return nil, fmt.Errorf("manager: key %s not present in projection", keyID)
	}

	kp, err := command.DeriveKeyPair(m.keys, m.labelFor(keyID), key.Algorithm)
	if err != nil {
		return nil, fmt.Errorf("manager: re-derive key %s: %w", keyID, err)
	}
	raw, err := kp.Secret.Expose()
	if err != nil {
		return nil, fmt.Errorf("manager: expose key %s: %w", keyID, err)
	}
	return security.Seal(m.wrapKey, raw)
}

// SealedNatsSeed implements projection.SecretMaterial: it re-derives
// the nkey seed belonging to entityID (an operator, account, or user
// ID, not a key ID) and seals it under Manager's wrap key.
func (m *Manager) SealedNatsSeed(entityID id.Id) ([]byte, error) {
	view := m.proj.View()

	var keyID id.Id
	var role security.NatsRole
	switch {
	case view.NatsOperators[entityID] != nil:
		keyID, role = view.NatsOperators[entityID].KeyID, security.NatsRoleOperator
	case view.NatsAccounts[entityID] != nil:
		keyID, role = view.NatsAccounts[entityID].KeyID, security.NatsRoleAccount
	case view.NatsUsers[entityID] != nil:
		keyID, role = view.NatsUsers[entityID].KeyID, security.NatsRoleUser
	default:
		return nil, fmt.Errorf("manager: nats entity %s not present in projection", entityID)
	}

	kp, err := command.DeriveKeyPair(m.keys, command.NatsKeyLabel(keyID), types.KeyAlgorithmEd25519)
	if err != nil {
		return nil, fmt.Errorf("manager: re-derive nats key %s: %w", keyID, err)
	}
	nkey, err := security.NewNatsNkey(role, kp)
	if err != nil {
		return nil, fmt.Errorf("manager: rebuild nkey for %s: %w", entityID, err)
	}
	seedBytes, err := nkey.EncodedSeed()
	if err != nil {
		return nil, fmt.Errorf("manager: encode nkey seed for %s: %w", entityID, err)
	}
	return security.Seal(m.wrapKey, seedBytes)
}

// labelFor decides whether keyID was derived under the PKI or NATS
// subkey namespace by checking which aggregate actually references
// it, since Key records don't carry their own namespace.
func (m *Manager) labelFor(keyID id.Id) types.SubkeyLabel {
	view := m.proj.View()
	for _, op := range view.NatsOperators {
		if op.KeyID == keyID {
			return command.NatsKeyLabel(keyID)
		}
	}
	for _, acc := range view.NatsAccounts {
		if acc.KeyID == keyID {
			return command.NatsKeyLabel(keyID)
		}
	}
	for _, u := range view.NatsUsers {
		if u.KeyID == keyID {
			return command.NatsKeyLabel(keyID)
		}
	}
	return command.PkiKeyLabel(keyID)
}
