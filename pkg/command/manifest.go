package command

import (
	"fmt"

	"github.com/cimkeys/cim-keys/pkg/aggregate"
	"github.com/cimkeys/cim-keys/pkg/event"
	"github.com/cimkeys/cim-keys/pkg/projection"
	"github.com/cimkeys/cim-keys/pkg/types"
)

// SealManifest is spec §4.7's manifest lifecycle counterpart: freezes
// the projection's event count, transitioning Manifest from Building
// to Sealed. Other commands are not gated on the manifest's state and
// are still accepted after sealing.
type SealManifest struct {
	types.Envelope
	EventCount int
}

// HandleSealManifest checks the Building->Sealed transition is legal
// before emitting ManifestSealed. EventCount is the orchestrator's own
// tally of events.jsonl entries, not reconstructed here, since the
// projection's in-memory view holds folded state, not a log length.
func HandleSealManifest(cmd SealManifest, view *projection.View, deps Deps) ([]event.DomainEvent, error) {
	m := view.Manifest
	if m == nil {
		return nil, &ValidationError{Reason: "manifest not initialized"}
	}
	if err := aggregate.ValidateManifestTransition(m.State, types.ManifestSealed); err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}

	env, err := newEnvelope(deps.Clock, cmd.CorrelationID, cmd.ID)
	if err != nil {
		return nil, err
	}
	env.AggregateID = m.ID

	return []event.DomainEvent{{
		Envelope: env,
		Kind:     event.KindManifestSealed,
		Payload:  event.ManifestSealed{ManifestID: m.ID, EventCount: cmd.EventCount},
	}}, nil
}

// ExportManifest is spec §4.7's manifest lifecycle counterpart:
// transitions Manifest from Sealed to Exported once the on-disk
// projection has been written (pkg/projection's writer performs the
// actual write; this command only records that it happened).
type ExportManifest struct {
	types.Envelope
}

// HandleExportManifest checks the Sealed->Exported transition is
// legal before emitting ManifestExported.
func HandleExportManifest(cmd ExportManifest, view *projection.View, deps Deps) ([]event.DomainEvent, error) {
	m := view.Manifest
	if m == nil {
		return nil, &ValidationError{Reason: "manifest not initialized"}
	}
	if err := aggregate.ValidateManifestTransition(m.State, types.ManifestExported); err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}

	env, err := newEnvelope(deps.Clock, cmd.CorrelationID, cmd.ID)
	if err != nil {
		return nil, err
	}
	env.AggregateID = m.ID

	return []event.DomainEvent{{
		Envelope: env,
		Kind:     event.KindManifestExported,
		Payload:  event.ManifestExported{ManifestID: m.ID},
	}}, nil
}
