// Package command's identity handlers cover the four non-PKI, non-NATS
// aggregates (spec §3's Person, Organization, Location, Relationship):
// simple creation commands with no key derivation or policy beyond
// basic referential checks.
package command

import (
	"fmt"

	"github.com/cimkeys/cim-keys/pkg/event"
	"github.com/cimkeys/cim-keys/pkg/id"
	"github.com/cimkeys/cim-keys/pkg/projection"
	"github.com/cimkeys/cim-keys/pkg/types"
)

// CreateOrganization is spec §4.7's CreateOrganization{name}.
type CreateOrganization struct {
	types.Envelope
	Name string
}

// HandleCreateOrganization emits OrganizationCreated.
func HandleCreateOrganization(cmd CreateOrganization, view *projection.View, deps Deps) ([]event.DomainEvent, error) {
	if cmd.Name == "" {
		return nil, &ValidationError{Reason: "name must not be empty"}
	}
	for _, org := range view.Organizations {
		if org.Name == cmd.Name && org.State != types.OrganizationDissolved {
			return nil, &ValidationError{Reason: fmt.Sprintf("organization %q already exists", cmd.Name)}
		}
	}

	orgID, err := id.New(deps.Clock)
	if err != nil {
		return nil, fmt.Errorf("command: new organization id: %w", err)
	}
	env, err := newEnvelope(deps.Clock, cmd.CorrelationID, cmd.ID)
	if err != nil {
		return nil, err
	}
	env.AggregateID = orgID

	return []event.DomainEvent{{
		Envelope: env,
		Kind:     event.KindOrganizationCreated,
		Payload:  event.OrganizationCreated{OrgID: orgID, Name: cmd.Name},
	}}, nil
}

// CreateLocation is spec §4.7's CreateLocation{name, address}.
type CreateLocation struct {
	types.Envelope
	Name    string
	Address string
}

// HandleCreateLocation emits LocationCreated.
func HandleCreateLocation(cmd CreateLocation, view *projection.View, deps Deps) ([]event.DomainEvent, error) {
	if cmd.Name == "" {
		return nil, &ValidationError{Reason: "name must not be empty"}
	}

	locID, err := id.New(deps.Clock)
	if err != nil {
		return nil, fmt.Errorf("command: new location id: %w", err)
	}
	env, err := newEnvelope(deps.Clock, cmd.CorrelationID, cmd.ID)
	if err != nil {
		return nil, err
	}
	env.AggregateID = locID

	return []event.DomainEvent{{
		Envelope: env,
		Kind:     event.KindLocationCreated,
		Payload:  event.LocationCreated{LocationID: locID, Name: cmd.Name, Address: cmd.Address},
	}}, nil
}

// CreatePerson is spec §4.7's CreatePerson{full_name, email, org_id}.
type CreatePerson struct {
	types.Envelope
	FullName string
	Email    string
	OrgID    id.Id
}

// HandleCreatePerson validates that a non-zero OrgID references an
// existing, non-dissolved Organization and emits PersonCreated. A zero
// OrgID is accepted and creates a person with no organization.
func HandleCreatePerson(cmd CreatePerson, view *projection.View, deps Deps) ([]event.DomainEvent, error) {
	if cmd.FullName == "" {
		return nil, &ValidationError{Reason: "full_name must not be empty"}
	}
	if !cmd.OrgID.IsZero() {
		org, ok := view.Organizations[cmd.OrgID]
		if !ok {
			return nil, &ValidationError{Reason: "organization not found"}
		}
		if org.State == types.OrganizationDissolved {
			return nil, &ValidationError{Reason: "organization is dissolved"}
		}
	}

	personID, err := id.New(deps.Clock)
	if err != nil {
		return nil, fmt.Errorf("command: new person id: %w", err)
	}
	env, err := newEnvelope(deps.Clock, cmd.CorrelationID, cmd.ID)
	if err != nil {
		return nil, err
	}
	env.AggregateID = personID

	return []event.DomainEvent{{
		Envelope: env,
		Kind:     event.KindPersonCreated,
		Payload: event.PersonCreated{
			PersonID: personID,
			FullName: cmd.FullName,
			Email:    cmd.Email,
			OrgID:    cmd.OrgID,
		},
	}}, nil
}

// CreateRelationship is spec §4.7's CreateRelationship{kind, from_id,
// to_id}: a directed, timestamped edge between two existing entities.
type CreateRelationship struct {
	types.Envelope
	Kind   types.RelationshipKind
	FromID id.Id
	ToID   id.Id
}

// HandleCreateRelationship validates both endpoints reference a known
// aggregate and emits RelationshipCreated.
func HandleCreateRelationship(cmd CreateRelationship, view *projection.View, deps Deps) ([]event.DomainEvent, error) {
	if cmd.FromID.IsZero() || cmd.ToID.IsZero() {
		return nil, &ValidationError{Reason: "from_id and to_id must both be set"}
	}
	if !entityExists(view, cmd.FromID) {
		return nil, &ValidationError{Reason: "from_id does not reference a known entity"}
	}
	if !entityExists(view, cmd.ToID) {
		return nil, &ValidationError{Reason: "to_id does not reference a known entity"}
	}

	relID, err := id.New(deps.Clock)
	if err != nil {
		return nil, fmt.Errorf("command: new relationship id: %w", err)
	}
	env, err := newEnvelope(deps.Clock, cmd.CorrelationID, cmd.ID)
	if err != nil {
		return nil, err
	}
	env.AggregateID = relID

	return []event.DomainEvent{{
		Envelope: env,
		Kind:     event.KindRelationshipCreated,
		Payload: event.RelationshipCreated{
			RelationshipID: relID,
			Kind:           cmd.Kind,
			FromID:         cmd.FromID,
			ToID:           cmd.ToID,
		},
	}}, nil
}

func entityExists(view *projection.View, entityID id.Id) bool {
	if _, ok := view.People[entityID]; ok {
		return true
	}
	if _, ok := view.Organizations[entityID]; ok {
		return true
	}
	if _, ok := view.Locations[entityID]; ok {
		return true
	}
	if _, ok := view.Certificates[entityID]; ok {
		return true
	}
	if _, ok := view.Keys[entityID]; ok {
		return true
	}
	if _, ok := view.YubiKeys[entityID]; ok {
		return true
	}
	if _, ok := view.NatsOperators[entityID]; ok {
		return true
	}
	if _, ok := view.NatsAccounts[entityID]; ok {
		return true
	}
	if _, ok := view.NatsUsers[entityID]; ok {
		return true
	}
	return false
}
