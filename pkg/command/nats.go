package command

import (
	"fmt"

	"github.com/nats-io/jwt/v2"

	"github.com/cimkeys/cim-keys/pkg/event"
	"github.com/cimkeys/cim-keys/pkg/id"
	"github.com/cimkeys/cim-keys/pkg/projection"
	"github.com/cimkeys/cim-keys/pkg/security"
	"github.com/cimkeys/cim-keys/pkg/types"
)

// IssueNatsOperator is spec §4.7's IssueNatsOperator{name}: the root
// of a NATS security hierarchy, self-signed.
type IssueNatsOperator struct {
	types.Envelope
	Name string
}

// HandleIssueNatsOperator derives an Ed25519 key, wraps it as an
// operator nkey, and self-signs an Operator JWT.
func HandleIssueNatsOperator(cmd IssueNatsOperator, view *projection.View, deps Deps) ([]event.DomainEvent, error) {
	if cmd.Name == "" {
		return nil, &ValidationError{Reason: "name must not be empty"}
	}
	for _, op := range view.NatsOperators {
		if op.Name == cmd.Name && op.State != types.NatsOperatorRetired {
			return nil, &ValidationError{Reason: fmt.Sprintf("operator %q already exists", cmd.Name)}
		}
	}

	keyID, err := id.New(deps.Clock)
	if err != nil {
		return nil, fmt.Errorf("command: new key id: %w", err)
	}
	kp, err := deriveKeyPair(deps.Keys, natsKeyLabel(keyID), types.KeyAlgorithmEd25519)
	if err != nil {
		return nil, err
	}
	nkey, err := security.NewNatsNkey(security.NatsRoleOperator, kp)
	if err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("build operator nkey: %v", err)}
	}
	token, err := security.SignOperatorJWT(nkey, cmd.Name)
	if err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("sign operator jwt: %v", err)}
	}

	opID, err := id.New(deps.Clock)
	if err != nil {
		return nil, fmt.Errorf("command: new operator id: %w", err)
	}

	return natsIssuedEvents(deps, cmd.Envelope, keyID, kp, opID, "operator", cmd.Name, nkey.PublicKey, token, id.Id{})
}

// IssueNatsAccount is spec §4.7's IssueNatsAccount{name, operator_id}.
type IssueNatsAccount struct {
	types.Envelope
	Name       string
	OperatorID id.Id
}

// HandleIssueNatsAccount derives an Ed25519 key, wraps it as an
// account nkey, and signs an Account JWT issued by the named operator.
func HandleIssueNatsAccount(cmd IssueNatsAccount, view *projection.View, deps Deps) ([]event.DomainEvent, error) {
	if cmd.Name == "" {
		return nil, &ValidationError{Reason: "name must not be empty"}
	}
	operator, ok := view.NatsOperators[cmd.OperatorID]
	if !ok {
		return nil, &ValidationError{Reason: "operator not found"}
	}
	if operator.State != types.NatsOperatorActive {
		return nil, &ValidationError{Reason: fmt.Sprintf("operator is not active (state=%s)", operator.State)}
	}

	operatorKey, ok := view.Keys[operator.KeyID]
	if !ok {
		return nil, &ValidationError{Reason: "operator signing key not found"}
	}
	operatorKP, err := deriveKeyPair(deps.Keys, natsKeyLabel(operatorKey.ID), types.KeyAlgorithmEd25519)
	if err != nil {
		return nil, fmt.Errorf("command: re-derive operator key: %w", err)
	}
	operatorNkey, err := security.NewNatsNkey(security.NatsRoleOperator, operatorKP)
	if err != nil {
		return nil, fmt.Errorf("command: rebuild operator nkey: %w", err)
	}

	keyID, err := id.New(deps.Clock)
	if err != nil {
		return nil, fmt.Errorf("command: new key id: %w", err)
	}
	kp, err := deriveKeyPair(deps.Keys, natsKeyLabel(keyID), types.KeyAlgorithmEd25519)
	if err != nil {
		return nil, err
	}
	nkey, err := security.NewNatsNkey(security.NatsRoleAccount, kp)
	if err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("build account nkey: %v", err)}
	}
	token, err := security.SignAccountJWT(operatorNkey, nkey, cmd.Name)
	if err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("sign account jwt: %v", err)}
	}

	accountID, err := id.New(deps.Clock)
	if err != nil {
		return nil, fmt.Errorf("command: new account id: %w", err)
	}

	return natsIssuedEvents(deps, cmd.Envelope, keyID, kp, accountID, "account", cmd.Name, nkey.PublicKey, token, cmd.OperatorID)
}

// IssueNatsUser is spec §4.7's IssueNatsUser{name, account_id,
// permissions}.
type IssueNatsUser struct {
	types.Envelope
	Name        string
	AccountID   id.Id
	Permissions types.NatsPermissions
}

// HandleIssueNatsUser derives an Ed25519 key, wraps it as a user
// nkey, and signs a User JWT issued by the named account with the
// requested publish/subscribe permissions embedded.
func HandleIssueNatsUser(cmd IssueNatsUser, view *projection.View, deps Deps) ([]event.DomainEvent, error) {
	if cmd.Name == "" {
		return nil, &ValidationError{Reason: "name must not be empty"}
	}
	account, ok := view.NatsAccounts[cmd.AccountID]
	if !ok {
		return nil, &ValidationError{Reason: "account not found"}
	}
	if account.State != types.NatsAccountActive {
		return nil, &ValidationError{Reason: fmt.Sprintf("account is not active (state=%s)", account.State)}
	}

	accountKey, ok := view.Keys[account.KeyID]
	if !ok {
		return nil, &ValidationError{Reason: "account signing key not found"}
	}
	accountKP, err := deriveKeyPair(deps.Keys, natsKeyLabel(accountKey.ID), types.KeyAlgorithmEd25519)
	if err != nil {
		return nil, fmt.Errorf("command: re-derive account key: %w", err)
	}
	accountNkey, err := security.NewNatsNkey(security.NatsRoleAccount, accountKP)
	if err != nil {
		return nil, fmt.Errorf("command: rebuild account nkey: %w", err)
	}

	keyID, err := id.New(deps.Clock)
	if err != nil {
		return nil, fmt.Errorf("command: new key id: %w", err)
	}
	kp, err := deriveKeyPair(deps.Keys, natsKeyLabel(keyID), types.KeyAlgorithmEd25519)
	if err != nil {
		return nil, err
	}
	nkey, err := security.NewNatsNkey(security.NatsRoleUser, kp)
	if err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("build user nkey: %v", err)}
	}
	token, err := security.SignUserJWT(accountNkey, nkey, cmd.Name, jwt.Permissions{
		Pub: jwt.Permission{Allow: cmd.Permissions.Publish},
		Sub: jwt.Permission{Allow: cmd.Permissions.Subscribe},
	})
	if err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("sign user jwt: %v", err)}
	}

	userID, err := id.New(deps.Clock)
	if err != nil {
		return nil, fmt.Errorf("command: new user id: %w", err)
	}

	return natsIssuedEvents(deps, cmd.Envelope, keyID, kp, userID, "user", cmd.Name, nkey.PublicKey, token, cmd.AccountID)
}

func natsKeyLabel(keyID id.Id) types.SubkeyLabel {
	return types.SubkeyLabel{"nats", "key", keyID.String()}
}

func natsIssuedEvents(deps Deps, cmdEnv types.Envelope, keyID id.Id, kp *security.KeyPair, entityID id.Id, role, name, publicNkey, jwtToken string, issuerID id.Id) ([]event.DomainEvent, error) {
	keyEnv, err := newEnvelope(deps.Clock, cmdEnv.CorrelationID, cmdEnv.ID)
	if err != nil {
		return nil, err
	}
	signEnv, err := newEnvelope(deps.Clock, cmdEnv.CorrelationID, cmdEnv.ID)
	if err != nil {
		return nil, err
	}
	signEnv.AggregateID = entityID

	return []event.DomainEvent{
		keyGeneratedEvent(keyEnv, keyID, kp, entityID),
		{
			Envelope: signEnv,
			Kind:     event.KindNatsJwtSigned,
			Payload: event.NatsJwtSigned{
				EntityID:   entityID,
				Role:       role,
				Name:       name,
				KeyID:      keyID,
				PublicNkey: publicNkey,
				JWT:        jwtToken,
				IssuerID:   issuerID,
			},
		},
	}, nil
}
