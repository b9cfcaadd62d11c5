package security

import (
	"fmt"

	"github.com/nats-io/jwt/v2"
	"github.com/nats-io/nkeys"
)

// NatsRole identifies which nkey prefix byte and JWT claim shape a
// NATS identity uses (spec §4.4).
type NatsRole int

const (
	NatsRoleOperator NatsRole = iota
	NatsRoleAccount
	NatsRoleUser
)

func (r NatsRole) prefix() nkeys.PrefixByte {
	switch r {
	case NatsRoleOperator:
		return nkeys.PrefixByteOperator
	case NatsRoleAccount:
		return nkeys.PrefixByteAccount
	case NatsRoleUser:
		return nkeys.PrefixByteUser
	default:
		return nkeys.PrefixByteUser
	}
}

// NatsNkey is a NATS nkey pair: the role-prefixed, base32, CRC-16/XMODEM
// checksummed seed and public key encodings produced by nkeys, built
// from an Ed25519 KeyPair's 32-byte seed.
type NatsNkey struct {
	Role      NatsRole
	KeyPair   nkeys.KeyPair
	PublicKey string
}

// NewNatsNkey wraps an Ed25519 KeyPair as a NATS nkey of the given
// role, using ed.Secret's 32-byte seed as the nkey seed directly.
func NewNatsNkey(role NatsRole, ed *KeyPair) (*NatsNkey, error) {
	if ed.Algorithm != AlgorithmEd25519 {
		return nil, &ErrUnsupported{Algorithm: ed.Algorithm}
	}
	raw, err := ed.Secret.Expose()
	if err != nil {
		return nil, fmt.Errorf("security: expose nkey seed: %w", err)
	}
	// ed25519.PrivateKey is seed||pubkey; nkeys wants the 32-byte seed.
	seed := raw
	if len(raw) > 32 {
		seed = raw[:32]
	}

	kp, err := nkeys.FromRawSeed(role.prefix(), seed)
	if err != nil {
		return nil, fmt.Errorf("security: build nkey: %w", err)
	}
	pub, err := kp.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("security: nkey public key: %w", err)
	}

	return &NatsNkey{Role: role, KeyPair: kp, PublicKey: pub}, nil
}

// EncodedSeed returns the nkey's base32 seed encoding ("S..." form),
// the private material sealed into the projection's *.nk files.
func (n *NatsNkey) EncodedSeed() ([]byte, error) {
	return n.KeyPair.Seed()
}

// SignOperatorJWT builds and signs an Operator JWT, self-issued.
func SignOperatorJWT(op *NatsNkey, name string) (string, error) {
	claims := jwt.NewOperatorClaims(op.PublicKey)
	claims.Name = name
	return claims.Encode(op.KeyPair)
}

// SignAccountJWT builds and signs an Account JWT issued by operator.
func SignAccountJWT(operator *NatsNkey, account *NatsNkey, name string) (string, error) {
	claims := jwt.NewAccountClaims(account.PublicKey)
	claims.Name = name
	claims.Issuer = operator.PublicKey
	return claims.Encode(operator.KeyPair)
}

// SignUserJWT builds and signs a User JWT issued by account, with the
// given NATS permissions embedded in the claims.
func SignUserJWT(account *NatsNkey, user *NatsNkey, name string, permissions jwt.Permissions) (string, error) {
	claims := jwt.NewUserClaims(user.PublicKey)
	claims.Name = name
	claims.Issuer = account.PublicKey
	claims.Permissions = permissions
	return claims.Encode(account.KeyPair)
}
