package security

import (
	"bytes"
	"crypto"
	"crypto/rsa"
	"fmt"
	"io"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/ProtonMail/go-crypto/openpgp/packet"
)

// PGPIdentity is the user ID bound to a primary key's self-signature.
type PGPIdentity struct {
	Name    string
	Comment string
	Email   string
}

// PGPKeyPair wraps kp as an OpenPGP primary signing key, self-signs a
// single identity, binds encryptionKey (an RSA KeyPair from a distinct
// subkey label, per spec §4.4) as an encryption-only subkey, and
// returns both the private and public key in ASCII-armored form. kp's
// fingerprint is unrelated to the resulting OpenPGP key fingerprint,
// which OpenPGP derives independently from the packet encoding.
func PGPKeyPair(kp *KeyPair, encryptionKey *KeyPair, identity PGPIdentity, createdAt time.Time) (armoredPrivate, armoredPublic []byte, err error) {
	signer, err := SignerFromKeyPair(kp)
	if err != nil {
		return nil, nil, fmt.Errorf("security: pgp signer: %w", err)
	}

	priv := packet.NewSignerPrivateKey(createdAt, signer)
	pub := &priv.PublicKey

	uid := packet.NewUserId(identity.Name, identity.Comment, identity.Email)
	if uid == nil {
		return nil, nil, fmt.Errorf("security: invalid pgp identity")
	}

	isPrimary := true
	sig := &packet.Signature{
		CreationTime: createdAt,
		SigType:      packet.SigTypePositiveCert,
		PubKeyAlgo:   pub.PubKeyAlgo,
		Hash:         crypto.SHA256,
		IsPrimaryId:  &isPrimary,
		FlagsValid:   true,
		FlagSign:     true,
		FlagCertify:  true,
		IssuerKeyId:  &pub.KeyId,
	}
	if err := sig.SignUserId(uid.Id, pub, priv, nil); err != nil {
		return nil, nil, fmt.Errorf("security: self-sign pgp identity: %w", err)
	}

	entity := &openpgp.Entity{
		PrimaryKey: pub,
		PrivateKey: priv,
		Identities: map[string]*openpgp.Identity{
			uid.Id: {
				Name:          uid.Id,
				UserId:        uid,
				SelfSignature: sig,
			},
		},
	}

	if encryptionKey != nil {
		if err := bindEncryptionSubkey(entity, encryptionKey, createdAt); err != nil {
			return nil, nil, err
		}
	}

	privateArmored, err := armorWrite(openpgp.PrivateKeyType, func(w io.Writer) error {
		return entity.SerializePrivate(w, nil)
	})
	if err != nil {
		return nil, nil, fmt.Errorf("security: serialize pgp private key: %w", err)
	}
	publicArmored, err := armorWrite(openpgp.PublicKeyType, entity.Serialize)
	if err != nil {
		return nil, nil, fmt.Errorf("security: serialize pgp public key: %w", err)
	}

	return privateArmored, publicArmored, nil
}

// bindEncryptionSubkey attaches encryptionKey to entity as an
// encryption-only subkey with a binding signature from the primary
// key. Only RSA is supported as an encryption subkey algorithm here:
// Ed25519 and ECDSA-P256 are signing-only curves in this generator
// set, so an encryption subkey label must derive an RSA key pair.
func bindEncryptionSubkey(entity *openpgp.Entity, encryptionKey *KeyPair, createdAt time.Time) error {
	if encryptionKey.Algorithm != AlgorithmRSA2048 && encryptionKey.Algorithm != AlgorithmRSA4096 {
		return &ErrUnsupported{Algorithm: encryptionKey.Algorithm}
	}
	signer, err := SignerFromKeyPair(encryptionKey)
	if err != nil {
		return fmt.Errorf("security: pgp encryption subkey signer: %w", err)
	}
	rsaPriv, ok := signer.(*rsa.PrivateKey)
	if !ok {
		return fmt.Errorf("security: expected *rsa.PrivateKey for pgp encryption subkey")
	}

	subPriv := packet.NewRSAPrivateKey(createdAt, rsaPriv)
	subPub := &subPriv.PublicKey

	sig := &packet.Signature{
		CreationTime:              createdAt,
		SigType:                   packet.SigTypeSubkeyBinding,
		PubKeyAlgo:                entity.PrimaryKey.PubKeyAlgo,
		Hash:                      crypto.SHA256,
		FlagsValid:                true,
		FlagEncryptStorage:        true,
		FlagEncryptCommunications: true,
		IssuerKeyId:               &entity.PrimaryKey.KeyId,
	}
	if err := sig.SignKey(subPub, entity.PrivateKey, nil); err != nil {
		return fmt.Errorf("security: bind pgp encryption subkey: %w", err)
	}

	entity.Subkeys = append(entity.Subkeys, openpgp.Subkey{
		PublicKey:  subPub,
		PrivateKey: subPriv,
		Sig:        sig,
	})
	return nil
}

func armorWrite(blockType string, serialize func(w io.Writer) error) ([]byte, error) {
	var buf bytes.Buffer
	w, err := armor.Encode(&buf, blockType, nil)
	if err != nil {
		return nil, err
	}
	if err := serialize(w); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
