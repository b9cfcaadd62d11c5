/*
Package security implements the cryptographic generators of spec §4.4
(C4): deterministic key pairs, X.509 issuance, and the export formats
an operator hands off to other tools (SSH, OpenPGP, NATS).

# Architecture

	┌───────────────────────────────────────────────────────────┐
	│                   Cryptographic generators                │
	└───┬──────────┬───────────┬────────────┬──────────┬────────┘
	    ▼          ▼           ▼            ▼          ▼
	Ed25519     ECDSA P-256   RSA        X.509 CA    SSH / PGP / NATS
	(seeded)    (seeded)    (DRBG'd)     issuance      export formats

Every generator is fed a deterministic seed stream produced by
pkg/seed; none call crypto/rand for key material. crypto/rand is used
only where non-deterministic bytes are explicitly safe: AES-GCM nonces
when encrypting already-derived secrets at rest, and a handful of
upstream library internals (OpenPGP signature padding) that don't
expose a way to supply their own randomness source.

# At-rest encryption

Private key material written to the projection (spec §4.8) is
encrypted with AES-256-GCM under a key derived from the master seed
(not a cluster-wide key as in the teacher's original SecretsManager —
there is exactly one operator and one seed here, so the single wrap
key derives from pkg/seed.Subkey like everything else).

# Determinism

Ed25519 and ECDSA P-256 derive directly from seed bytes. RSA does not
have a stdlib entry point that accepts a seed; crypto/rsa.GenerateKey
instead consumes an io.Reader it treats as a true randomness source
for prime search. rsa.go supplies a deterministic HMAC-SHA256 counter
DRBG as that reader, keyed by the subkey material, so RSA keys are
exactly as reproducible as every other algorithm here (spec §4.4, spec
§9's RSA determinism decision in DESIGN.md).
*/
package security
