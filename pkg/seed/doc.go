// Package seed implements deterministic secret derivation (spec §4.3,
// C3): a passphrase is stretched into a 32-byte master seed with
// Argon2id, and every algorithm-specific key pair is then derived from
// that seed via HKDF-SHA256, salted by an ordered subkey label so two
// distinct purposes never share bytes.
//
// The KDF salt is fixed ("cim-keys:v1:"+tag), which is acceptable only
// because this tool has exactly one user-known secret (the passphrase)
// and exactly one operator per install; see spec §9's open question.
// Nothing here should be reused in a setting with more than one
// passphrase holder without adding per-install salt material.
package seed
