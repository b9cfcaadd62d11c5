// Package policy implements the pure predicate engine of spec §4.9:
// each built-in policy is a function over the narrow slice of command
// and projection state it needs, returning Allow or Deny(reason).
// Command handlers (pkg/command) consult these before any key
// material is generated; a Deny prevents event emission entirely.
//
// There is no teacher analog for a standalone policy engine — the
// teacher validates preconditions inline at the top of each manager
// method (e.g. ca.Initialize checks for an existing CA before
// generating one) and returns early on failure. This package keeps
// that same validate-before-act ordering but factors the checks out
// into named, independently testable predicates.
package policy

import (
	"fmt"
	"time"

	"github.com/cimkeys/cim-keys/pkg/id"
	"github.com/cimkeys/cim-keys/pkg/projection"
	"github.com/cimkeys/cim-keys/pkg/types"
)

// Decision is a policy predicate's verdict.
type Decision struct {
	Denied bool
	Reason string
}

func allow() Decision           { return Decision{} }
func deny(reason string) Decision { return Decision{Denied: true, Reason: reason} }

// Err returns nil for Allow, or a *DeniedError for Deny — the shape
// spec §7's error taxonomy expects handlers to propagate.
func (d Decision) Err() error {
	if !d.Denied {
		return nil
	}
	return &DeniedError{Reason: d.Reason}
}

// DeniedError is spec §7's PolicyDenied(reason).
type DeniedError struct{ Reason string }

func (e *DeniedError) Error() string { return fmt.Sprintf("policy: denied: %s", e.Reason) }

// MaxCertificateChainDepth is the hard ceiling on root->leaf depth
// (spec §4.9).
const MaxCertificateChainDepth = 3

// PIVSlotCompatible enforces that slot is one of the recognized PIV
// slots (spec §3: {9A, 9C, 9D, 9E, 82-95}) and algo is one of the
// four supported key algorithms.
func PIVSlotCompatible(slot types.PIVSlot, algo types.KeyAlgorithm) Decision {
	if !recognizedPIVSlot(slot) {
		return deny(fmt.Sprintf("%q is not a recognized PIV slot", slot))
	}
	switch algo {
	case types.KeyAlgorithmEd25519, types.KeyAlgorithmECDSAP256, types.KeyAlgorithmRSA2048, types.KeyAlgorithmRSA4096:
		return allow()
	default:
		return deny(fmt.Sprintf("%q is not a supported PIV key algorithm", algo))
	}
}

func recognizedPIVSlot(slot types.PIVSlot) bool {
	switch slot {
	case types.PIVSlotAuthentication, types.PIVSlotSigning, types.PIVSlotKeyManagement, types.PIVSlotCardAuth:
		return true
	}
	for n := 1; ; n++ {
		retired, ok := types.RetiredPIVSlot(n)
		if !ok {
			return false
		}
		if retired == slot {
			return true
		}
	}
}

// UniqueCommonName enforces that no other non-revoked certificate
// issued by the same issuer (or, for issuerID's zero value, no other
// self-signed root) already carries subject.
func UniqueCommonName(view *projection.View, issuerID id.Id, subject string) Decision {
	for _, cert := range view.Certificates {
		if cert.IssuerID != issuerID {
			continue
		}
		if cert.State == types.CertificateRevoked {
			continue
		}
		if cert.Subject == subject {
			return deny(fmt.Sprintf("subject %q already issued under this CA scope", subject))
		}
	}
	return allow()
}

// LeafValidityWithinIssuer enforces that issuer is Active and that
// [notBefore, notAfter] falls strictly within issuer's own validity
// window (spec §8's certificate chain soundness property).
func LeafValidityWithinIssuer(issuer *types.Certificate, notBefore, notAfter time.Time) Decision {
	if issuer.State != types.CertificateActive {
		return deny(fmt.Sprintf("issuer %s is not active (state=%s)", issuer.ID, issuer.State))
	}
	if notBefore.Before(issuer.NotBefore) {
		return deny("validity not_before precedes issuer's not_before")
	}
	if notAfter.After(issuer.NotAfter) {
		return deny("validity not_after exceeds issuer's not_after")
	}
	if !notBefore.Before(notAfter) {
		return deny("not_before must precede not_after")
	}
	return allow()
}

// ChainDepth enforces MaxCertificateChainDepth by walking issuerID's
// IssuerID chain up to the self-signed root. issuerID is the
// certificate the new leaf will be signed by; the returned depth
// accounts for the leaf itself.
func ChainDepth(view *projection.View, issuerID id.Id) Decision {
	depth := 1 // the candidate leaf
	cur := issuerID
	for i := 0; i <= MaxCertificateChainDepth+1; i++ {
		if cur.IsZero() {
			if depth > MaxCertificateChainDepth {
				return deny(fmt.Sprintf("chain depth %d exceeds maximum %d", depth, MaxCertificateChainDepth))
			}
			return allow()
		}
		cert, ok := view.Certificates[cur]
		if !ok {
			return deny(fmt.Sprintf("issuer certificate %s not found", cur))
		}
		depth++
		cur = cert.IssuerID
	}
	return deny(fmt.Sprintf("chain depth exceeds maximum %d (cycle or runaway chain)", MaxCertificateChainDepth))
}
