package projection

import (
	"sort"
	"time"

	"github.com/cimkeys/cim-keys/pkg/types"
)

// CertificatesNearingExpiry returns every Active certificate whose
// NotAfter falls within window of now, sorted by NotAfter ascending.
// A read-only projection query supplementing the teacher's
// CertNeedsRotation/GetCertTimeRemaining helpers (pkg/security), which
// inspect a single *x509.Certificate rather than the whole fleet.
func (v *View) CertificatesNearingExpiry(now time.Time, window time.Duration) []*types.Certificate {
	var due []*types.Certificate
	cutoff := now.Add(window)
	for _, cert := range v.Certificates {
		if cert.State != types.CertificateActive {
			continue
		}
		if !cert.NotAfter.After(cutoff) {
			due = append(due, cert)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].NotAfter.Before(due[j].NotAfter) })
	return due
}
