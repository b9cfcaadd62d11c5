// Package secretbuf implements the secret buffer contract of spec §4.2:
// scoped acquisition of memory holding secret bytes, with a hard
// guarantee that the backing array is zeroed before it is released on
// every exit path — normal return, error, or panic recovery by the
// caller.
//
// There is deliberately no third-party dependency here. The contract
// is a guarantee, not a convenience, and the safest implementation is
// the explicit one: a byte-for-byte overwrite plus a runtime.AddCleanup
// backstop for buffers a caller forgets to Destroy.
package secretbuf
