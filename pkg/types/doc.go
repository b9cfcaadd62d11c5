/*
Package types defines the eleven aggregate records of the trust-domain
core: Person, Organization, Location, Certificate, Key, YubiKey,
NatsOperator, NatsAccount, NatsUser, Relationship, and Manifest.

# Architecture

Every aggregate record carries an Id (pkg/id), a typed FSM state
(validated by pkg/aggregate's transition tables), and a SchemaVersion
for forward-compatible event replay. Records hold only public data:
private key material lives in a secretbuf.Buffer during command
execution and is sealed (pkg/security.Seal) only when written to disk;
the projection never populates Key.SealedSecret.

# Relationships

Cross-references between aggregates are always by Id, never embedded:
a Certificate's IssuerID points at another Certificate, a YubiKey's
KeyBinding points at a Key, and arbitrary directed edges between any
two entities are modeled as a standalone Relationship rather than by
one entity holding a reference to another.

# State machines

Each aggregate's legal states and transitions are enumerated in
pkg/aggregate, not here; types.go only names the state constants a
record's State field can hold.
*/
package types
