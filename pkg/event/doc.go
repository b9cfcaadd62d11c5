/*
Package event defines the domain event model the command layer emits
and the projection layer folds: an Envelope (correlation metadata), a
Kind discriminator, and a typed inner payload, wrapped together as a
DomainEvent.

# Canonical serialization

DomainEvent.MarshalJSON always produces canonical JSON — keys sorted
recursively, no whitespace, numbers preserved in their original textual
form — so that two independent runs over the same commands produce a
byte-identical events.jsonl. Canonicalize is exported separately so
pkg/projection can apply the same transform to the manifest and
per-aggregate record files it writes.

# Live subscription

Broker is a process-local pub/sub distributor for already-emitted
events, useful for a CLI progress view during a long bootstrap run. It
holds no state the projection depends on; pkg/projection's writer is
the only durable sink.
*/
package event
