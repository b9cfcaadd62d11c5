/*
Package manager is the single-writer orchestrator: it owns the master
seed, replays a store's event log on open, and serializes every
Submit call so dispatch, projection fold, and durable write happen in
a fixed order with no concurrent writer.

# Lifecycle

New opens cfg.DataDir, replaying events.jsonl into a fresh projection
and verifying the bbolt replay cache against the replayed tail,
rebuilding it on mismatch. Close stops the event broker and the
cache.

# Submit

Submit locks, dispatches cmd to its pkg/command handler, folds the
returned events into the projection, writes them through pkg/
projection's writer, rebuilds the replay cache, and publishes the
events to any subscriber — in that order:

	events, err := mgr.Submit(ctx, command.GenerateRootCA{...})

# Sealing

Manager implements projection.SecretMaterial: SealedKey and
SealedNatsSeed re-derive private material from the master seed at
write time and seal it under a wrap key (spec §4.9.1), since the
projection itself never holds private bytes.
*/
package manager
