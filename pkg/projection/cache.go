package projection

import (
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/cimkeys/cim-keys/pkg/id"
)

// Cache is a disposable, bbolt-backed replay index: a bucket-per-kind
// lookup table read through Get, never the source of truth. The CLI
// reads from the in-memory projection, not from this cache. Grounded on the teacher's BoltStore (pkg/storage/boltdb.go),
// generalized from one bucket per Warren resource kind to one bucket
// per CIM aggregate kind, plus a meta bucket tracking the last event
// folded into it.
type Cache struct {
	db *bolt.DB
}

var cacheBuckets = [][]byte{
	[]byte("people"), []byte("organizations"), []byte("locations"),
	[]byte("certificates"), []byte("keys"), []byte("yubikeys"),
	[]byte("nats_operators"), []byte("nats_accounts"), []byte("nats_users"),
	[]byte("relationships"), []byte("meta"),
}

var bucketMeta = []byte("meta")

var metaKeyLastEventID = []byte("last_event_id")

// OpenCache opens (creating if absent) the bbolt file at path and
// ensures every aggregate-kind bucket exists.
func OpenCache(path string) (*Cache, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("projection: open cache %q: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range cacheBuckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("projection: create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Cache{db: db}, nil
}

// Close releases the underlying bbolt handle.
func (c *Cache) Close() error {
	return c.db.Close()
}

// LastEventID returns the event ID the cache was last rebuilt
// through, and whether one has been recorded
// yet (false on a freshly created cache).
func (c *Cache) LastEventID() (id.Id, bool, error) {
	var last id.Id
	found := false
	err := c.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketMeta).Get(metaKeyLastEventID)
		if data == nil {
			return nil
		}
		parsed, err := id.Parse(string(data))
		if err != nil {
			return fmt.Errorf("projection: parse cached last event id: %w", err)
		}
		last, found = parsed, true
		return nil
	})
	return last, found, err
}

// Trusted reports whether the cache's LastEventID matches tailEventID,
// the ID of the last line in events.jsonl. A mismatch means the cache
// is stale (a crash occurred between a write and a cache advance, or
// the cache predates the log) and must be rebuilt by full replay.
func (c *Cache) Trusted(tailEventID id.Id) (bool, error) {
	last, found, err := c.LastEventID()
	if err != nil {
		return false, err
	}
	return found && last == tailEventID, nil
}

// Rebuild truncates every bucket and repopulates it from view, then
// records lastEventID — the full-replay fallback spec §4.8's cache
// note describes.
func (c *Cache) Rebuild(view *View, lastEventID id.Id) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		for _, b := range cacheBuckets {
			if err := tx.DeleteBucket(b); err != nil && err != bolt.ErrBucketNotFound {
				return fmt.Errorf("projection: delete bucket %s: %w", b, err)
			}
			if _, err := tx.CreateBucket(b); err != nil {
				return fmt.Errorf("projection: recreate bucket %s: %w", b, err)
			}
		}

		put := func(bucket []byte, key string, v any) error {
			data, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("projection: marshal cache record: %w", err)
			}
			return tx.Bucket(bucket).Put([]byte(key), data)
		}

		for k, v := range view.People {
			if err := put([]byte("people"), k.String(), v); err != nil {
				return err
			}
		}
		for k, v := range view.Organizations {
			if err := put([]byte("organizations"), k.String(), v); err != nil {
				return err
			}
		}
		for k, v := range view.Locations {
			if err := put([]byte("locations"), k.String(), v); err != nil {
				return err
			}
		}
		for k, v := range view.Certificates {
			if err := put([]byte("certificates"), k.String(), v); err != nil {
				return err
			}
		}
		for k, v := range view.Keys {
			if err := put([]byte("keys"), k.String(), v); err != nil {
				return err
			}
		}
		for k, v := range view.YubiKeys {
			if err := put([]byte("yubikeys"), k.String(), v); err != nil {
				return err
			}
		}
		for k, v := range view.NatsOperators {
			if err := put([]byte("nats_operators"), k.String(), v); err != nil {
				return err
			}
		}
		for k, v := range view.NatsAccounts {
			if err := put([]byte("nats_accounts"), k.String(), v); err != nil {
				return err
			}
		}
		for k, v := range view.NatsUsers {
			if err := put([]byte("nats_users"), k.String(), v); err != nil {
				return err
			}
		}
		for k, v := range view.Relationships {
			if err := put([]byte("relationships"), k.String(), v); err != nil {
				return err
			}
		}

		return tx.Bucket(bucketMeta).Put(metaKeyLastEventID, []byte(lastEventID.String()))
	})
}

// Get looks up a single cached record by aggregate-kind bucket name
// and entity ID, unmarshaling into dest.
func (c *Cache) Get(bucket string, entityID id.Id, dest any) (bool, error) {
	var found bool
	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("projection: unknown cache bucket %q", bucket)
		}
		data := b.Get([]byte(entityID.String()))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, dest)
	})
	return found, err
}
