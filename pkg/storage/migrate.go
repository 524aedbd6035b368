package storage

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

// currentDbVersion is the schema version this build of the code expects.
// Bumping it requires appending a migration function to migrations below;
// never changing the meaning of an already-released version number.
const currentDbVersion uint64 = 1

// ErrDbVersionTooHigh is returned by migrate when the database was written
// by a newer build than this one: downgrading is refused rather than risked.
var ErrDbVersionTooHigh = errors.New("storage: database schema version is newer than this build supports")

// migration upgrades the database from version (idx) to (idx+1) within a
// single bbolt write transaction. migrations[i] takes the db from i to i+1.
type migration func(tx *bolt.Tx) error

// migrations holds every upgrade step in order; migrations[i] runs only
// when the stored version is exactly i. There are none yet since this
// schema has only ever existed at version 1 — this slice is where future
// migrate_vN-style steps get appended, following the rename-iterate-insert-
// drop pattern used by the reference implementation's migration engine.
var migrations = []migration{}

func readDbVersion(tx *bolt.Tx) uint64 {
	b := tx.Bucket(bucketDbVersion)
	raw := b.Get(dbVersionKey)
	if raw == nil {
		return 0
	}
	return binary.BigEndian.Uint64(raw)
}

func writeDbVersion(tx *bolt.Tx, version uint64) error {
	b := tx.Bucket(bucketDbVersion)
	var raw [8]byte
	binary.BigEndian.PutUint64(raw[:], version)
	return b.Put(dbVersionKey, raw[:])
}

// migrate brings a freshly opened database up to currentDbVersion,
// running each pending migration in its own write transaction, or fails
// fatally if the database is newer than this build understands.
func (db *DB) migrate() error {
	var stored uint64
	if err := db.bolt.View(func(tx *bolt.Tx) error {
		stored = readDbVersion(tx)
		return nil
	}); err != nil {
		return fmt.Errorf("storage: reading schema version: %w", err)
	}

	if stored > currentDbVersion {
		return fmt.Errorf("%w: have %d, want %d", ErrDbVersionTooHigh, stored, currentDbVersion)
	}

	if stored == 0 && currentDbVersion > 0 && len(migrations) == 0 {
		// Fresh database: no migrations to run, just stamp the version.
		if err := db.bolt.Update(func(tx *bolt.Tx) error {
			return writeDbVersion(tx, currentDbVersion)
		}); err != nil {
			return fmt.Errorf("storage: stamping schema version: %w", err)
		}
		return nil
	}

	for v := stored; v < currentDbVersion; v++ {
		step := migrations[v]
		if err := db.bolt.Update(func(tx *bolt.Tx) error {
			if err := step(tx); err != nil {
				return fmt.Errorf("storage: migration %d->%d: %w", v, v+1, err)
			}
			return writeDbVersion(tx, v+1)
		}); err != nil {
			return err
		}
	}

	return nil
}

// renameBucketTx implements the rename-iterate-insert-drop migration
// pattern: copy every key/value from src into a freshly created dst bucket,
// then delete src. Used by future migration steps that need to change a
// bucket's key or value encoding.
func renameBucketTx(tx *bolt.Tx, src, dst []byte, transform func(k, v []byte) (nk, nv []byte, err error)) error {
	srcBucket := tx.Bucket(src)
	if srcBucket == nil {
		return fmt.Errorf("storage: migration source bucket %s missing", src)
	}
	dstBucket, err := tx.CreateBucketIfNotExists(dst)
	if err != nil {
		return fmt.Errorf("storage: creating migration target bucket %s: %w", dst, err)
	}

	if err := srcBucket.ForEach(func(k, v []byte) error {
		nk, nv, err := transform(k, v)
		if err != nil {
			return err
		}
		return dstBucket.Put(nk, nv)
	}); err != nil {
		return err
	}

	if !bytes.Equal(src, dst) {
		return tx.DeleteBucket(src)
	}
	return nil
}
