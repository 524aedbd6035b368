package storage

import (
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
	bolt "go.etcd.io/bbolt"
)

// Bucket names, one per conceptual table in the data model. Kept as
// package vars rather than consts since bolt's API wants []byte.
var (
	bucketEvents              = []byte("events")
	bucketEventsContent       = []byte("events_content")
	bucketEventsMissing       = []byte("events_missing")
	bucketEventsHeads         = []byte("events_heads")
	bucketEventsByTime        = []byte("events_by_time")
	bucketEventsSelf          = []byte("events_self")
	bucketIdsSelf             = []byte("ids_self")
	bucketIdsFull             = []byte("ids_full")
	bucketIdsFollowees        = []byte("ids_followees")
	bucketIdsFollowers        = []byte("ids_followers")
	bucketIdsUnfollowed       = []byte("ids_unfollowed")
	bucketIdsNodes            = []byte("ids_nodes")
	bucketSocialProfiles      = []byte("social_profiles")
	bucketSocialPosts         = []byte("social_posts")
	bucketSocialPostsByTime   = []byte("social_posts_by_time")
	bucketSocialPostsReplies  = []byte("social_posts_replies")
	bucketSocialPostsReacts   = []byte("social_posts_reactions")
	bucketDbVersion           = []byte("db_version")

	allBuckets = [][]byte{
		bucketEvents,
		bucketEventsContent,
		bucketEventsMissing,
		bucketEventsHeads,
		bucketEventsByTime,
		bucketEventsSelf,
		bucketIdsSelf,
		bucketIdsFull,
		bucketIdsFollowees,
		bucketIdsFollowers,
		bucketIdsUnfollowed,
		bucketIdsNodes,
		bucketSocialProfiles,
		bucketSocialPosts,
		bucketSocialPostsByTime,
		bucketSocialPostsReplies,
		bucketSocialPostsReacts,
		bucketDbVersion,
	}
)

// dbVersionKey is the single key under bucketDbVersion holding the schema
// version as an 8-byte big-endian u64.
var dbVersionKey = []byte("version")

// DB is the bbolt-backed event DAG store. A single DB is shared read-only
// by every worker and the RPC handlers; only the event-processing path and
// explicit local writes take the write transaction.
type DB struct {
	bolt *bolt.DB
	lock *flock.Flock

	selfHead      *watchValue[*selfHeadValue]
	selfFollowers *watchValue[struct{}]
}

// Open opens (creating if absent) the bbolt database at dataDir/rostra.db,
// ensures every bucket exists, and runs any pending schema migrations.
//
// An advisory lock on dataDir/rostra.lock is taken first and held for the
// life of the DB: bbolt's own file lock only guards rostra.db itself, not
// the identity mnemonic file cmd/rostra-node keeps alongside it, so a
// second process opening the same data directory (e.g. a mistaken second
// `rostra-node start`) fails fast here instead of corrupting bbolt's lock
// semantics or racing the mnemonic file.
func Open(dataDir string) (*DB, error) {
	lock := flock.New(filepath.Join(dataDir, "rostra.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("storage: locking data directory: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("storage: data directory %s is already in use by another process", dataDir)
	}

	dbPath := filepath.Join(dataDir, "rostra.db")

	bdb, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("storage: opening database: %w", err)
	}

	db := &DB{
		bolt:          bdb,
		lock:          lock,
		selfHead:      newWatchValue[*selfHeadValue](nil),
		selfFollowers: newWatchValue[struct{}](struct{}{}),
	}

	if err := db.bolt.Update(func(tx *bolt.Tx) error {
		for _, b := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("storage: creating bucket %s: %w", b, err)
			}
		}
		return nil
	}); err != nil {
		bdb.Close()
		_ = lock.Unlock()
		return nil, err
	}

	if err := db.migrate(); err != nil {
		bdb.Close()
		_ = lock.Unlock()
		return nil, err
	}

	return db, nil
}

// Close closes the underlying database and releases the data directory lock.
func (db *DB) Close() error {
	err := db.bolt.Close()
	_ = db.lock.Unlock()
	return err
}
