package storage

import (
	bolt "go.etcd.io/bbolt"
)

// Stats is a point-in-time snapshot of table sizes, polled periodically
// from pkg/metrics. Each count comes from bbolt's Bucket.Stats, which walks
// the bucket's pages, so its cost grows with table size.
type Stats struct {
	Events         int
	MissingParents int
	MissingContent int
	Followers      int
}

// Stats reports the current size of every table pkg/metrics polls.
func (db *DB) Stats() (Stats, error) {
	var s Stats
	err := db.bolt.View(func(tx *bolt.Tx) error {
		s.Events = tx.Bucket(bucketEvents).Stats().KeyN
		s.MissingParents = tx.Bucket(bucketEventsMissing).Stats().KeyN
		s.Followers = tx.Bucket(bucketIdsFollowers).Stats().KeyN

		content := tx.Bucket(bucketEventsContent).Stats().KeyN
		s.MissingContent = s.Events - content
		if s.MissingContent < 0 {
			s.MissingContent = 0
		}
		return nil
	})
	return s, err
}
