package storage

import (
	"bytes"

	bolt "go.etcd.io/bbolt"

	"github.com/dpc/rostra/pkg/rostra"
)

// Page is the result of one pagination call: the filtered items found, and
// the cursor to pass to the next call to resume exactly where this one
// left off. A nil NextCursor means the scan reached the end of the table
// (or partition).
type Page[R any] struct {
	Items      []R
	NextCursor []byte
}

// decodeFunc turns a raw (k, v) pair into a result and reports whether it
// should be included; returning false lets a scan skip entries without
// counting them against limit.
type decodeFunc[R any] func(k, v []byte) (R, bool)

// paginateForward scans bucket in ascending key order, starting at cursor
// (or the first key if cursor is nil), returning up to limit matching
// results.
func paginateForward[R any](tx *bolt.Tx, bucket []byte, cursor []byte, limit int, decode decodeFunc[R]) Page[R] {
	c := tx.Bucket(bucket).Cursor()
	var k, v []byte
	if cursor == nil {
		k, v = c.First()
	} else {
		k, v = c.Seek(cursor)
	}

	var items []R
	for ; k != nil; k, v = c.Next() {
		if len(items) >= limit {
			return Page[R]{Items: items, NextCursor: append([]byte{}, k...)}
		}
		if r, ok := decode(k, v); ok {
			items = append(items, r)
		}
	}
	return Page[R]{Items: items}
}

// seekAtOrBefore positions c at the last key <= target, or at the last key
// in the bucket if target is past the end.
func seekAtOrBefore(c *bolt.Cursor, target []byte) ([]byte, []byte) {
	k, v := c.Seek(target)
	if k != nil && bytes.Equal(k, target) {
		return k, v
	}
	if k == nil {
		return c.Last()
	}
	return c.Prev()
}

// paginateReverse scans bucket in descending key order, starting at cursor
// (or the last key if cursor is nil), returning up to limit matching
// results.
func paginateReverse[R any](tx *bolt.Tx, bucket []byte, cursor []byte, limit int, decode decodeFunc[R]) Page[R] {
	c := tx.Bucket(bucket).Cursor()
	var k, v []byte
	if cursor == nil {
		k, v = c.Last()
	} else {
		k, v = seekAtOrBefore(c, cursor)
	}

	var items []R
	for ; k != nil; k, v = c.Prev() {
		if len(items) >= limit {
			return Page[R]{Items: items, NextCursor: append([]byte{}, k...)}
		}
		if r, ok := decode(k, v); ok {
			items = append(items, r)
		}
	}
	return Page[R]{Items: items}
}

// prefixUpperBound returns the lexicographically smallest key strictly
// greater than every key with the given prefix, or nil if prefix is all
// 0xFF bytes (no such bound exists within the keyspace).
func prefixUpperBound(prefix []byte) []byte {
	upper := append([]byte{}, prefix...)
	for i := len(upper) - 1; i >= 0; i-- {
		if upper[i] < 0xFF {
			upper[i]++
			return upper[:i+1]
		}
	}
	return nil
}

func lastKeyWithPrefix(c *bolt.Cursor, prefix []byte) ([]byte, []byte) {
	upper := prefixUpperBound(prefix)
	if upper == nil {
		return c.Last()
	}
	k, v := c.Seek(upper)
	if k == nil {
		return c.Last()
	}
	return c.Prev()
}

// paginatePartitionForward scans only keys sharing the given partition
// prefix, in ascending order, starting at cursor (or the start of the
// partition if cursor is nil).
func paginatePartitionForward[R any](tx *bolt.Tx, bucket []byte, partition []byte, cursor []byte, limit int, decode decodeFunc[R]) Page[R] {
	c := tx.Bucket(bucket).Cursor()
	start := cursor
	if start == nil {
		start = partition
	}

	var items []R
	for k, v := c.Seek(start); k != nil && hasPrefix(k, partition); k, v = c.Next() {
		if len(items) >= limit {
			return Page[R]{Items: items, NextCursor: append([]byte{}, k...)}
		}
		if r, ok := decode(k, v); ok {
			items = append(items, r)
		}
	}
	return Page[R]{Items: items}
}

// paginatePartitionReverse scans only keys sharing the given partition
// prefix, in descending order, starting at cursor (or the end of the
// partition if cursor is nil).
func paginatePartitionReverse[R any](tx *bolt.Tx, bucket []byte, partition []byte, cursor []byte, limit int, decode decodeFunc[R]) Page[R] {
	c := tx.Bucket(bucket).Cursor()
	var k, v []byte
	if cursor == nil {
		k, v = lastKeyWithPrefix(c, partition)
	} else {
		k, v = seekAtOrBefore(c, cursor)
	}

	var items []R
	for ; k != nil && hasPrefix(k, partition); k, v = c.Prev() {
		if len(items) >= limit {
			return Page[R]{Items: items, NextCursor: append([]byte{}, k...)}
		}
		if r, ok := decode(k, v); ok {
			items = append(items, r)
		}
	}
	return Page[R]{Items: items}
}

// Timeline paginates every post across all authors, newest first, starting
// at cursor (nil for the most recent page).
func (db *DB) Timeline(cursor []byte, limit int) (Page[rostra.ShortEventId], error) {
	var page Page[rostra.ShortEventId]
	err := db.bolt.View(func(tx *bolt.Tx) error {
		page = paginateReverse(tx, bucketSocialPostsByTime, cursor, limit, func(k, _ []byte) (rostra.ShortEventId, bool) {
			_, id := splitTimeShortKey(k)
			return id, true
		})
		return nil
	})
	return page, err
}

// Replies paginates the replies to parent, oldest first.
func (db *DB) Replies(parent rostra.ShortEventId, cursor []byte, limit int) (Page[rostra.ShortEventId], error) {
	var page Page[rostra.ShortEventId]
	err := db.bolt.View(func(tx *bolt.Tx) error {
		page = paginatePartitionForward(tx, bucketSocialPostsReplies, parent[:], cursor, limit, func(k, _ []byte) (rostra.ShortEventId, bool) {
			_, member := splitPartitionShortKey(k)
			return member, true
		})
		return nil
	})
	return page, err
}

// Reactions paginates the upvotes/reposts against target, oldest first.
func (db *DB) Reactions(target rostra.ShortEventId, cursor []byte, limit int) (Page[rostra.ShortEventId], error) {
	var page Page[rostra.ShortEventId]
	err := db.bolt.View(func(tx *bolt.Tx) error {
		page = paginatePartitionForward(tx, bucketSocialPostsReacts, target[:], cursor, limit, func(k, _ []byte) (rostra.ShortEventId, bool) {
			_, member := splitPartitionShortKey(k)
			return member, true
		})
		return nil
	})
	return page, err
}

// HeadsForAuthor paginates author's current DAG heads.
func (db *DB) HeadsForAuthor(author rostra.RostraId, cursor []byte, limit int) (Page[rostra.ShortEventId], error) {
	var page Page[rostra.ShortEventId]
	err := db.bolt.View(func(tx *bolt.Tx) error {
		page = paginatePartitionForward(tx, bucketEventsHeads, author[:], cursor, limit, func(k, _ []byte) (rostra.ShortEventId, bool) {
			_, id := splitAuthorShortKey(k)
			return id, true
		})
		return nil
	})
	return page, err
}

// MissingParentsForAuthor paginates the event ids referenced by some
// stored event of author's but not themselves stored yet.
func (db *DB) MissingParentsForAuthor(author rostra.RostraId, cursor []byte, limit int) (Page[rostra.ShortEventId], error) {
	var page Page[rostra.ShortEventId]
	err := db.bolt.View(func(tx *bolt.Tx) error {
		page = paginatePartitionForward(tx, bucketEventsMissing, author[:], cursor, limit, func(k, _ []byte) (rostra.ShortEventId, bool) {
			_, id := splitAuthorShortKey(k)
			return id, true
		})
		return nil
	})
	return page, err
}

// MissingContent paginates every stored event whose content is not yet
// Present (and not Deleted/Pruned/Invalid), across all authors, for the
// missing-content fetcher's backfill passes.
func (db *DB) MissingContent(cursor []byte, limit int) (Page[rostra.ShortEventId], error) {
	var page Page[rostra.ShortEventId]
	err := db.bolt.View(func(tx *bolt.Tx) error {
		contentB := tx.Bucket(bucketEventsContent)
		page = paginateForward(tx, bucketEvents, cursor, limit, func(k, _ []byte) (rostra.ShortEventId, bool) {
			var id rostra.ShortEventId
			copy(id[:], k)
			se, err := decodeSignedEvent(tx.Bucket(bucketEvents).Get(k))
			if err != nil || se.Event.ContentLen == 0 {
				return id, false
			}
			if contentB.Get(k) != nil {
				return id, false
			}
			return id, true
		})
		return nil
	})
	return page, err
}
