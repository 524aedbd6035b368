package storage

import (
	"encoding/binary"

	"github.com/dpc/rostra/pkg/rostra"
)

// Composite keys are plain concatenations of fixed-width big-endian fields,
// matching the canonical Event encoding's own style: bbolt orders keys
// lexicographically, so a big-endian timestamp prefix gives chronological
// iteration for free and a (partition, member) prefix gives range-bounded
// iteration scoped to one partition.

func timestampKeyPart(ts rostra.Timestamp) [8]byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(ts))
	return b
}

func authorShortKey(author rostra.RostraId, id rostra.ShortEventId) []byte {
	key := make([]byte, 0, rostra.RostraIdLen+rostra.ShortEventIdLen)
	key = append(key, author[:]...)
	key = append(key, id[:]...)
	return key
}

func splitAuthorShortKey(key []byte) (rostra.RostraId, rostra.ShortEventId) {
	var author rostra.RostraId
	var id rostra.ShortEventId
	copy(author[:], key[:rostra.RostraIdLen])
	copy(id[:], key[rostra.RostraIdLen:rostra.RostraIdLen+rostra.ShortEventIdLen])
	return author, id
}

func timeShortKey(ts rostra.Timestamp, id rostra.ShortEventId) []byte {
	tsb := timestampKeyPart(ts)
	key := make([]byte, 0, 8+rostra.ShortEventIdLen)
	key = append(key, tsb[:]...)
	key = append(key, id[:]...)
	return key
}

func splitTimeShortKey(key []byte) (rostra.Timestamp, rostra.ShortEventId) {
	ts := rostra.Timestamp(binary.BigEndian.Uint64(key[:8]))
	var id rostra.ShortEventId
	copy(id[:], key[8:8+rostra.ShortEventIdLen])
	return ts, id
}

func partitionShortKey(partition, member rostra.ShortEventId) []byte {
	key := make([]byte, 0, 2*rostra.ShortEventIdLen)
	key = append(key, partition[:]...)
	key = append(key, member[:]...)
	return key
}

func splitPartitionShortKey(key []byte) (rostra.ShortEventId, rostra.ShortEventId) {
	var partition, member rostra.ShortEventId
	copy(partition[:], key[:rostra.ShortEventIdLen])
	copy(member[:], key[rostra.ShortEventIdLen:2*rostra.ShortEventIdLen])
	return partition, member
}

func rostraIdPairKey(a, b rostra.RostraId) []byte {
	key := make([]byte, 0, 2*rostra.RostraIdLen)
	key = append(key, a[:]...)
	key = append(key, b[:]...)
	return key
}

func splitRostraIdPairKey(key []byte) (rostra.RostraId, rostra.RostraId) {
	var a, b rostra.RostraId
	copy(a[:], key[:rostra.RostraIdLen])
	copy(b[:], key[rostra.RostraIdLen:2*rostra.RostraIdLen])
	return a, b
}
