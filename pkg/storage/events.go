package storage

import (
	"bytes"
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/dpc/rostra/pkg/rostra"
)

// ContentStateKind tags the state of an event's separately-stored content.
type ContentStateKind uint8

const (
	// ContentMissing is the implicit state of any event with no record in
	// events_content: the content has not arrived yet. It is never stored
	// explicitly.
	ContentMissing ContentStateKind = iota
	ContentPresent
	ContentDeleted
	ContentPruned
	ContentInvalid
)

// contentRecord is the JSON-encoded value stored in events_content.
type contentRecord struct {
	State     ContentStateKind     `json:"state"`
	DeletedBy *rostra.ShortEventId `json:"deleted_by,omitempty"`
	Bytes     []byte               `json:"bytes,omitempty"`
}

// ContentState is the caller-facing view of an event's content record.
type ContentState struct {
	Kind      ContentStateKind
	DeletedBy rostra.ShortEventId // valid iff Kind == ContentDeleted
	Bytes     []byte              // valid iff Kind == ContentPresent or ContentInvalid
}

// ProcessState is the result of ProcessEvent: whether the event was new to
// this store, and whether its content is still wanted.
type ProcessState struct {
	New          bool
	WantsContent bool
}

// eventRecord is the fixed-size on-disk encoding of a SignedEvent: the
// canonical 128-byte Event encoding followed by its 64-byte signature,
// reusing rostra.Event's own encoding rather than introducing a second
// format for the same bytes.
func encodeSignedEvent(se rostra.SignedEvent) []byte {
	enc := se.Event.Encode()
	buf := make([]byte, 0, len(enc)+len(se.Signature))
	buf = append(buf, enc[:]...)
	buf = append(buf, se.Signature[:]...)
	return buf
}

func decodeSignedEvent(buf []byte) (rostra.SignedEvent, error) {
	const eventLen = 128
	const sigLen = 64
	if len(buf) != eventLen+sigLen {
		return rostra.SignedEvent{}, fmt.Errorf("storage: stored event has length %d, want %d", len(buf), eventLen+sigLen)
	}
	event, err := rostra.DecodeEvent(buf[:eventLen])
	if err != nil {
		return rostra.SignedEvent{}, err
	}
	var sig rostra.Signature
	copy(sig[:], buf[eventLen:])
	return rostra.SignedEvent{Event: event, Signature: sig}, nil
}

// GetEvent returns the stored SignedEvent for id, if any.
func (db *DB) GetEvent(id rostra.ShortEventId) (rostra.SignedEvent, bool, error) {
	var se rostra.SignedEvent
	var found bool
	err := db.bolt.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketEvents).Get(id[:])
		if raw == nil {
			return nil
		}
		var err error
		se, err = decodeSignedEvent(raw)
		found = err == nil
		return err
	})
	return se, found, err
}

// GetEventContent returns the content state for id, if a record exists.
func (db *DB) GetEventContent(id rostra.ShortEventId) (ContentState, bool, error) {
	var state ContentState
	var found bool
	err := db.bolt.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketEventsContent).Get(id[:])
		if raw == nil {
			return nil
		}
		var rec contentRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return err
		}
		found = true
		state.Kind = rec.State
		state.Bytes = rec.Bytes
		if rec.DeletedBy != nil {
			state.DeletedBy = *rec.DeletedBy
		}
		return nil
	})
	return state, found, err
}

// ProcessEvent applies a verified event to the store: inserting it, fixing
// up the heads/missing-parents indices, and applying kind-specific social
// side effects, all within one write transaction. It is idempotent: an
// already-stored event is reported as not-new with no further changes.
func (db *DB) ProcessEvent(self rostra.RostraId, ve rostra.VerifiedEvent) (ProcessState, error) {
	var result ProcessState
	event := ve.Signed.Event
	id := ve.Id.Short()

	err := db.bolt.Update(func(tx *bolt.Tx) error {
		eventsB := tx.Bucket(bucketEvents)
		if eventsB.Get(id[:]) != nil {
			result = ProcessState{New: false, WantsContent: false}
			return nil
		}

		if err := eventsB.Put(id[:], encodeSignedEvent(ve.Signed)); err != nil {
			return err
		}
		if err := tx.Bucket(bucketEventsByTime).Put(timeShortKey(event.Timestamp, id), nil); err != nil {
			return err
		}
		if event.Author == self {
			if err := tx.Bucket(bucketEventsSelf).Put(id[:], nil); err != nil {
				return err
			}
		}

		missingB := tx.Bucket(bucketEventsMissing)
		headsB := tx.Bucket(bucketEventsHeads)

		for _, parent := range []*rostra.ShortEventId{event.ParentPrev, event.ParentAux} {
			if parent == nil {
				continue
			}
			if eventsB.Get(parent[:]) == nil {
				if err := missingB.Put(authorShortKey(event.Author, *parent), mustJSON(missingRecord{})); err != nil {
					return err
				}
			}
			if err := headsB.Delete(authorShortKey(event.Author, *parent)); err != nil {
				return err
			}
		}

		// An event is a head unless some other stored event already
		// references it as a parent. An earlier-stored child that named it
		// left a missing record for it, so a missing record means it is not
		// a head. A later event referencing it removes it above.
		missingKey := authorShortKey(event.Author, id)
		if missingB.Get(missingKey) == nil {
			if err := headsB.Put(missingKey, nil); err != nil {
				return err
			}
		}

		if err := missingB.Delete(missingKey); err != nil {
			return err
		}

		if err := db.applyHeaderSideEffectsTx(tx, event, id); err != nil {
			return err
		}

		wantsContent := event.ContentLen > 0
		if wantsContent {
			if raw := tx.Bucket(bucketEventsContent).Get(id[:]); raw != nil {
				var rec contentRecord
				if err := json.Unmarshal(raw, &rec); err != nil {
					return err
				}
				if rec.State == ContentPresent {
					wantsContent = false
				}
			}
		}

		result = ProcessState{New: true, WantsContent: wantsContent}
		return nil
	})
	if err != nil {
		return ProcessState{}, err
	}

	if result.New && event.Author == self {
		db.notifySelfHeadChanged(id)
	}
	return result, nil
}

type missingRecord struct {
	DeletedBy *rostra.ShortEventId `json:"deleted_by,omitempty"`
}

// ProcessEventContent stores content for an event whose length and hash
// have already been verified against it. Content arriving for an event
// already marked Deleted or Invalid is ignored: a later DELETE that arrived
// first wins. Content arriving for an event already marked Present is
// rejected with rostra.ErrContentMismatch unless it is byte-identical to
// what is already stored: VerifiedEventContent's fields are exported, so a
// caller outside pkg/rostra.VerifyContent could in principle hand this two
// different byte slices for the same content-addressed event, and this is
// the layer that must refuse to silently accept the second one (invariant
// I4).
func (db *DB) ProcessEventContent(vc rostra.VerifiedEventContent) error {
	id := vc.Event.Id.Short()
	err := db.bolt.Update(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketEvents).Get(id[:])
		if raw == nil {
			return nil
		}
		event, err := decodeSignedEvent(raw)
		if err != nil {
			return err
		}

		contentB := tx.Bucket(bucketEventsContent)
		if existingRaw := contentB.Get(id[:]); existingRaw != nil {
			var existing contentRecord
			if err := json.Unmarshal(existingRaw, &existing); err != nil {
				return err
			}
			switch existing.State {
			case ContentDeleted, ContentInvalid:
				return nil
			case ContentPresent:
				if !bytes.Equal(existing.Bytes, vc.Content) {
					return rostra.ErrContentMismatch
				}
			}
		}
		rec := contentRecord{State: ContentPresent, Bytes: vc.Content}
		if err := contentB.Put(id[:], mustJSON(rec)); err != nil {
			return err
		}

		return db.applyContentSideEffectsTx(tx, event.Event, id, vc.Content)
	})
	kind := vc.Event.Signed.Event.Kind
	if err == nil && (kind == rostra.EventKindFollow || kind == rostra.EventKindUnfollow) {
		db.notifyFollowersChanged()
	}
	return err
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("storage: marshaling internal record: %v", err))
	}
	return b
}
