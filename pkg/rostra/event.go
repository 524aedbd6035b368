package rostra

import (
	"encoding/binary"
	"fmt"

	"lukechampine.com/blake3"
)

// EventKind tags the interpretation of an event's opaque content.
type EventKind uint16

const (
	// EventKindNull carries no content; used by the head-merger to join two
	// DAG heads into one without asserting anything itself.
	EventKindNull EventKind = 0
	// EventKindRaw carries an application-defined opaque payload the core
	// does not interpret.
	EventKindRaw EventKind = 1
	// EventKindFollow's content decodes to a Follow payload.
	EventKindFollow EventKind = 2
	// EventKindUnfollow's content decodes to an Unfollow payload.
	EventKindUnfollow EventKind = 3
	// EventKindSocialPost's content decodes to a SocialPost payload.
	EventKindSocialPost EventKind = 4
	// EventKindSocialRepost's content decodes to a SocialReaction payload.
	EventKindSocialRepost EventKind = 5
	// EventKindSocialUpvote's content decodes to a SocialReaction payload.
	EventKindSocialUpvote EventKind = 6
	// EventKindSocialProfileUpdate's content decodes to a
	// SocialProfileUpdate payload.
	EventKindSocialProfileUpdate EventKind = 7
	// EventKindDelete marks its ParentAux target's content Deleted.
	EventKindDelete EventKind = 8
	// EventKindNodeAnnouncement's content decodes to node/endpoint info
	// published alongside identity records.
	EventKindNodeAnnouncement EventKind = 9
)

func (k EventKind) String() string {
	switch k {
	case EventKindNull:
		return "null"
	case EventKindRaw:
		return "raw"
	case EventKindFollow:
		return "follow"
	case EventKindUnfollow:
		return "unfollow"
	case EventKindSocialPost:
		return "social_post"
	case EventKindSocialRepost:
		return "social_repost"
	case EventKindSocialUpvote:
		return "social_upvote"
	case EventKindSocialProfileUpdate:
		return "social_profile_update"
	case EventKindDelete:
		return "delete"
	case EventKindNodeAnnouncement:
		return "node_announcement"
	default:
		return fmt.Sprintf("kind(%d)", uint16(k))
	}
}

// eventFlag bits stored in Event's single flags byte.
type eventFlag uint8

const (
	flagHasParentPrev eventFlag = 1 << iota
	flagHasParentAux
	flagDeleteParentContent
)

// EventIdLen is the size in bytes of an EventId.
const EventIdLen = 32

// ShortEventIdLen is the size in bytes of a ShortEventId.
const ShortEventIdLen = 16

// EventId is the BLAKE3 hash of an event's canonical encoding.
type EventId [EventIdLen]byte

// ShortEventId is the first ShortEventIdLen bytes of an EventId, used
// throughout the storage engine and wire protocol as the compact event key.
type ShortEventId [ShortEventIdLen]byte

// Short truncates an EventId to its ShortEventId form.
func (id EventId) Short() ShortEventId {
	var s ShortEventId
	copy(s[:], id[:ShortEventIdLen])
	return s
}

func (id EventId) String() string { return base32Nopad.EncodeToString(id[:]) }
func (s ShortEventId) String() string { return base32Nopad.EncodeToString(s[:]) }

// ParseEventId decodes the base32-nopad text representation of an EventId.
func ParseEventId(s string) (EventId, error) {
	var id EventId
	raw, err := base32Nopad.DecodeString(normalizeBase32(s))
	if err != nil {
		return id, fmt.Errorf("rostra: invalid EventId %q: %w", s, err)
	}
	if len(raw) != EventIdLen {
		return id, fmt.Errorf("rostra: EventId %q decodes to %d bytes, want %d", s, len(raw), EventIdLen)
	}
	copy(id[:], raw)
	return id, nil
}

// ParseShortEventId decodes the base32-nopad text representation of a
// ShortEventId.
func ParseShortEventId(s string) (ShortEventId, error) {
	var short ShortEventId
	raw, err := base32Nopad.DecodeString(normalizeBase32(s))
	if err != nil {
		return short, fmt.Errorf("rostra: invalid ShortEventId %q: %w", s, err)
	}
	if len(raw) != ShortEventIdLen {
		return short, fmt.Errorf("rostra: ShortEventId %q decodes to %d bytes, want %d", s, len(raw), ShortEventIdLen)
	}
	copy(short[:], raw)
	return short, nil
}

func normalizeBase32(s string) string {
	// base32Nopad uses the standard RFC4648 alphabet; accept lowercase input
	// since our own String() methods are case-stable but humans often type
	// lowercase by habit.
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}

// eventEncodedLen is the fixed size in bytes of an event's canonical
// encoding: this is both what gets hashed into an EventId and exactly what
// the Ed25519 signature covers.
const eventEncodedLen = 128

// Event is the canonical, fixed-size, signable unit of the DAG. Field order
// and widths below are part of the wire contract: changing them changes
// every EventId.
type Event struct {
	Author      RostraId
	Kind        EventKind
	Timestamp   Timestamp
	ParentPrev  *ShortEventId
	ParentAux   *ShortEventId
	ContentHash [32]byte
	ContentLen  uint32
	// DeleteParentContent, when set on a DELETE event, instructs receivers
	// to mark ParentAux's content Deleted rather than merely noting the
	// DAG edge.
	DeleteParentContent bool
}

// Timestamp is whole seconds since the Unix epoch, author-supplied and
// truncated to 48 bits in the canonical encoding.
type Timestamp uint64

const timestampMask = (uint64(1) << 48) - 1

// Encode writes the canonical big-endian encoding of the event into a fixed
// 128-byte array. This is the exact byte sequence hashed to form the
// event's EventId and exactly what a signature covers.
func (e Event) Encode() [eventEncodedLen]byte {
	var buf [eventEncodedLen]byte

	binary.BigEndian.PutUint16(buf[0:2], uint16(e.Kind))

	ts := uint64(e.Timestamp) & timestampMask
	var tsBuf [8]byte
	binary.BigEndian.PutUint64(tsBuf[:], ts)
	copy(buf[2:8], tsBuf[2:8])

	var flags eventFlag
	if e.ParentPrev != nil {
		flags |= flagHasParentPrev
	}
	if e.ParentAux != nil {
		flags |= flagHasParentAux
	}
	if e.DeleteParentContent {
		flags |= flagDeleteParentContent
	}
	buf[8] = byte(flags)
	// buf[9:12] reserved, left zero.

	copy(buf[12:44], e.Author[:])

	if e.ParentPrev != nil {
		copy(buf[44:60], e.ParentPrev[:])
	}
	if e.ParentAux != nil {
		copy(buf[60:76], e.ParentAux[:])
	}

	copy(buf[76:108], e.ContentHash[:])
	binary.BigEndian.PutUint32(buf[108:112], e.ContentLen)
	// buf[112:128] reserved, left zero.

	return buf
}

// DecodeEvent parses the canonical fixed-size encoding produced by Encode.
func DecodeEvent(buf []byte) (Event, error) {
	if len(buf) != eventEncodedLen {
		return Event{}, fmt.Errorf("rostra: event encoding has length %d, want %d", len(buf), eventEncodedLen)
	}
	var e Event
	e.Kind = EventKind(binary.BigEndian.Uint16(buf[0:2]))

	var tsBuf [8]byte
	copy(tsBuf[2:8], buf[2:8])
	e.Timestamp = Timestamp(binary.BigEndian.Uint64(tsBuf[:]))

	flags := eventFlag(buf[8])
	copy(e.Author[:], buf[12:44])

	if flags&flagHasParentPrev != 0 {
		var p ShortEventId
		copy(p[:], buf[44:60])
		e.ParentPrev = &p
	}
	if flags&flagHasParentAux != 0 {
		var p ShortEventId
		copy(p[:], buf[60:76])
		e.ParentAux = &p
	}
	e.DeleteParentContent = flags&flagDeleteParentContent != 0

	copy(e.ContentHash[:], buf[76:108])
	e.ContentLen = binary.BigEndian.Uint32(buf[108:112])

	return e, nil
}

// Id computes the event's EventId, the BLAKE3 hash of its canonical
// encoding. An event's identity is determined solely by these bytes.
func (e Event) Id() EventId {
	enc := e.Encode()
	sum := blake3.Sum256(enc[:])
	return EventId(sum)
}

// HashContent returns the BLAKE3 hash of content bytes, the value stored as
// an event's ContentHash.
func HashContent(content []byte) [32]byte {
	return blake3.Sum256(content)
}

// SignBy signs the event's canonical encoding under secret, producing a
// SignedEvent. The caller is responsible for ensuring e.ContentHash and
// e.ContentLen already reflect the intended content, since they are covered
// by the signature.
func (e Event) SignBy(secret RostraIdSecret) SignedEvent {
	enc := e.Encode()
	return SignedEvent{
		Event:     e,
		Signature: secret.Sign(enc[:]),
	}
}

// SignedEvent pairs an Event with the Ed25519 signature covering its
// canonical encoding.
type SignedEvent struct {
	Event     Event
	Signature Signature
}

// Verify checks the signature against Event.Author, returning ErrSignatureInvalid
// if it does not match.
func (se SignedEvent) Verify() error {
	enc := se.Event.Encode()
	if !Verify(se.Event.Author, enc[:], se.Signature) {
		return ErrSignatureInvalid
	}
	return nil
}

// VerifiedEvent witnesses that a SignedEvent's signature has been checked
// and, when received from a peer claiming a specific author/id, that those
// match the claim. Constructing one is the only way the rest of the system
// is permitted to treat event bytes as trustworthy.
type VerifiedEvent struct {
	Signed SignedEvent
	Id     EventId
}

// VerifySigned validates se's signature and returns a VerifiedEvent, failing
// with ErrSignatureInvalid if the signature does not check out. Used when an
// event is authored locally or its provenance is otherwise already trusted.
func VerifySigned(se SignedEvent) (VerifiedEvent, error) {
	if err := se.Verify(); err != nil {
		return VerifiedEvent{}, err
	}
	return VerifiedEvent{Signed: se, Id: se.Event.Id()}, nil
}

// VerifyResponse validates a SignedEvent received over the wire against the
// author and id the peer claimed it to be, per the protocol's verification
// ladder: signature, author match, and id match must all hold.
func VerifyResponse(author RostraId, expectedId EventId, se SignedEvent) (VerifiedEvent, error) {
	if se.Event.Author != author {
		return VerifiedEvent{}, ErrAuthorMismatch
	}
	if err := se.Verify(); err != nil {
		return VerifiedEvent{}, err
	}
	actualId := se.Event.Id()
	if actualId != expectedId {
		return VerifiedEvent{}, ErrEventIdMismatch
	}
	return VerifiedEvent{Signed: se, Id: actualId}, nil
}

// AssumeVerified wraps an already-trusted SignedEvent (e.g. read back from
// local storage, where it was verified before being written) without
// repeating signature checks.
func AssumeVerified(se SignedEvent) VerifiedEvent {
	return VerifiedEvent{Signed: se, Id: se.Event.Id()}
}

// VerifiedEventContent witnesses that a VerifiedEvent's declared content
// length and hash have been checked against a concrete byte slice, or that
// the event legitimately carries no content.
type VerifiedEventContent struct {
	Event   VerifiedEvent
	Content []byte
}

// VerifyContent checks content against evt's declared ContentLen/ContentHash.
// Passing a nil content slice is only valid when the event declares zero
// content length.
func VerifyContent(evt VerifiedEvent, content []byte) (VerifiedEventContent, error) {
	e := evt.Signed.Event
	if content == nil {
		if e.ContentLen != 0 {
			return VerifiedEventContent{}, ErrContentMismatch
		}
		return VerifiedEventContent{Event: evt}, nil
	}
	if uint32(len(content)) != e.ContentLen {
		return VerifiedEventContent{}, ErrContentMismatch
	}
	if HashContent(content) != e.ContentHash {
		return VerifiedEventContent{}, ErrContentMismatch
	}
	return VerifiedEventContent{Event: evt, Content: content}, nil
}

// AssumeVerifiedContent wraps content already trusted (e.g. read back from
// local storage) without repeating the hash/length check.
func AssumeVerifiedContent(evt VerifiedEvent, content []byte) VerifiedEventContent {
	return VerifiedEventContent{Event: evt, Content: content}
}
