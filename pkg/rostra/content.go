package rostra

import (
	"encoding/json"
	"fmt"
)

// PersonaId is an author-chosen sub-identity tag attached to an event,
// letting one RostraId present as several personas (e.g. separate
// professional/personal streams) without separate keys.
type PersonaId uint16

// PersonaSelf is the default persona used when an author does not select
// one explicitly.
const PersonaSelf PersonaId = 0

// Follow is the content payload of a FOLLOW event.
type Follow struct {
	Followee RostraId  `json:"followee"`
	Persona  PersonaId `json:"persona,omitempty"`
}

// Unfollow is the content payload of an UNFOLLOW event.
type Unfollow struct {
	Followee RostraId `json:"followee"`
}

// SocialPost is the content payload of a SOCIAL_POST event. ReplyTo, when
// the event has one, is carried in the event header's ParentAux rather than
// here; the content only carries the post body and persona.
type SocialPost struct {
	Persona     PersonaId `json:"persona,omitempty"`
	DjotContent string    `json:"djot_content"`
}

// SocialReaction is the content payload shared by SOCIAL_UPVOTE and
// SOCIAL_REPOST events. The reacted-to post is the event's ParentAux; this
// payload records the reacting personas and an author-supplied echo of the
// target for convenience when content is read without the header.
type SocialReaction struct {
	Personas  []string  `json:"personas,omitempty"`
	Timestamp Timestamp `json:"timestamp"`
	Author    RostraId  `json:"author"`
	EventId   EventId   `json:"event_id"`
}

// SocialProfileUpdate is the content payload of a SOCIAL_PROFILE_UPDATE
// event.
type SocialProfileUpdate struct {
	DisplayName string `json:"display_name,omitempty"`
	Bio         string `json:"bio,omitempty"`
	ImgMime     string `json:"img_mime,omitempty"`
	Img         []byte `json:"img,omitempty"`
}

// HasAvatar reports whether the profile update carries avatar image bytes;
// the avatar is an optional (mime, bytes) pair, never one without the
// other.
func (u SocialProfileUpdate) HasAvatar() bool {
	return u.ImgMime != "" && len(u.Img) > 0
}

// NodeAnnouncement is the content payload of a NODE_ANNOUNCEMENT event,
// recording a transport endpoint the author can currently be reached at.
type NodeAnnouncement struct {
	IrohNodeId string `json:"iroh_node_id"`
}

// contentPayload is implemented by every typed content payload so callers
// can encode generically without a type switch at every call site.
type contentPayload interface {
	Follow | Unfollow | SocialPost | SocialReaction | SocialProfileUpdate | NodeAnnouncement
}

// EncodeContent serializes a typed content payload to the opaque bytes
// stored alongside its event and covered by ContentHash. Payload encoding
// is internal to this implementation: the wire and storage layers only ever
// see opaque, hash-addressed bytes.
func EncodeContent[T contentPayload](payload T) ([]byte, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("rostra: encoding content: %w", err)
	}
	return b, nil
}

// DecodeContent parses content bytes previously produced by EncodeContent
// into the requested payload type.
func DecodeContent[T contentPayload](content []byte) (T, error) {
	var payload T
	if err := json.Unmarshal(content, &payload); err != nil {
		return payload, fmt.Errorf("rostra: decoding content: %w", err)
	}
	return payload, nil
}

// NewContentEvent fills in ContentHash and ContentLen for an event whose
// content is the given encoded bytes. Callers still set Author, Kind,
// Timestamp and parents before signing.
func NewContentEvent(kind EventKind, content []byte) Event {
	return Event{
		Kind:        kind,
		ContentHash: HashContent(content),
		ContentLen:  uint32(len(content)),
	}
}
