package rostra

import "errors"

// Crypto/verification errors, returned by the verification ladder in
// event.go. Callers match on these with errors.Is; they are never wrapped
// with additional dynamic context since the condition itself is the whole
// story.
var (
	// ErrSignatureInvalid is returned when an event's Ed25519 signature does
	// not verify under its claimed author.
	ErrSignatureInvalid = errors.New("rostra: signature invalid")
	// ErrAuthorMismatch is returned when a SignedEvent's Author field does
	// not match the author a peer claimed to be sending.
	ErrAuthorMismatch = errors.New("rostra: author mismatch")
	// ErrEventIdMismatch is returned when a SignedEvent's computed EventId
	// does not match the id a peer claimed it to be.
	ErrEventIdMismatch = errors.New("rostra: event id mismatch")
	// ErrContentMismatch is returned when content bytes do not match an
	// event's declared ContentLen/ContentHash.
	ErrContentMismatch = errors.New("rostra: content mismatch")
)
