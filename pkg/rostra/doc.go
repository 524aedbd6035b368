// Package rostra implements the identity and event primitives shared by the
// rest of a Rostra node: Ed25519 keypairs, the canonical event encoding that
// is both hashed into an EventId and signed, and the verification ladder
// (SignedEvent -> VerifiedEvent -> VerifiedEventContent) that the storage
// engine and P2P layer rely on to never trust an unverified byte.
package rostra
