// Package baostream implements the streaming content transfer used by
// FEED_EVENT and GET_EVENT_CONTENT trailers (§4.4): the sender streams
// opaque content in fixed-size chunks, each one committed to up front by a
// BLAKE3 chunk hash, so the receiver can verify and abort incrementally
// instead of buffering the whole payload before checking it against the
// event's declared content_hash.
//
// No bao (BLAKE3-tree) library exists anywhere in the example pack this
// project draws its stack from, so this is a from-scratch, self-contained
// scheme rather than a port of the reference bao crate's subtree encoding;
// see DESIGN.md for the tradeoff. It reuses BLAKE3 itself (lukechampine.com/blake3)
// for both the per-chunk commitments and the final whole-content hash that
// must equal the event's content_hash.
package baostream
