package baostream

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"lukechampine.com/blake3"
)

// ChunkSize is the size of each committed chunk in the stream. Smaller
// chunks catch a corrupted transfer sooner at the cost of more framing
// overhead; 16 KiB matches typical social-media attachment sizes (avatars,
// small images) this substrate is meant to carry.
const ChunkSize = 16 << 10

// MaxContentLen bounds how much content a single stream may ever carry,
// independent of what the caller's expectedLen claims, so a malicious or
// buggy peer cannot force unbounded buffering by lying about length.
const MaxContentLen = 64 << 20

// ErrChunkMismatch is returned the moment a chunk's bytes fail to hash to
// the commitment that preceded it, without reading the rest of the stream.
var ErrChunkMismatch = errors.New("baostream: chunk hash mismatch")

// ErrLengthMismatch is returned when the fully received content's length
// does not match what the caller expected.
var ErrLengthMismatch = errors.New("baostream: content length mismatch")

// ErrHashMismatch is returned when the fully received content's whole-hash
// does not match the caller's expected content_hash.
var ErrHashMismatch = errors.New("baostream: content hash mismatch")

// ErrContentTooLarge is returned when a stream exceeds MaxContentLen.
var ErrContentTooLarge = errors.New("baostream: content exceeds maximum length")

// EncodeTo writes content to w as a sequence of committed chunks followed by
// a zero-length terminator frame. content must already satisfy
// len(content) == expectedLen and blake3.Sum256(content) == expectedHash;
// EncodeTo re-derives both as a local sanity check before sending anything,
// since a sender streaming the wrong bytes is as much a bug as a receiver
// accepting them unverified.
func EncodeTo(w io.Writer, content []byte, expectedLen uint32, expectedHash [32]byte) error {
	if uint32(len(content)) != expectedLen {
		return fmt.Errorf("baostream: encode: %w", ErrLengthMismatch)
	}
	if blake3.Sum256(content) != expectedHash {
		return fmt.Errorf("baostream: encode: %w", ErrHashMismatch)
	}

	for offset := 0; offset < len(content); offset += ChunkSize {
		end := offset + ChunkSize
		if end > len(content) {
			end = len(content)
		}
		chunk := content[offset:end]
		if err := writeFrame(w, chunk); err != nil {
			return err
		}
	}
	return writeFrame(w, nil)
}

func writeFrame(w io.Writer, chunk []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(chunk)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("baostream: writing frame length: %w", err)
	}
	if len(chunk) == 0 {
		return nil
	}
	hash := blake3.Sum256(chunk)
	if _, err := w.Write(hash[:]); err != nil {
		return fmt.Errorf("baostream: writing chunk hash: %w", err)
	}
	if _, err := w.Write(chunk); err != nil {
		return fmt.Errorf("baostream: writing chunk: %w", err)
	}
	return nil
}

// DecodeFrom reads a stream produced by EncodeTo, verifying each chunk
// against its own commitment as it arrives (aborting with ErrChunkMismatch
// on the first bad one, without reading further frames) and the assembled
// whole content against expectedLen/expectedHash once the terminator frame
// is reached.
func DecodeFrom(r io.Reader, expectedLen uint32, expectedHash [32]byte) ([]byte, error) {
	if expectedLen > MaxContentLen {
		return nil, ErrContentTooLarge
	}

	content := make([]byte, 0, expectedLen)
	hasher := blake3.New(32, nil)

	for {
		var lenBuf [4]byte
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			return nil, fmt.Errorf("baostream: reading frame length: %w", err)
		}
		chunkLen := binary.BigEndian.Uint32(lenBuf[:])
		if chunkLen == 0 {
			break
		}
		if uint64(len(content))+uint64(chunkLen) > MaxContentLen {
			return nil, ErrContentTooLarge
		}

		var hash [32]byte
		if _, err := io.ReadFull(r, hash[:]); err != nil {
			return nil, fmt.Errorf("baostream: reading chunk hash: %w", err)
		}
		chunk := make([]byte, chunkLen)
		if _, err := io.ReadFull(r, chunk); err != nil {
			return nil, fmt.Errorf("baostream: reading chunk: %w", err)
		}
		if blake3.Sum256(chunk) != hash {
			return nil, ErrChunkMismatch
		}

		content = append(content, chunk...)
		_, _ = hasher.Write(chunk)
	}

	if uint32(len(content)) != expectedLen {
		return nil, ErrLengthMismatch
	}
	var sum [32]byte
	copy(sum[:], hasher.Sum(nil))
	if sum != expectedHash {
		return nil, ErrHashMismatch
	}
	return content, nil
}
