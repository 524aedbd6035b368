package p2p

import (
	"encoding/binary"
	"fmt"

	"github.com/dpc/rostra/pkg/rostra"
)

// signedEventLen is the fixed wire size of a SignedEvent: the 128-byte
// canonical event encoding followed by its 64-byte Ed25519 signature.
const signedEventLen = 128 + 64

func encodeSignedEvent(se rostra.SignedEvent) []byte {
	enc := se.Event.Encode()
	buf := make([]byte, 0, signedEventLen)
	buf = append(buf, enc[:]...)
	buf = append(buf, se.Signature[:]...)
	return buf
}

func decodeSignedEvent(buf []byte) (rostra.SignedEvent, error) {
	if len(buf) != signedEventLen {
		return rostra.SignedEvent{}, fmt.Errorf("p2p: signed event has length %d, want %d", len(buf), signedEventLen)
	}
	evt, err := rostra.DecodeEvent(buf[:128])
	if err != nil {
		return rostra.SignedEvent{}, err
	}
	var sig rostra.Signature
	copy(sig[:], buf[128:])
	return rostra.SignedEvent{Event: evt, Signature: sig}, nil
}

// pingRequest/pingResponse: PingRequest(u64) / PingResponse(u64).
func encodePing(nonce uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, nonce)
	return buf
}

func decodePing(buf []byte) (uint64, error) {
	if len(buf) != 8 {
		return 0, fmt.Errorf("p2p: ping payload has length %d, want 8", len(buf))
	}
	return binary.BigEndian.Uint64(buf), nil
}

// getEventRequest: (RostraId author, ShortEventId id).
func encodeGetEventRequest(author rostra.RostraId, id rostra.ShortEventId) []byte {
	buf := make([]byte, 0, rostra.RostraIdLen+rostra.ShortEventIdLen)
	buf = append(buf, author[:]...)
	buf = append(buf, id[:]...)
	return buf
}

func decodeGetEventRequest(buf []byte) (rostra.RostraId, rostra.ShortEventId, error) {
	want := rostra.RostraIdLen + rostra.ShortEventIdLen
	if len(buf) != want {
		return rostra.RostraId{}, rostra.ShortEventId{}, fmt.Errorf("p2p: get_event request has length %d, want %d", len(buf), want)
	}
	var author rostra.RostraId
	var id rostra.ShortEventId
	copy(author[:], buf[:rostra.RostraIdLen])
	copy(id[:], buf[rostra.RostraIdLen:])
	return author, id, nil
}

// getEventResponse: Option<SignedEvent>. First byte is a present flag.
func encodeOptionalSignedEvent(se *rostra.SignedEvent) []byte {
	if se == nil {
		return []byte{0}
	}
	buf := make([]byte, 0, 1+signedEventLen)
	buf = append(buf, 1)
	buf = append(buf, encodeSignedEvent(*se)...)
	return buf
}

func decodeOptionalSignedEvent(buf []byte) (*rostra.SignedEvent, error) {
	if len(buf) == 0 {
		return nil, fmt.Errorf("p2p: optional signed event payload is empty")
	}
	if buf[0] == 0 {
		return nil, nil
	}
	se, err := decodeSignedEvent(buf[1:])
	if err != nil {
		return nil, err
	}
	return &se, nil
}

// getEventContentRequest: (ShortEventId, content_len u32, content_hash [32]byte).
func encodeGetEventContentRequest(id rostra.ShortEventId, contentLen uint32, contentHash [32]byte) []byte {
	buf := make([]byte, 0, rostra.ShortEventIdLen+4+32)
	buf = append(buf, id[:]...)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], contentLen)
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, contentHash[:]...)
	return buf
}

func decodeGetEventContentRequest(buf []byte) (rostra.ShortEventId, uint32, [32]byte, error) {
	want := rostra.ShortEventIdLen + 4 + 32
	if len(buf) != want {
		return rostra.ShortEventId{}, 0, [32]byte{}, fmt.Errorf("p2p: get_event_content request has length %d, want %d", len(buf), want)
	}
	var id rostra.ShortEventId
	copy(id[:], buf[:rostra.ShortEventIdLen])
	contentLen := binary.BigEndian.Uint32(buf[rostra.ShortEventIdLen : rostra.ShortEventIdLen+4])
	var hash [32]byte
	copy(hash[:], buf[rostra.ShortEventIdLen+4:])
	return id, contentLen, hash, nil
}

// getEventContentResponse: Option<()>, a single present/absent byte.
func encodeOptionalUnit(present bool) []byte {
	if present {
		return []byte{1}
	}
	return []byte{0}
}

func decodeOptionalUnit(buf []byte) (bool, error) {
	if len(buf) != 1 {
		return false, fmt.Errorf("p2p: optional-unit payload has length %d, want 1", len(buf))
	}
	return buf[0] != 0, nil
}
