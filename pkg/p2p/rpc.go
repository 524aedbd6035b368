package p2p

import (
	"encoding/binary"
	"fmt"
	"io"
)

// RPCId identifies an entry in the RPC catalogue (§4.4).
type RPCId uint16

const (
	RPCPing RPCId = iota
	RPCFeedEvent
	RPCGetEvent
	RPCGetEventContent
	RPCWaitFollowersNewHeads
)

func (id RPCId) String() string {
	switch id {
	case RPCPing:
		return "PING"
	case RPCFeedEvent:
		return "FEED_EVENT"
	case RPCGetEvent:
		return "GET_EVENT"
	case RPCGetEventContent:
		return "GET_EVENT_CONTENT"
	case RPCWaitFollowersNewHeads:
		return "WAIT_FOLLOWERS_NEW_HEADS"
	default:
		return fmt.Sprintf("RPCId(%d)", uint16(id))
	}
}

// maxMessageLen bounds a single request or response body; larger frames fail
// with ErrMessageTooLarge before the declared length is ever trusted enough
// to allocate a buffer for it.
const maxMessageLen = 16 << 20

// ReturnCodeOK is the zero return_code meaning success.
const ReturnCodeOK = 0

// writeRequest writes the client→server frame: u16 rpc_id | u32 req_len | req_bytes.
func writeRequest(w io.Writer, id RPCId, body []byte) error {
	if len(body) > maxMessageLen {
		return ErrMessageTooLarge
	}
	hdr := make([]byte, 6)
	binary.BigEndian.PutUint16(hdr[0:2], uint16(id))
	binary.BigEndian.PutUint32(hdr[2:6], uint32(len(body)))
	if _, err := w.Write(hdr); err != nil {
		return fmt.Errorf("p2p: writing request header: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("p2p: writing request body: %w", err)
	}
	return nil
}

// readRequest reads a client→server frame.
func readRequest(r io.Reader) (RPCId, []byte, error) {
	hdr := make([]byte, 6)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return 0, nil, err
	}
	id := RPCId(binary.BigEndian.Uint16(hdr[0:2]))
	length := binary.BigEndian.Uint32(hdr[2:6])
	if length > maxMessageLen {
		return 0, nil, ErrMessageTooLarge
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, nil, fmt.Errorf("p2p: reading request body: %w", err)
	}
	return id, body, nil
}

// writeResponse writes the server→client frame: u8 return_code | [u32 resp_len | resp_bytes].
// A non-zero returnCode carries no body.
func writeResponse(w io.Writer, returnCode byte, body []byte) error {
	if returnCode != ReturnCodeOK {
		_, err := w.Write([]byte{returnCode})
		return err
	}
	if len(body) > maxMessageLen {
		return ErrMessageTooLarge
	}
	hdr := make([]byte, 5)
	hdr[0] = ReturnCodeOK
	binary.BigEndian.PutUint32(hdr[1:5], uint32(len(body)))
	if _, err := w.Write(hdr); err != nil {
		return fmt.Errorf("p2p: writing response header: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("p2p: writing response body: %w", err)
	}
	return nil
}

// readResponse reads a server→client frame, returning FailedError for a
// non-zero return_code.
func readResponse(r io.Reader) ([]byte, error) {
	var code [1]byte
	if _, err := io.ReadFull(r, code[:]); err != nil {
		return nil, err
	}
	if code[0] != ReturnCodeOK {
		return nil, &FailedError{ReturnCode: code[0]}
	}
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("p2p: reading response length: %w", err)
	}
	length := binary.BigEndian.Uint32(lenBuf[:])
	if length > maxMessageLen {
		return nil, ErrMessageTooLarge
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("p2p: reading response body: %w", err)
	}
	return body, nil
}
