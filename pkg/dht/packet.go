package dht

import (
	"encoding/binary"
	"fmt"

	"github.com/miekg/dns"

	"github.com/dpc/rostra/pkg/rostra"
)

// recordP2p is the TXT record name carrying an iroh NodeTicket (address +
// relay hints), base64url-nopad encoded.
const recordP2p = "p2p"

// recordHead is the TXT record name carrying the publisher's current DAG
// head, base32-nopad encoded.
const recordHead = "head"

// signedPacketHeaderLen is the fixed-size prefix of an encoded SignedPacket:
// a 32-byte public key, an 8-byte big-endian timestamp and a 64-byte
// signature, ahead of the variable-length DNS payload.
const signedPacketHeaderLen = rostra.RostraIdLen + 8 + 64

// SignedPacket is a self-signed DNS packet: the pkarr-style unit of data
// stored and retrieved from the DHT, keyed by its PublicKey.
type SignedPacket struct {
	PublicKey rostra.RostraId
	Timestamp uint64
	Signature rostra.Signature
	Payload   []byte // packed DNS message bytes
}

// Encode serializes a SignedPacket to the bytes stored/transmitted on the
// network.
func (sp SignedPacket) Encode() []byte {
	buf := make([]byte, 0, signedPacketHeaderLen+len(sp.Payload))
	buf = append(buf, sp.PublicKey[:]...)
	var tsBuf [8]byte
	binary.BigEndian.PutUint64(tsBuf[:], sp.Timestamp)
	buf = append(buf, tsBuf[:]...)
	buf = append(buf, sp.Signature[:]...)
	buf = append(buf, sp.Payload...)
	return buf
}

// signedBytes returns the bytes the signature covers: timestamp followed by
// the DNS payload. The public key itself is not covered since it is the
// verification key, not part of the message.
func signedBytes(timestamp uint64, payload []byte) []byte {
	buf := make([]byte, 0, 8+len(payload))
	var tsBuf [8]byte
	binary.BigEndian.PutUint64(tsBuf[:], timestamp)
	buf = append(buf, tsBuf[:]...)
	buf = append(buf, payload...)
	return buf
}

// ParseSignedPacket decodes raw bytes produced by Encode and verifies the
// embedded signature.
func ParseSignedPacket(raw []byte) (SignedPacket, error) {
	if len(raw) < signedPacketHeaderLen {
		return SignedPacket{}, fmt.Errorf("dht: signed packet too short: %d bytes", len(raw))
	}
	var sp SignedPacket
	copy(sp.PublicKey[:], raw[0:rostra.RostraIdLen])
	off := rostra.RostraIdLen
	sp.Timestamp = binary.BigEndian.Uint64(raw[off : off+8])
	off += 8
	copy(sp.Signature[:], raw[off:off+64])
	off += 64
	sp.Payload = raw[off:]

	if !rostra.Verify(sp.PublicKey, signedBytes(sp.Timestamp, sp.Payload), sp.Signature) {
		return SignedPacket{}, rostra.ErrSignatureInvalid
	}
	return sp, nil
}

// buildPacket constructs the raw DNS payload carrying the given TXT records,
// each valid for ttlSecs.
func buildPacket(records map[string]string, ttlSecs uint32) ([]byte, error) {
	msg := new(dns.Msg)
	msg.Response = true
	msg.Opcode = dns.OpcodeQuery
	msg.Authoritative = true

	for name, value := range records {
		rr := &dns.TXT{
			Hdr: dns.RR_Header{
				Name:   dns.Fqdn(name),
				Rrtype: dns.TypeTXT,
				Class:  dns.ClassINET,
				Ttl:    ttlSecs,
			},
			Txt: []string{value},
		}
		msg.Answer = append(msg.Answer, rr)
	}

	payload, err := msg.Pack()
	if err != nil {
		return nil, fmt.Errorf("dht: packing DNS packet: %w", err)
	}
	return payload, nil
}

// BuildSignedPacket signs a fresh packet advertising p2pTicket (the node's
// current transport address, empty to omit) and head (the node's current DAG
// head, nil to omit), valid for ttlSecs and stamped with timestamp (seconds
// since epoch, used only to order successive publications; newer wins).
func BuildSignedPacket(secret rostra.RostraIdSecret, p2pTicket string, head *rostra.ShortEventId, ttlSecs uint32, timestamp uint64) (SignedPacket, error) {
	records := make(map[string]string, 2)
	if p2pTicket != "" {
		records[recordP2p] = p2pTicket
	}
	if head != nil {
		records[recordHead] = head.String()
	}

	payload, err := buildPacket(records, ttlSecs)
	if err != nil {
		return SignedPacket{}, err
	}

	sig := secret.Sign(signedBytes(timestamp, payload))
	return SignedPacket{
		PublicKey: secret.RostraId(),
		Timestamp: timestamp,
		Signature: sig,
		Payload:   payload,
	}, nil
}

// records unpacks the DNS payload and returns the TXT values present under
// recordP2p/recordHead, reporting ErrWrongType if a matching name exists but
// does not carry a TXT record.
func (sp SignedPacket) records() (p2pTicket string, head string, err error) {
	msg := new(dns.Msg)
	if err := msg.Unpack(sp.Payload); err != nil {
		return "", "", fmt.Errorf("dht: unpacking DNS packet: %w", err)
	}

	for _, rr := range msg.Answer {
		name := dns.Fqdn(rr.Header().Name)
		switch name {
		case dns.Fqdn(recordP2p):
			txt, ok := rr.(*dns.TXT)
			if !ok {
				return "", "", ErrWrongType
			}
			if len(txt.Txt) > 0 {
				p2pTicket = txt.Txt[0]
			}
		case dns.Fqdn(recordHead):
			txt, ok := rr.(*dns.TXT)
			if !ok {
				return "", "", ErrWrongType
			}
			if len(txt.Txt) > 0 {
				head = txt.Txt[0]
			}
		}
	}
	return p2pTicket, head, nil
}
