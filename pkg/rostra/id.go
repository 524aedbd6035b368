package rostra

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"strings"

	"github.com/tyler-smith/go-bip39"
)

// zBase32 is the z-base-32 alphabet used by pkarr-style key material and by
// RostraId's text representation. We reuse stdlib base32 with a custom
// alphabet rather than pull in a dedicated z-base32 dependency: the encoding
// is a straightforward alphabet swap over the same bit-packing algorithm.
const zBase32Alphabet = "ybndrfg8ejkmcpqxot1uwisza345h769"

var zBase32Encoding = base32.NewEncoding(zBase32Alphabet).WithPadding(base32.NoPadding)

// base32Nopad is used for ShortEventId/EventId text representation per the
// spec's display rules; it uses the standard RFC4648 alphabet without
// padding, distinct from RostraId's z-base32.
var base32Nopad = base32.StdEncoding.WithPadding(base32.NoPadding)

// RostraIdLen is the size in bytes of an Ed25519 public key identity.
const RostraIdLen = 32

// ShortRostraIdLen is the size in bytes of the truncated identity used as a
// map/index key where the full key would be wasteful.
const ShortRostraIdLen = 16

// RostraId is an Ed25519 public key identifying a participant. It is the
// root of trust for everything that participant authors.
type RostraId [RostraIdLen]byte

// ShortRostraId is the first ShortRostraIdLen bytes of a RostraId, used as a
// compact lookup key; the remaining bytes are recovered via the ids_full
// table.
type ShortRostraId [ShortRostraIdLen]byte

// Short returns the truncated form of the id.
func (id RostraId) Short() ShortRostraId {
	var s ShortRostraId
	copy(s[:], id[:ShortRostraIdLen])
	return s
}

// Rest returns the bytes of id not included in its ShortRostraId, i.e. the
// complement stored in ids_full to reconstruct the full id from its short
// form.
func (id RostraId) Rest() []byte {
	rest := make([]byte, RostraIdLen-ShortRostraIdLen)
	copy(rest, id[ShortRostraIdLen:])
	return rest
}

// AssembleRostraId reconstructs a full RostraId from its short form and the
// complementary tail bytes previously recovered from ids_full.
func AssembleRostraId(short ShortRostraId, rest []byte) (RostraId, error) {
	var id RostraId
	if len(rest) != RostraIdLen-ShortRostraIdLen {
		return id, fmt.Errorf("rostra: rest has wrong length %d", len(rest))
	}
	copy(id[:ShortRostraIdLen], short[:])
	copy(id[ShortRostraIdLen:], rest)
	return id, nil
}

// String renders the id as z-base32, the pkarr-standard text representation
// for Ed25519 public keys.
func (id RostraId) String() string {
	return zBase32Encoding.EncodeToString(id[:])
}

// ParseRostraId decodes the z-base32 text representation produced by String.
func ParseRostraId(s string) (RostraId, error) {
	var id RostraId
	raw, err := zBase32Encoding.DecodeString(strings.ToLower(s))
	if err != nil {
		return id, fmt.Errorf("rostra: invalid RostraId %q: %w", s, err)
	}
	if len(raw) != RostraIdLen {
		return id, fmt.Errorf("rostra: RostraId %q decodes to %d bytes, want %d", s, len(raw), RostraIdLen)
	}
	copy(id[:], raw)
	return id, nil
}

func (s ShortRostraId) String() string {
	return base32Nopad.EncodeToString(s[:])
}

// ParseShortRostraId decodes the base32-nopad text representation of a
// ShortRostraId.
func ParseShortRostraId(s string) (ShortRostraId, error) {
	var short ShortRostraId
	raw, err := base32Nopad.DecodeString(strings.ToUpper(s))
	if err != nil {
		return short, fmt.Errorf("rostra: invalid ShortRostraId %q: %w", s, err)
	}
	if len(raw) != ShortRostraIdLen {
		return short, fmt.Errorf("rostra: ShortRostraId %q decodes to %d bytes, want %d", s, len(raw), ShortRostraIdLen)
	}
	copy(short[:], raw)
	return short, nil
}

// RostraIdSecret is the Ed25519 private seed backing a RostraId. The
// storage engine never persists it: ids_self holds only the public
// RostraId and the transport node secret.
type RostraIdSecret [32]byte

// GenerateRostraIdSecret creates a fresh random secret.
func GenerateRostraIdSecret() (RostraIdSecret, error) {
	var secret RostraIdSecret
	if _, err := rand.Read(secret[:]); err != nil {
		return secret, fmt.Errorf("rostra: generating secret: %w", err)
	}
	return secret, nil
}

// RostraIdSecretFromMnemonic recovers a secret from a 24-word BIP39
// mnemonic phrase: the secret is the phrase's 32 bytes of entropy.
func RostraIdSecretFromMnemonic(mnemonic string) (RostraIdSecret, error) {
	var secret RostraIdSecret
	if !bip39.IsMnemonicValid(mnemonic) {
		return secret, fmt.Errorf("rostra: invalid mnemonic")
	}
	entropy, err := bip39.EntropyFromMnemonic(mnemonic)
	if err != nil {
		return secret, fmt.Errorf("rostra: invalid mnemonic: %w", err)
	}
	if len(entropy) != len(secret) {
		return secret, fmt.Errorf("rostra: mnemonic encodes %d bytes, want %d", len(entropy), len(secret))
	}
	copy(secret[:], entropy)
	return secret, nil
}

// Mnemonic encodes the secret as a BIP39 mnemonic phrase for human-friendly
// backup. RostraIdSecretFromMnemonic recovers the identical secret from it.
func (s RostraIdSecret) Mnemonic() (string, error) {
	return bip39.NewMnemonic(s[:])
}

// NewMnemonicSecret generates a fresh secret together with its BIP39
// mnemonic, suitable for the keygen/backup flow.
func NewMnemonicSecret() (RostraIdSecret, string, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return RostraIdSecret{}, "", fmt.Errorf("rostra: generating entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return RostraIdSecret{}, "", fmt.Errorf("rostra: deriving mnemonic: %w", err)
	}
	var secret RostraIdSecret
	copy(secret[:], entropy)
	return secret, mnemonic, nil
}

// ed25519Key expands the 32-byte seed into a full Ed25519 private key.
func (s RostraIdSecret) ed25519Key() ed25519.PrivateKey {
	return ed25519.NewKeyFromSeed(s[:])
}

// Ed25519PrivateKey exposes the expanded Ed25519 private key as a
// crypto.Signer, for collaborators (the QUIC transport's self-signed
// certificates) that need to hand it directly to the standard library's
// crypto/x509 and crypto/tls APIs rather than going through Sign.
func (s RostraIdSecret) Ed25519PrivateKey() ed25519.PrivateKey {
	return s.ed25519Key()
}

// RostraId derives the public identity corresponding to this secret.
func (s RostraIdSecret) RostraId() RostraId {
	pub := s.ed25519Key().Public().(ed25519.PublicKey)
	var id RostraId
	copy(id[:], pub)
	return id
}

// Sign signs an arbitrary message (typically canonical event bytes) with
// this secret's Ed25519 key.
func (s RostraIdSecret) Sign(message []byte) Signature {
	var sig Signature
	copy(sig[:], ed25519.Sign(s.ed25519Key(), message))
	return sig
}

// Signature is a 64-byte Ed25519 signature.
type Signature [ed25519.SignatureSize]byte

func (s Signature) String() string {
	return base32Nopad.EncodeToString(s[:])
}

// Verify checks sig against message under the given public identity.
func Verify(id RostraId, message []byte, sig Signature) bool {
	return ed25519.Verify(id[:], message, sig[:])
}
