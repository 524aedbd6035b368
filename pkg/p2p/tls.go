package p2p

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"time"

	"github.com/dpc/rostra/pkg/rostra"
)

// certValidity is generous since these certificates authenticate nothing
// beyond "this Ed25519 key signed itself"; there is no CA to rotate against
// and no external relying party checks NotAfter.
const certValidity = 100 * 365 * 24 * time.Hour

const alpnProtocol = "rostra-p2p-v0"

// generateSelfSignedCert builds a self-signed X.509 certificate whose
// subject public key *is* secret's RostraId: there is no CA issuing a leaf
// signed by a separate root, since peer identity here is the Ed25519 key
// itself and the certificate needs no issuer to trust. Presenting the cert
// is presenting proof of the private key via the handshake signature; the
// remote side reads identity back out of Certificate.PublicKey.
func generateSelfSignedCert(secret rostra.RostraIdSecret) (tls.Certificate, error) {
	priv := secret.Ed25519PrivateKey()
	pub := priv.Public().(ed25519.PublicKey)

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("p2p: generating serial number: %w", err)
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName: secret.RostraId().String(),
		},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(certValidity),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, template, pub, priv)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("p2p: creating self-signed certificate: %w", err)
	}

	return tls.Certificate{
		Certificate: [][]byte{certDER},
		PrivateKey:  priv,
	}, nil
}

// identityFromCert recovers the RostraId a peer authenticated as, from the
// leaf certificate it presented during the handshake.
func identityFromCert(cert *x509.Certificate) (rostra.RostraId, error) {
	pub, ok := cert.PublicKey.(ed25519.PublicKey)
	if !ok {
		return rostra.RostraId{}, fmt.Errorf("p2p: peer certificate key is not Ed25519")
	}
	if len(pub) != rostra.RostraIdLen {
		return rostra.RostraId{}, fmt.Errorf("p2p: peer certificate key has wrong length %d", len(pub))
	}
	var id rostra.RostraId
	copy(id[:], pub)
	return id, nil
}

// verifyPeerCertificate builds the crypto/tls VerifyPeerCertificate callback
// used on both dial and accept: since certificates are self-signed, there is
// no chain to validate against a root; what matters is that the leaf
// certificate is internally self-consistent (its signature verifies against
// its own declared public key) and, when expected is non-nil, that the
// resulting identity is the one the dialer intended to reach.
func verifyPeerCertificate(expected *rostra.RostraId) func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		if len(rawCerts) == 0 {
			return fmt.Errorf("p2p: no peer certificate presented")
		}
		cert, err := x509.ParseCertificate(rawCerts[0])
		if err != nil {
			return fmt.Errorf("p2p: parsing peer certificate: %w", err)
		}
		if err := cert.CheckSignatureFrom(cert); err != nil {
			return fmt.Errorf("p2p: peer certificate is not validly self-signed: %w", err)
		}
		id, err := identityFromCert(cert)
		if err != nil {
			return err
		}
		if expected != nil && id != *expected {
			return ErrPeerIdentityMismatch
		}
		return nil
	}
}

// serverTLSConfig returns the tls.Config a QUIC listener uses: it requires
// and authenticates the client's self-signed certificate so every accepted
// connection arrives with a verified RostraId attached, but does not know in
// advance which identity to expect.
func serverTLSConfig(secret rostra.RostraIdSecret) (*tls.Config, error) {
	cert, err := generateSelfSignedCert(secret)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates:          []tls.Certificate{cert},
		ClientAuth:            tls.RequireAnyClientCert,
		InsecureSkipVerify:    true,
		VerifyPeerCertificate: verifyPeerCertificate(nil),
		NextProtos:            []string{alpnProtocol},
		MinVersion:            tls.VersionTLS13,
	}, nil
}

// clientTLSConfig returns the tls.Config a dialer uses to reach a specific
// expected peer identity.
func clientTLSConfig(secret rostra.RostraIdSecret, expected rostra.RostraId) (*tls.Config, error) {
	cert, err := generateSelfSignedCert(secret)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates:          []tls.Certificate{cert},
		InsecureSkipVerify:    true,
		VerifyPeerCertificate: verifyPeerCertificate(&expected),
		NextProtos:            []string{alpnProtocol},
		MinVersion:            tls.VersionTLS13,
	}, nil
}
