package p2p

import (
	"context"
	"fmt"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/dpc/rostra/pkg/rostra"
)

// quicConfig is shared by listener and dialer; keepalives keep connections
// in the pool usable across the multi-minute gaps between replication
// worker passes without a NAT timing them out.
var quicConfig = &quic.Config{
	KeepAlivePeriod: 15 * time.Second,
	MaxIdleTimeout:  0,
}

// Listener accepts authenticated incoming connections on a single UDP
// socket.
type Listener struct {
	secret rostra.RostraIdSecret
	inner  *quic.Listener
}

// Listen binds addr (host:port, empty host for all interfaces) and starts
// accepting QUIC connections authenticated under secret's identity.
func Listen(addr string, secret rostra.RostraIdSecret) (*Listener, error) {
	tlsConf, err := serverTLSConfig(secret)
	if err != nil {
		return nil, err
	}
	inner, err := quic.ListenAddr(addr, tlsConf, quicConfig)
	if err != nil {
		return nil, fmt.Errorf("p2p: listening on %s: %w", addr, err)
	}
	return &Listener{secret: secret, inner: inner}, nil
}

// Addr returns the socket address peers should be given in a NodeTicket.
func (l *Listener) Addr() string {
	return l.inner.Addr().String()
}

// Accept blocks for the next incoming connection and wraps it as a Conn once
// the peer's self-signed certificate has been authenticated by the TLS
// handshake.
func (l *Listener) Accept(ctx context.Context) (*Conn, error) {
	qc, err := l.inner.Accept(ctx)
	if err != nil {
		return nil, err
	}
	peer, err := peerIdentity(qc)
	if err != nil {
		_ = qc.CloseWithError(0, "unauthenticated")
		return nil, err
	}
	return newConn(qc, peer), nil
}

// Close stops accepting new connections.
func (l *Listener) Close() error {
	return l.inner.Close()
}

// Dial opens a new authenticated connection to expected at addr.
func Dial(ctx context.Context, addr string, secret rostra.RostraIdSecret, expected rostra.RostraId) (*Conn, error) {
	tlsConf, err := clientTLSConfig(secret, expected)
	if err != nil {
		return nil, err
	}
	qc, err := quic.DialAddr(ctx, addr, tlsConf, quicConfig)
	if err != nil {
		return nil, fmt.Errorf("p2p: dialing %s: %w", addr, err)
	}
	return newConn(qc, expected), nil
}

// peerIdentity extracts the RostraId the remote side authenticated as
// during the handshake; VerifyPeerCertificate already checked the
// certificate's internal consistency, so this just re-derives the identity
// from the now-trusted leaf.
func peerIdentity(qc *quic.Conn) (rostra.RostraId, error) {
	state := qc.ConnectionState().TLS
	if len(state.PeerCertificates) == 0 {
		return rostra.RostraId{}, fmt.Errorf("p2p: connection has no peer certificate")
	}
	return identityFromCert(state.PeerCertificates[0])
}
