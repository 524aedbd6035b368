package p2p

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeTicketRoundTrip(t *testing.T) {
	ticket := NodeTicket{Addrs: []string{"203.0.113.1:4433", "[2001:db8::1]:4433"}}
	decoded, err := ParseNodeTicket(ticket.Encode())
	require.NoError(t, err)
	assert.Equal(t, ticket.Addrs, decoded.Addrs)
}

func TestParseNodeTicketRejectsEmpty(t *testing.T) {
	_, err := ParseNodeTicket("")
	assert.Error(t, err)
}

func TestParseNodeTicketRejectsInvalidBase64(t *testing.T) {
	_, err := ParseNodeTicket("not valid base64!!")
	assert.Error(t, err)
}
