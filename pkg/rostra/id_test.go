package rostra

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRostraIdStringRoundTrip(t *testing.T) {
	secret, err := GenerateRostraIdSecret()
	require.NoError(t, err)
	id := secret.RostraId()

	text := id.String()
	parsed, err := ParseRostraId(text)
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestRostraIdSplitAssemble(t *testing.T) {
	secret, err := GenerateRostraIdSecret()
	require.NoError(t, err)
	id := secret.RostraId()

	short := id.Short()
	rest := id.Rest()

	assembled, err := AssembleRostraId(short, rest)
	require.NoError(t, err)
	assert.Equal(t, id, assembled)
}

func TestAssembleRostraIdWrongRestLength(t *testing.T) {
	_, err := AssembleRostraId(ShortRostraId{}, []byte{1, 2, 3})
	assert.Error(t, err)
}

func TestParseRostraIdInvalid(t *testing.T) {
	_, err := ParseRostraId("not-valid-z-base32!!")
	assert.Error(t, err)
}

func TestMnemonicRoundTrip(t *testing.T) {
	secret, mnemonic, err := NewMnemonicSecret()
	require.NoError(t, err)
	require.NotEmpty(t, mnemonic)

	recovered, err := RostraIdSecretFromMnemonic(mnemonic)
	require.NoError(t, err)
	assert.Equal(t, secret, recovered)
	assert.Equal(t, secret.RostraId(), recovered.RostraId())
}

func TestSignVerify(t *testing.T) {
	secret, err := GenerateRostraIdSecret()
	require.NoError(t, err)
	id := secret.RostraId()

	msg := []byte("hello rostra")
	sig := secret.Sign(msg)
	assert.True(t, Verify(id, msg, sig))

	other, err := GenerateRostraIdSecret()
	require.NoError(t, err)
	assert.False(t, Verify(other.RostraId(), msg, sig))
	assert.False(t, Verify(id, []byte("tampered"), sig))
}
