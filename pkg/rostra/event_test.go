package rostra

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustSecret(t *testing.T) RostraIdSecret {
	t.Helper()
	secret, err := GenerateRostraIdSecret()
	require.NoError(t, err)
	return secret
}

func TestEventEncodeDecodeRoundTrip(t *testing.T) {
	secret := mustSecret(t)
	parentPrev := ShortEventId{1, 2, 3}
	parentAux := ShortEventId{9, 9, 9}

	e := Event{
		Author:      secret.RostraId(),
		Kind:        EventKindSocialPost,
		Timestamp:   Timestamp(1_700_000_000),
		ParentPrev:  &parentPrev,
		ParentAux:   &parentAux,
		ContentHash: HashContent([]byte("hello")),
		ContentLen:  5,
	}

	enc := e.Encode()
	assert.Len(t, enc, eventEncodedLen)

	decoded, err := DecodeEvent(enc[:])
	require.NoError(t, err)
	assert.Equal(t, e, decoded)
}

func TestEventEncodeDecodeNoParents(t *testing.T) {
	secret := mustSecret(t)
	e := Event{
		Author:    secret.RostraId(),
		Kind:      EventKindNull,
		Timestamp: Timestamp(42),
	}
	enc := e.Encode()
	decoded, err := DecodeEvent(enc[:])
	require.NoError(t, err)
	assert.Nil(t, decoded.ParentPrev)
	assert.Nil(t, decoded.ParentAux)
	assert.Equal(t, e, decoded)
}

func TestEventIdDeterministic(t *testing.T) {
	secret := mustSecret(t)
	e := Event{
		Author:    secret.RostraId(),
		Kind:      EventKindRaw,
		Timestamp: Timestamp(100),
	}
	id1 := e.Id()
	id2 := e.Id()
	assert.Equal(t, id1, id2)

	e2 := e
	e2.Timestamp = Timestamp(101)
	assert.NotEqual(t, id1, e2.Id())
}

func TestEventIdShortStringRoundTrip(t *testing.T) {
	secret := mustSecret(t)
	e := Event{Author: secret.RostraId(), Kind: EventKindRaw, Timestamp: 1}
	id := e.Id()

	text := id.String()
	parsed, err := ParseEventId(text)
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	short := id.Short()
	shortText := short.String()
	parsedShort, err := ParseShortEventId(shortText)
	require.NoError(t, err)
	assert.Equal(t, short, parsedShort)
}

func TestSignByAndVerify(t *testing.T) {
	secret := mustSecret(t)
	e := Event{Author: secret.RostraId(), Kind: EventKindRaw, Timestamp: 1}
	se := e.SignBy(secret)
	assert.NoError(t, se.Verify())
}

func TestSignedEventVerifyRejectsTamperedAuthor(t *testing.T) {
	secret := mustSecret(t)
	other := mustSecret(t)
	e := Event{Author: secret.RostraId(), Kind: EventKindRaw, Timestamp: 1}
	se := e.SignBy(secret)
	se.Event.Author = other.RostraId()
	assert.ErrorIs(t, se.Verify(), ErrSignatureInvalid)
}

func TestVerifySigned(t *testing.T) {
	secret := mustSecret(t)
	e := Event{Author: secret.RostraId(), Kind: EventKindRaw, Timestamp: 1}
	se := e.SignBy(secret)

	ve, err := VerifySigned(se)
	require.NoError(t, err)
	assert.Equal(t, e.Id(), ve.Id)
}

func TestVerifySignedRejectsBadSignature(t *testing.T) {
	secret := mustSecret(t)
	e := Event{Author: secret.RostraId(), Kind: EventKindRaw, Timestamp: 1}
	se := e.SignBy(secret)
	se.Signature[0] ^= 0xFF

	_, err := VerifySigned(se)
	assert.ErrorIs(t, err, ErrSignatureInvalid)
}

func TestVerifyResponseChecksAuthorAndId(t *testing.T) {
	secret := mustSecret(t)
	other := mustSecret(t)
	e := Event{Author: secret.RostraId(), Kind: EventKindRaw, Timestamp: 1}
	se := e.SignBy(secret)
	expectedId := e.Id()

	t.Run("matches", func(t *testing.T) {
		ve, err := VerifyResponse(secret.RostraId(), expectedId, se)
		require.NoError(t, err)
		assert.Equal(t, expectedId, ve.Id)
	})

	t.Run("author mismatch", func(t *testing.T) {
		_, err := VerifyResponse(other.RostraId(), expectedId, se)
		assert.ErrorIs(t, err, ErrAuthorMismatch)
	})

	t.Run("event id mismatch", func(t *testing.T) {
		wrongId := EventId{0xAA}
		_, err := VerifyResponse(secret.RostraId(), wrongId, se)
		assert.ErrorIs(t, err, ErrEventIdMismatch)
	})
}

func TestVerifyContent(t *testing.T) {
	secret := mustSecret(t)
	content := []byte("some opaque content")
	e := NewContentEvent(EventKindSocialPost, content)
	e.Author = secret.RostraId()
	e.Timestamp = 1
	se := e.SignBy(secret)
	ve, err := VerifySigned(se)
	require.NoError(t, err)

	vc, err := VerifyContent(ve, content)
	require.NoError(t, err)
	assert.Equal(t, content, vc.Content)

	_, err = VerifyContent(ve, []byte("wrong content"))
	assert.ErrorIs(t, err, ErrContentMismatch)
}

func TestVerifyContentEmpty(t *testing.T) {
	secret := mustSecret(t)
	e := Event{Author: secret.RostraId(), Kind: EventKindNull, Timestamp: 1}
	se := e.SignBy(secret)
	ve, err := VerifySigned(se)
	require.NoError(t, err)

	vc, err := VerifyContent(ve, nil)
	require.NoError(t, err)
	assert.Nil(t, vc.Content)

	_, err = VerifyContent(ve, []byte("unexpected"))
	assert.ErrorIs(t, err, ErrContentMismatch)
}

func TestEventKindString(t *testing.T) {
	assert.Equal(t, "social_post", EventKindSocialPost.String())
	assert.Equal(t, "kind(999)", EventKind(999).String())
}
