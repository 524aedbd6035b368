package rostra

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeFollow(t *testing.T) {
	followee := mustSecret(t).RostraId()
	payload := Follow{Followee: followee, Persona: PersonaSelf}

	enc, err := EncodeContent(payload)
	require.NoError(t, err)

	decoded, err := DecodeContent[Follow](enc)
	require.NoError(t, err)
	assert.Equal(t, payload, decoded)
}

func TestEncodeDecodeSocialPost(t *testing.T) {
	payload := SocialPost{Persona: 3, DjotContent: "hello *world*"}
	enc, err := EncodeContent(payload)
	require.NoError(t, err)

	decoded, err := DecodeContent[SocialPost](enc)
	require.NoError(t, err)
	assert.Equal(t, payload, decoded)
}

func TestEncodeDecodeSocialProfileUpdate(t *testing.T) {
	payload := SocialProfileUpdate{
		DisplayName: "Ada",
		Bio:         "hacker",
		ImgMime:     "image/png",
		Img:         []byte{1, 2, 3, 4},
	}
	enc, err := EncodeContent(payload)
	require.NoError(t, err)

	decoded, err := DecodeContent[SocialProfileUpdate](enc)
	require.NoError(t, err)
	assert.Equal(t, payload, decoded)
	assert.True(t, decoded.HasAvatar())
}

func TestSocialProfileUpdateNoAvatar(t *testing.T) {
	payload := SocialProfileUpdate{DisplayName: "Ada"}
	assert.False(t, payload.HasAvatar())
}

func TestEncodeDecodeSocialReaction(t *testing.T) {
	author := mustSecret(t).RostraId()
	payload := SocialReaction{
		Personas:  []string{"default"},
		Timestamp: Timestamp(123),
		Author:    author,
		EventId:   EventId{1, 2, 3},
	}
	enc, err := EncodeContent(payload)
	require.NoError(t, err)

	decoded, err := DecodeContent[SocialReaction](enc)
	require.NoError(t, err)
	assert.Equal(t, payload, decoded)
}

func TestNewContentEventSetsHashAndLen(t *testing.T) {
	content := []byte("payload bytes")
	e := NewContentEvent(EventKindSocialPost, content)
	assert.Equal(t, uint32(len(content)), e.ContentLen)
	assert.Equal(t, HashContent(content), e.ContentHash)
}
