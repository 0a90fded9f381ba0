package token

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	codec, err := NewCodec("test-secret", "gracegoods", "gracegoods-web", 24*time.Hour)
	require.NoError(t, err)
	return codec
}

func TestNewCodec_RequiresSecret(t *testing.T) {
	_, err := NewCodec("", "iss", "aud", time.Hour)
	assert.Error(t, err)
}

func TestIssueAndVerify_RoundTrip(t *testing.T) {
	codec := newTestCodec(t)
	now := time.Now()

	signed, issued, err := codec.Issue("user-1", "a@x.com", "A", "https://pic", now)
	require.NoError(t, err)
	require.NotEmpty(t, signed)

	claims, err := codec.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "a@x.com", claims.Email)
	assert.Equal(t, "A", claims.Name)
	assert.Equal(t, "https://pic", claims.Picture)
	assert.Equal(t, issued.ID, claims.ID)
	assert.Equal(t, "gracegoods", claims.Issuer)
	assert.True(t, claims.ExpiresAt.After(claims.IssuedAt.Time))
}

func TestIssue_FreshJTIPerCall(t *testing.T) {
	codec := newTestCodec(t)
	now := time.Now()

	first, _, err := codec.Issue("user-1", "a@x.com", "A", "", now)
	require.NoError(t, err)
	second, _, err := codec.Issue("user-1", "a@x.com", "A", "", now)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestVerify_Expired(t *testing.T) {
	codec := newTestCodec(t)

	// Issued far enough in the past that exp is already behind us.
	signed, _, err := codec.Issue("user-1", "a@x.com", "A", "", time.Now().Add(-48*time.Hour))
	require.NoError(t, err)

	_, err = codec.Verify(signed)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerify_TamperedSignature(t *testing.T) {
	codec := newTestCodec(t)

	signed, _, err := codec.Issue("user-1", "a@x.com", "A", "", time.Now())
	require.NoError(t, err)

	parts := strings.Split(signed, ".")
	require.Len(t, parts, 3)

	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	require.NoError(t, err)
	sig[len(sig)/2] ^= 0x01
	parts[2] = base64.RawURLEncoding.EncodeToString(sig)

	_, err = codec.Verify(strings.Join(parts, "."))
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerify_TamperedPayload(t *testing.T) {
	codec := newTestCodec(t)

	signed, _, err := codec.Issue("user-1", "a@x.com", "A", "", time.Now())
	require.NoError(t, err)

	parts := strings.Split(signed, ".")
	require.Len(t, parts, 3)

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)

	// Flip a bit inside the subject value. The claims still decode as
	// JSON, so only the signature check can catch the change.
	i := bytes.Index(payload, []byte("user-1"))
	require.GreaterOrEqual(t, i, 0)
	payload[i+len("user-1")-1] ^= 0x01
	parts[1] = base64.RawURLEncoding.EncodeToString(payload)

	_, err = codec.Verify(strings.Join(parts, "."))
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerify_WrongSecret(t *testing.T) {
	codec := newTestCodec(t)
	other, err := NewCodec("other-secret", "gracegoods", "gracegoods-web", time.Hour)
	require.NoError(t, err)

	signed, _, err := other.Issue("user-1", "a@x.com", "A", "", time.Now())
	require.NoError(t, err)

	_, err = codec.Verify(signed)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerify_Malformed(t *testing.T) {
	codec := newTestCodec(t)

	for _, input := range []string{"not-a-token", "a.b", "a.b.c.d", ""} {
		_, err := codec.Verify(input)
		assert.ErrorIs(t, err, ErrMalformedToken, "input %q", input)
	}
}

func TestHash_StableFingerprint(t *testing.T) {
	assert.Equal(t, Hash("abc"), Hash("abc"))
	assert.NotEqual(t, Hash("abc"), Hash("abd"))
	assert.Len(t, Hash("abc"), 64)
}
