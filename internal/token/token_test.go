package token_test

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyxmakerx/userservice/internal/token"
)

const testSecret = "test-secret-key-0123456789abcdefghij"

func TestCodec_SessionRoundTrip(t *testing.T) {
	codec := token.NewCodec(testSecret, time.Hour)

	pairs := []struct {
		id          int64
		email, role string
	}{
		{1, "a@x.com", "USER"},
		{42, "Mixed.Case@Example.org", "STUDENT"},
		{7, "root@example.com", "ADMIN"},
	}
	for _, p := range pairs {
		raw, err := codec.IssueSessionToken(p.id, p.email, p.role)
		require.NoError(t, err)
		assert.Equal(t, 3, len(strings.Split(raw, ".")))

		claims, err := codec.Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, p.email, claims.Email())
		assert.Equal(t, p.id, claims.UserID)
		assert.Equal(t, p.role, claims.Role)
		assert.Equal(t, token.PurposeSession, claims.Purpose)
		assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, 2*time.Second)
	}
}

func TestCodec_ResetTokenPurposeAndTTL(t *testing.T) {
	codec := token.NewCodec(testSecret, 24*time.Hour)

	raw, err := codec.IssueResetToken("a@x.com")
	require.NoError(t, err)

	claims, err := codec.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, token.PurposeReset, claims.Purpose)
	assert.Empty(t, claims.Role)
	assert.Zero(t, claims.UserID)
	assert.WithinDuration(t, time.Now().Add(token.ResetTTL), claims.ExpiresAt.Time, 2*time.Second)
}

func TestCodec_ExpiredNeverReportsSignature(t *testing.T) {
	past := time.Now().Add(-2 * time.Hour)
	minter := token.NewCodec(testSecret, time.Hour).WithClock(func() time.Time { return past })

	raw, err := minter.IssueSessionToken(1, "a@x.com", "USER")
	require.NoError(t, err)

	_, err = token.NewCodec(testSecret, time.Hour).Parse(raw)
	assert.ErrorIs(t, err, token.ErrExpired)
	assert.NotErrorIs(t, err, token.ErrInvalidSignature)
}

func TestCodec_ExpiryBoundaryIsExclusive(t *testing.T) {
	issued := time.Now().Truncate(time.Second)
	codec := token.NewCodec(testSecret, time.Minute).WithClock(func() time.Time { return issued })

	raw, err := codec.IssueSessionToken(1, "a@x.com", "USER")
	require.NoError(t, err)

	atExpiry := codec.WithClock(func() time.Time { return issued.Add(time.Minute) })
	_, err = atExpiry.Parse(raw)
	assert.ErrorIs(t, err, token.ErrExpired)

	justBefore := codec.WithClock(func() time.Time { return issued.Add(time.Minute - time.Millisecond) })
	_, err = justBefore.Parse(raw)
	assert.NoError(t, err)
}

func TestCodec_TamperedSignature(t *testing.T) {
	codec := token.NewCodec(testSecret, time.Hour)
	raw, err := codec.IssueSessionToken(1, "a@x.com", "ADMIN")
	require.NoError(t, err)

	parts := strings.Split(raw, ".")
	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	require.NoError(t, err)

	for i := range sig {
		tampered := make([]byte, len(sig))
		copy(tampered, sig)
		tampered[i] ^= 0x01

		forged := parts[0] + "." + parts[1] + "." + base64.RawURLEncoding.EncodeToString(tampered)
		_, err := codec.Parse(forged)
		require.ErrorIs(t, err, token.ErrInvalidSignature, "byte %d", i)
	}
}

func TestCodec_TamperedExpiredTokenIsSignatureFailure(t *testing.T) {
	past := time.Now().Add(-2 * time.Hour)
	raw, err := token.NewCodec(testSecret, time.Hour).
		WithClock(func() time.Time { return past }).
		IssueSessionToken(1, "a@x.com", "USER")
	require.NoError(t, err)

	_, err = token.NewCodec("some-other-secret-entirely-000000000", time.Hour).Parse(raw)
	assert.ErrorIs(t, err, token.ErrInvalidSignature)
}

func TestCodec_Malformed(t *testing.T) {
	codec := token.NewCodec(testSecret, time.Hour)
	for _, raw := range []string{"", "garbage", "a.b.c", "eyJhbGciOiJub25lIn0.e30."} {
		_, err := codec.Parse(raw)
		assert.ErrorIs(t, err, token.ErrInvalidSignature, "input %q", raw)
	}
}

func TestCodec_IsValid(t *testing.T) {
	codec := token.NewCodec(testSecret, time.Hour)

	good, err := codec.IssueSessionToken(1, "a@x.com", "USER")
	require.NoError(t, err)
	ok, err := codec.IsValid(good)
	assert.NoError(t, err)
	assert.True(t, ok)

	past := time.Now().Add(-2 * time.Hour)
	stale, err := codec.WithClock(func() time.Time { return past }).IssueSessionToken(1, "a@x.com", "USER")
	require.NoError(t, err)
	ok, err = codec.IsValid(stale)
	assert.NoError(t, err)
	assert.False(t, ok)

	ok, err = codec.IsValid(good + "x")
	assert.ErrorIs(t, err, token.ErrInvalidSignature)
	assert.False(t, ok)
}
