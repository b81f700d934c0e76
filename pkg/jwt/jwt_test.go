package jwt_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/extensionpro/extensionpro/pkg/jwt"
)

func TestNew_RequiresSigningKey(t *testing.T) {
	t.Parallel()

	_, err := jwt.New(nil)
	assert.ErrorIs(t, err, jwt.ErrMissingSigningKey)
}

func TestService_GenerateAndParse(t *testing.T) {
	t.Parallel()

	svc, err := jwt.New([]byte("test-signing-key-of-sufficient-len"))
	require.NoError(t, err)

	claims := jwt.StandardClaims{
		Subject:   "6ba7b810-9dad-11d1-80b4-00c04fd430c8",
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	}

	token, err := svc.Generate(claims)
	require.NoError(t, err)
	assert.Len(t, strings.Split(token, "."), 3)

	var parsed jwt.StandardClaims
	require.NoError(t, svc.Parse(token, &parsed))
	assert.Equal(t, claims.Subject, parsed.Subject)
	assert.Equal(t, claims.ExpiresAt, parsed.ExpiresAt)
}

func TestService_Parse_Errors(t *testing.T) {
	t.Parallel()

	svc, err := jwt.New([]byte("test-signing-key-of-sufficient-len"))
	require.NoError(t, err)

	t.Run("malformed token", func(t *testing.T) {
		t.Parallel()
		var claims jwt.StandardClaims
		assert.ErrorIs(t, svc.Parse("not-a-token", &claims), jwt.ErrInvalidToken)
	})

	t.Run("wrong key", func(t *testing.T) {
		t.Parallel()

		other, err := jwt.New([]byte("a-completely-different-signing-key"))
		require.NoError(t, err)
		token, err := other.Generate(jwt.StandardClaims{Subject: "sub"})
		require.NoError(t, err)

		var claims jwt.StandardClaims
		assert.ErrorIs(t, svc.Parse(token, &claims), jwt.ErrInvalidSignature)
	})

	t.Run("tampered payload", func(t *testing.T) {
		t.Parallel()

		token, err := svc.Generate(jwt.StandardClaims{Subject: "sub"})
		require.NoError(t, err)
		parts := strings.Split(token, ".")
		parts[1] = parts[1][:len(parts[1])-2] + "xx"

		var claims jwt.StandardClaims
		assert.ErrorIs(t, svc.Parse(strings.Join(parts, "."), &claims), jwt.ErrInvalidSignature)
	})

	t.Run("expired token", func(t *testing.T) {
		t.Parallel()

		token, err := svc.Generate(jwt.StandardClaims{
			Subject:   "sub",
			ExpiresAt: time.Now().Add(-time.Minute).Unix(),
		})
		require.NoError(t, err)

		var claims jwt.StandardClaims
		assert.ErrorIs(t, svc.Parse(token, &claims), jwt.ErrExpiredToken)
	})

	t.Run("not yet valid", func(t *testing.T) {
		t.Parallel()

		token, err := svc.Generate(jwt.StandardClaims{
			Subject:   "sub",
			NotBefore: time.Now().Add(time.Hour).Unix(),
		})
		require.NoError(t, err)

		var claims jwt.StandardClaims
		assert.ErrorIs(t, svc.Parse(token, &claims), jwt.ErrInvalidToken)
	})
}

func TestService_Parse_CustomClaims(t *testing.T) {
	t.Parallel()

	svc, err := jwt.New([]byte("test-signing-key-of-sufficient-len"))
	require.NoError(t, err)

	type customClaims struct {
		jwt.StandardClaims
		Email string `json:"email"`
	}

	token, err := svc.Generate(customClaims{
		StandardClaims: jwt.StandardClaims{Subject: "sub"},
		Email:          "user@example.com",
	})
	require.NoError(t, err)

	var parsed customClaims
	require.NoError(t, svc.Parse(token, &parsed))
	assert.Equal(t, "user@example.com", parsed.Email)
}
