package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTokenService_Issue_And_Verify(t *testing.T) {
	req := require.New(t)
	svc := NewTokenService("test-secret", "resono")

	token, err := svc.Issue("user_2abc", time.Minute)
	req.NoError(err)
	req.NotEmpty(token)

	userID, err := svc.Verify(token)
	req.NoError(err)
	req.Equal("user_2abc", userID)
}

func TestTokenService_Rejects_Wrong_Secret(t *testing.T) {
	req := require.New(t)
	issuer := NewTokenService("secret-a", "resono")
	verifier := NewTokenService("secret-b", "resono")

	token, err := issuer.Issue("user_2abc", time.Minute)
	req.NoError(err)

	_, err = verifier.Verify(token)
	req.ErrorIs(err, ErrInvalidToken)
}

func TestTokenService_Rejects_Expired_Token(t *testing.T) {
	req := require.New(t)
	svc := NewTokenService("test-secret", "resono")

	token, err := svc.Issue("user_2abc", -time.Minute)
	req.NoError(err)

	_, err = svc.Verify(token)
	req.ErrorIs(err, ErrInvalidToken)
}

func TestTokenService_Rejects_Garbage(t *testing.T) {
	req := require.New(t)
	svc := NewTokenService("test-secret", "resono")

	_, err := svc.Verify("not-a-token")
	req.ErrorIs(err, ErrInvalidToken)
}

func TestBearerToken_Sources(t *testing.T) {
	req := require.New(t)

	r := httptest.NewRequest("GET", "/api/users", nil)
	r.Header.Set("Authorization", "Bearer abc123")
	req.Equal("abc123", BearerToken(r))

	// websocket handshakes cannot set headers, so the query fallback
	r = httptest.NewRequest("GET", "/ws?token=xyz789", nil)
	req.Equal("xyz789", BearerToken(r))

	// malformed header is not silently rescued by the query parameter
	r = httptest.NewRequest("GET", "/ws?token=xyz789", nil)
	r.Header.Set("Authorization", "abc123")
	req.Equal("", BearerToken(r))

	r = httptest.NewRequest("GET", "/api/users", nil)
	req.Equal("", BearerToken(r))
}
