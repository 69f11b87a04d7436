package auth_test

import (
	"chat-relay/auth"
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestVerifier_RoundTrip(t *testing.T) {
	req := require.New(t)
	verifier := auth.NewVerifier("secret", "chat-relay")

	token, err := verifier.GenerateToken("alice", time.Minute)
	req.NoError(err)

	userID, err := verifier.Verify(context.Background(), token)
	req.NoError(err)
	req.EqualValues("alice", userID)
}

func TestVerifier_Rejects(t *testing.T) {
	issuer := auth.NewVerifier("secret", "chat-relay")
	expired, err := issuer.GenerateToken("alice", -time.Minute)
	require.NoError(t, err)
	foreign, err := auth.NewVerifier("other-secret", "chat-relay").GenerateToken("alice", time.Minute)
	require.NoError(t, err)
	otherIssuer, err := auth.NewVerifier("secret", "someone-else").GenerateToken("alice", time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"expired", expired},
		{"wrong signature", foreign},
		{"wrong issuer", otherIssuer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)

			userID, err := issuer.Verify(context.Background(), tt.token)

			req.Error(err)
			req.Empty(userID)
		})
	}
}

func TestVerifier_Falls_Back_To_Subject(t *testing.T) {
	req := require.New(t)
	claims := jwt.RegisteredClaims{
		Subject:   "bob",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	req.NoError(err)

	userID, err := auth.NewVerifier("secret", "").Verify(context.Background(), token)

	req.NoError(err)
	req.EqualValues("bob", userID)
}

func TestVerifier_Rejects_None_Algorithm(t *testing.T) {
	req := require.New(t)
	claims := auth.Claims{UserID: "mallory"}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	req.NoError(err)

	_, err = auth.NewVerifier("secret", "").Verify(context.Background(), token)

	req.Error(err)
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		header string
		want   string
	}{
		{"header", "/ws", "Bearer abc", "abc"},
		{"query", "/ws?token=xyz", "", "xyz"},
		{"header wins", "/ws?token=xyz", "Bearer abc", "abc"},
		{"other scheme", "/ws", "Basic dXNlcg==", ""},
		{"nothing", "/ws", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			r := httptest.NewRequest("GET", tt.url, nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}

			req.Equal(tt.want, auth.BearerToken(r))
		})
	}
}
