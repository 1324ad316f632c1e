package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chat-core/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("test-secret")

func newTestService() *Service {
	return NewService(&config.Config{
		JWT: config.JWTConfig{Secret: testSecret, Algorithm: "HS256"},
	})
}

func mintToken(t *testing.T, claims jwt.RegisteredClaims, secret []byte) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func TestAuthenticateValidToken(t *testing.T) {
	s := newTestService()
	token := mintToken(t, jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}, testSecret)

	identity, err := s.Authenticate(token)
	if err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}
	if identity.UserID != "alice" {
		t.Fatalf("user = %q, want alice", identity.UserID)
	}
}

func TestAuthenticateFailures(t *testing.T) {
	s := newTestService()

	expired := mintToken(t, jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}, testSecret)
	badSignature := mintToken(t, jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}, []byte("wrong-secret"))
	noSubject := mintToken(t, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}, testSecret)

	tests := []struct {
		name     string
		token    string
		wantCode string
	}{
		{"missing", "", CodeTokenMissing},
		{"expired", expired, CodeTokenExpired},
		{"garbage", "not.a.jwt", CodeTokenInvalid},
		{"bad signature", badSignature, CodeTokenInvalid},
		{"no subject", noSubject, CodePayloadInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Authenticate(tt.token)
			if err == nil {
				t.Fatal("authenticate should fail")
			}
			var ae *AuthError
			if !errors.As(err, &ae) {
				t.Fatalf("error %T is not *AuthError", err)
			}
			if ae.Code != tt.wantCode {
				t.Fatalf("code = %s, want %s", ae.Code, tt.wantCode)
			}
		})
	}
}

func TestRejectsUnexpectedSigningMethod(t *testing.T) {
	s := newTestService()

	// alg=none style tokens must never validate.
	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "alice"})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}

	if _, err := s.Authenticate(signed); err == nil {
		t.Fatal("unsigned token must be rejected")
	}
}

func TestDefaultExtractorPrefersQueryParameter(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws?token=from-query", nil)
	r.AddCookie(&http.Cookie{Name: "authToken", Value: "from-cookie"})

	if got := DefaultExtractor(r); got != "from-query" {
		t.Fatalf("extracted %q, want the query parameter", got)
	}
}

func TestDefaultExtractorFallsBackToCookie(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.AddCookie(&http.Cookie{Name: "authToken", Value: "from-cookie"})

	if got := DefaultExtractor(r); got != "from-cookie" {
		t.Fatalf("extracted %q, want the cookie value", got)
	}
}

func TestDefaultExtractorEmpty(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	if got := DefaultExtractor(r); got != "" {
		t.Fatalf("extracted %q from a bare request", got)
	}
}

func TestSetExtractor(t *testing.T) {
	s := newTestService()
	s.SetExtractor(func(r *http.Request) string {
		return r.Header.Get("X-Token")
	})

	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("X-Token", "custom")
	if got := s.ExtractToken(r); got != "custom" {
		t.Fatalf("extracted %q, want the custom strategy result", got)
	}
}
