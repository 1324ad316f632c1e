package auth

import (
	"errors"
	"fmt"
	"net/http"

	"chat-core/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

// Error codes surfaced to clients in the close message.
const (
	CodeTokenMissing   = "TOKEN_MISSING"
	CodeTokenExpired   = "TOKEN_EXPIRED"
	CodeTokenInvalid   = "INVALID_TOKEN"
	CodePayloadInvalid = "INVALID_PAYLOAD"
)

// AuthError is a token validation failure with a stable code.
type AuthError struct {
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth: %s: %s", e.Code, e.Message)
}

var (
	ErrTokenMissing   = &AuthError{Code: CodeTokenMissing, Message: "no token supplied"}
	ErrTokenExpired   = &AuthError{Code: CodeTokenExpired, Message: "token has expired"}
	ErrTokenInvalid   = &AuthError{Code: CodeTokenInvalid, Message: "token is malformed or has a bad signature"}
	ErrPayloadInvalid = &AuthError{Code: CodePayloadInvalid, Message: "token carries no subject claim"}
)

// Identity is the result of a successful authentication.
type Identity struct {
	UserID string
}

// TokenExtractor pulls a bearer token out of the upgrade request.
// Returning "" means no token was found.
type TokenExtractor func(r *http.Request) string

// DefaultExtractor checks the token query parameter first, then the
// authToken cookie.
func DefaultExtractor(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	if cookie, err := r.Cookie("authToken"); err == nil {
		return cookie.Value
	}
	return ""
}

// Service validates bearer tokens issued by the external login
// collaborator. Pure validation; it never issues tokens.
type Service struct {
	secret    []byte
	method    jwt.SigningMethod
	extractor TokenExtractor
}

func NewService(cfg *config.Config) *Service {
	return &Service{
		secret:    cfg.JWT.Secret,
		method:    jwt.GetSigningMethod(cfg.JWT.Algorithm),
		extractor: DefaultExtractor,
	}
}

// SetExtractor overrides the token extraction strategy.
func (s *Service) SetExtractor(fn TokenExtractor) {
	if fn != nil {
		s.extractor = fn
	}
}

// ExtractToken applies the configured extraction strategy.
func (s *Service) ExtractToken(r *http.Request) string {
	return s.extractor(r)
}

// Authenticate validates tokenString and yields the identity carried in
// its subject claim. Failures are always *AuthError values.
func (s *Service) Authenticate(tokenString string) (*Identity, error) {
	if tokenString == "" {
		return nil, ErrTokenMissing
	}

	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		if token.Method.Alg() != s.method.Alg() {
			return nil, fmt.Errorf("signing method %s not allowed", token.Method.Alg())
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Subject == "" {
		return nil, ErrPayloadInvalid
	}

	return &Identity{UserID: claims.Subject}, nil
}
