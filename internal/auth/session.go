// Package auth turns bearer tokens into an explicit session context. The
// engine trusts this context for tenant scoping and never issues tokens
// itself; issuance belongs to the identity service.
package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
)

// Session is the acting identity supplied to every engine call.
type Session struct {
	UserID  string
	StoreID string
	Role    string
}

// ErrUnauthorized indicates a missing, malformed or expired token.
var ErrUnauthorized = errors.New("invalid or missing credentials")

type sessionKey struct{}

// FromContext extracts the session placed by Middleware.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*Session)
	return s, ok
}

// WithSession returns ctx carrying the session. Exposed for tests.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

type claims struct {
	StoreID string `json:"storeId"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

// Verifier validates bearer tokens with an HMAC secret.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a Verifier for the given HMAC secret.
func NewVerifier(secret []byte) *Verifier {
	return &Verifier{secret: secret}
}

// Parse validates the token string and returns the session it carries.
func (v *Verifier) Parse(tokenStr string) (*Session, error) {
	var c claims
	token, err := jwt.ParseWithClaims(tokenStr, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrUnauthorized
	}
	if c.Subject == "" || c.StoreID == "" {
		return nil, ErrUnauthorized
	}
	return &Session{
		UserID:  c.Subject,
		StoreID: c.StoreID,
		Role:    c.Role,
	}, nil
}

// Sign issues a token for the session, valid for ttl. Only used by dev
// tooling and tests; production tokens come from the identity service with
// the same claims shape.
func (v *Verifier) Sign(s *Session, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		StoreID: s.StoreID,
		Role:    s.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString(v.secret)
}

// Middleware authenticates requests with the verifier and stores the session
// in the request context. Requests without a valid bearer token get 401.
func Middleware(v *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			tokenStr, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || tokenStr == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			session, err := v.Parse(tokenStr)
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
		})
	}
}
