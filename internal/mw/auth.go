package mw

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type subjectKeyType string

const subjectKey subjectKeyType = "sub"

var (
	errNoBearer     = errors.New("missing bearer token")
	errInvalidToken = errors.New("invalid token")
	errNoSubject    = errors.New("missing sub")
)

type AuthHandler interface {
	ValidateBearer(r *http.Request) (string, error)
}

// Authenticator validates HS256 bearer tokens minted with the shared secret.
type Authenticator struct {
	HMACSecret []byte
}

func (a Authenticator) ValidateBearer(r *http.Request) (string, error) {
	authz := r.Header.Get("Authorization")
	tokStr, ok := strings.CutPrefix(authz, "Bearer ")
	if !ok || len(a.HMACSecret) == 0 {
		return "", errNoBearer
	}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	tok, err := parser.ParseWithClaims(strings.TrimSpace(tokStr), claims, func(*jwt.Token) (any, error) {
		return a.HMACSecret, nil
	})
	if err != nil || tok == nil || !tok.Valid {
		return "", errInvalidToken
	}
	sub, _ := claims.GetSubject()
	if sub == "" {
		return "", errNoSubject
	}
	return sub, nil
}

func withSubject(r *http.Request, sub string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), subjectKey, sub))
}

func Subject(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(subjectKey).(string)
	return v, ok
}

// OptionalAuth attaches the bearer subject when the token is valid and
// otherwise lets the request through untouched. Echo endpoints never
// demand credentials; the subject only keys user scoped rate limits.
func OptionalAuth(auth AuthHandler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if auth == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if sub, err := auth.ValidateBearer(r); err == nil {
				r = withSubject(r, sub)
			}
			next.ServeHTTP(w, r)
		})
	}
}
