package muxhandlers

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"

	"github.com/vitalvas/flacon/mux"
)

// ErrNoAuthSource is returned when BasicAuthConfig has neither ValidateFunc
// nor Credentials configured.
var ErrNoAuthSource = errors.New("basic auth: at least one of ValidateFunc or Credentials must be set")

const basicAuthUserKey = "muxhandlers.basic_auth_user"

// BasicAuthUser returns the username authenticated by BasicAuthMiddleware,
// or an empty string.
func BasicAuthUser(c *mux.Context) string {
	v, _ := c.Get(basicAuthUserKey)
	user, _ := v.(string)
	return user
}

// BasicAuthConfig configures HTTP Basic authentication (RFC 7617).
type BasicAuthConfig struct {
	// Realm is sent in the WWW-Authenticate challenge. Defaults to
	// "Restricted".
	Realm string

	// ValidateFunc checks credentials. It takes priority over Credentials.
	ValidateFunc func(username, password string) bool

	// Credentials maps usernames to passwords.
	Credentials map[string]string

	// Scope selects the protected endpoints. The zero value protects
	// everything.
	Scope Scope
}

type passwordDigest [sha256.Size]byte

// equal compares digests in constant time.
func (d passwordDigest) equal(password string) bool {
	other := sha256.Sum256([]byte(password))
	return subtle.ConstantTimeCompare(d[:], other[:]) == 1
}

// BasicAuthMiddleware returns a middleware that requires valid Basic
// credentials on the endpoints in cfg.Scope. Missing or wrong credentials
// abort with 401 and an empty body. The username is available to handlers
// through BasicAuthUser.
//
// It returns ErrNoAuthSource if both ValidateFunc and Credentials are empty.
func BasicAuthMiddleware(cfg BasicAuthConfig) (mux.MiddlewareFunc, error) {
	if cfg.ValidateFunc == nil && len(cfg.Credentials) == 0 {
		return nil, ErrNoAuthSource
	}

	realm := cfg.Realm
	if realm == "" {
		realm = "Restricted"
	}

	challenge := mux.Abort(http.StatusUnauthorized).
		WithHeader("WWW-Authenticate", "Basic realm="+strconv.Quote(realm)).
		WithBodyBytes(nil)

	validate := cfg.ValidateFunc
	if validate == nil {
		digests := make(map[string]passwordDigest, len(cfg.Credentials))
		for user, password := range cfg.Credentials {
			digests[user] = sha256.Sum256([]byte(password))
		}

		// Unknown users are compared against a zero digest so the lookup
		// result does not change the timing.
		validate = func(username, password string) bool {
			digest, known := digests[username]
			match := digest.equal(password)
			return known && match
		}
	}

	scope := cfg.Scope.matcher()

	return func(next mux.HandlerFunc) mux.HandlerFunc {
		return func(c *mux.Context) (any, error) {
			if !scope.match(c) {
				return next(c)
			}

			username, password, ok := (&http.Request{Header: c.Header()}).BasicAuth()
			if !ok || !validate(username, password) {
				return nil, challenge
			}

			c.Set(basicAuthUserKey, username)
			return next(c)
		}
	}, nil
}
