package middleware

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// SessionCookie carries the signed session token for browser clients.
	SessionCookie = "storefront_session"
	// SessionTokenHeader echoes a newly minted token for non-cookie clients.
	SessionTokenHeader = "X-Session-Token"

	sessionIDKey = "session_id"
	tokenIssuer  = "storefront"
)

// SessionOptions configures the session token middleware.
type SessionOptions struct {
	Secret       []byte
	TTL          time.Duration
	CookieSecure bool
}

type sessionClaims struct {
	jwt.RegisteredClaims
}

// IssueSessionToken signs a token naming the session id.
func IssueSessionToken(secret []byte, sessionID string, ttl time.Duration, now time.Time) (string, error) {
	claims := sessionClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:  sessionID,
		Issuer:   tokenIssuer,
		IssuedAt: jwt.NewNumericDate(now),
	}}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseSessionToken verifies tok and returns the session id it carries.
func ParseSessionToken(secret []byte, tok string) (string, error) {
	var claims sessionClaims
	_, err := jwt.ParseWithClaims(tok, &claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return "", err
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return "", errors.New("session token subject is not a session id")
	}
	return claims.Subject, nil
}

// Session resolves the storefront session from the bearer header or cookie.
// Requests without a valid token get a fresh anonymous session, whose token
// is returned as a cookie and in the X-Session-Token header.
func Session(opts SessionOptions) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tok := bearerToken(c.Get(fiber.HeaderAuthorization))
		if tok == "" {
			tok = c.Cookies(SessionCookie)
		}

		var sid string
		if tok != "" {
			if id, err := ParseSessionToken(opts.Secret, tok); err == nil {
				sid = id
			}
		}
		if sid == "" {
			sid = uuid.NewString()
			signed, err := IssueSessionToken(opts.Secret, sid, opts.TTL, time.Now())
			if err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, "could not issue session")
			}
			cookie := &fiber.Cookie{
				Name:     SessionCookie,
				Value:    signed,
				Path:     "/",
				HTTPOnly: true,
				Secure:   opts.CookieSecure,
				SameSite: fiber.CookieSameSiteLaxMode,
			}
			if opts.TTL > 0 {
				cookie.Expires = time.Now().Add(opts.TTL)
			}
			c.Cookie(cookie)
			c.Set(SessionTokenHeader, signed)
		}

		c.Locals(sessionIDKey, sid)
		return c.Next()
	}
}

// SessionID returns the session id resolved by Session, or "" outside it.
func SessionID(c *fiber.Ctx) string {
	sid, _ := c.Locals(sessionIDKey).(string)
	return sid
}

func bearerToken(authz string) string {
	if len(authz) < len("bearer ") || !strings.EqualFold(authz[:len("bearer ")], "bearer ") {
		return ""
	}
	return strings.TrimSpace(authz[len("bearer "):])
}
