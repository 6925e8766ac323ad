package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"go-member-portal/internal/model"
)

const sessionIssuer = "member-portal"

// SessionCodec signs and verifies the session payload carried in the
// portal cookie. The payload is a JWT signed with HS256; decoding
// verifies the MAC before trusting any field.
type SessionCodec struct {
	secret     []byte
	cookieName string
	secure     bool
	ttl        time.Duration
	idleTTL    time.Duration
	now        func() time.Time
}

func NewSessionCodec(secret string, cookieName string, secure bool, ttl time.Duration, idleTTL time.Duration) *SessionCodec {
	return &SessionCodec{
		secret:     []byte(secret),
		cookieName: cookieName,
		secure:     secure,
		ttl:        ttl,
		idleTTL:    idleTTL,
		now:        time.Now,
	}
}

// SetClock overrides the codec clock. Only intended for tests.
func (c *SessionCodec) SetClock(now func() time.Time) {
	c.now = now
}

type sessionClaims struct {
	BaseRole      model.Role `json:"brl"`
	LastActivity  int64      `json:"lat"`
	Fingerprint   string     `json:"fpt,omitempty"`
	ElevatedRole  model.Role `json:"erl,omitempty"`
	ElevatedUntil int64      `json:"eut,omitempty"`
	AssumedRole   model.Role `json:"arl,omitempty"`
	AssumedUntil  int64      `json:"aut,omitempty"`
	jwt.RegisteredClaims
}

// NewSession builds a fresh session for a just-authenticated identity.
func (c *SessionCodec) NewSession(identity string, baseRole model.Role, clientIP string, userAgent string) model.Session {
	now := c.now().UTC()
	return model.Session{
		Identity:       identity,
		BaseRole:       baseRole,
		IssuedAt:       now,
		ExpiresAt:      now.Add(c.ttl),
		LastActivityAt: now,
		Fingerprint:    c.Fingerprint(clientIP, userAgent),
	}
}

// Encode signs the session into a compact token.
func (c *SessionCodec) Encode(s model.Session) (string, error) {
	claims := sessionClaims{
		BaseRole:     s.BaseRole,
		LastActivity: s.LastActivityAt.Unix(),
		Fingerprint:  s.Fingerprint,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    sessionIssuer,
			Subject:   s.Identity,
			IssuedAt:  jwt.NewNumericDate(s.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
			ID:        uuid.NewString(),
		},
	}
	if s.ElevatedRole != "" && s.ElevatedUntil != nil {
		claims.ElevatedRole = s.ElevatedRole
		claims.ElevatedUntil = s.ElevatedUntil.Unix()
	}
	if s.AssumedRole != "" && s.AssumedUntil != nil {
		claims.AssumedRole = s.AssumedRole
		claims.AssumedUntil = s.AssumedUntil.Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", err
	}
	return signed, nil
}

// Decode verifies the token signature and expiry and rebuilds the
// session. It never extends the session; refreshing the activity
// timestamp is the caller's decision.
func (c *SessionCodec) Decode(token string) (model.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return model.Session{}, model.ErrMalformedSession
	}

	parsed, err := jwt.ParseWithClaims(token, &sessionClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, model.ErrBadSignature
		}
		return c.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return c.now() }))
	if err != nil {
		return model.Session{}, c.classifyDecodeError(token, err)
	}

	claims, ok := parsed.Claims.(*sessionClaims)
	if !ok || !parsed.Valid {
		return model.Session{}, model.ErrMalformedSession
	}
	if claims.Issuer != sessionIssuer || strings.TrimSpace(claims.Subject) == "" {
		return model.Session{}, model.ErrMalformedSession
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return model.Session{}, model.ErrMalformedSession
	}
	if _, ok := model.ParseRole(string(claims.BaseRole)); !ok {
		return model.Session{}, model.ErrMalformedSession
	}

	s := model.Session{
		Identity:       claims.Subject,
		BaseRole:       claims.BaseRole,
		IssuedAt:       claims.IssuedAt.Time.UTC(),
		ExpiresAt:      claims.ExpiresAt.Time.UTC(),
		LastActivityAt: time.Unix(claims.LastActivity, 0).UTC(),
		Fingerprint:    claims.Fingerprint,
		ElevatedRole:   claims.ElevatedRole,
		AssumedRole:    claims.AssumedRole,
	}
	if claims.ElevatedUntil > 0 {
		until := time.Unix(claims.ElevatedUntil, 0).UTC()
		s.ElevatedUntil = &until
	}
	if claims.AssumedUntil > 0 {
		until := time.Unix(claims.AssumedUntil, 0).UTC()
		s.AssumedUntil = &until
	}

	// Inactivity timeout is enforced at decode so an idle session dies
	// even before its absolute expiry.
	if c.idleTTL > 0 && c.now().After(s.LastActivityAt.Add(c.idleTTL)) {
		return model.Session{}, model.ErrSessionExpired
	}

	return s, nil
}

// DecodeFingerprinted decodes the token and additionally requires the
// stored fingerprint to match the current client metadata.
func (c *SessionCodec) DecodeFingerprinted(token string, clientIP string, userAgent string) (model.Session, error) {
	s, err := c.Decode(token)
	if err != nil {
		return model.Session{}, err
	}

	expected := c.Fingerprint(clientIP, userAgent)
	if s.Fingerprint == "" || !hmac.Equal([]byte(s.Fingerprint), []byte(expected)) {
		return model.Session{}, model.ErrFingerprintMismatch
	}
	return s, nil
}

// Fingerprint derives a keyed digest of the client network origin and
// declared identity string. The HMAC keeps the cookie payload from
// revealing client metadata to anyone without the server secret.
func (c *SessionCodec) Fingerprint(clientIP string, userAgent string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(clientIP))
	mac.Write([]byte{'\n'})
	mac.Write([]byte(userAgent))
	return hex.EncodeToString(mac.Sum(nil))
}

// classifyDecodeError maps jwt parse failures onto the internal error
// taxonomy. Expiry wins over a bad signature so an expired session is
// always reported as expired, whatever else is wrong with the token.
func (c *SessionCodec) classifyDecodeError(token string, err error) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return model.ErrSessionExpired
	}
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
		if c.expiredIgnoringSignature(token) {
			return model.ErrSessionExpired
		}
		return model.ErrBadSignature
	}
	return model.ErrMalformedSession
}

func (c *SessionCodec) expiredIgnoringSignature(token string) bool {
	claims := &sessionClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	return claims.ExpiresAt != nil && c.now().After(claims.ExpiresAt.Time)
}

// WriteCookie attaches the signed session to the response.
func (c *SessionCodec) WriteCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.cookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie on the client.
func (c *SessionCodec) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ReadCookie extracts the raw session token from the request.
func (c *SessionCodec) ReadCookie(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(c.cookieName)
	if err != nil || strings.TrimSpace(cookie.Value) == "" {
		return "", false
	}
	return cookie.Value, true
}
