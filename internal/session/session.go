package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/vovakirdan/gifchat-server/internal/colorhash"
)

// CookieName is the name of the cookie that carries the signed session.
const CookieName = "gifchat_session"

const issuer = "gifchat"

// ErrInvalidSession is returned when a session token cannot be trusted.
var ErrInvalidSession = errors.New("invalid session")

// Session is the per-browser identity shared by the HTTP and WebSocket surfaces.
type Session struct {
	ID    string
	Color string // identity token shown as the username
}

// Claims represents the JWT claims stored in the session cookie.
type Claims struct {
	Color string `json:"color"`
	jwt.RegisteredClaims
}

// Manager issues and validates session tokens.
type Manager struct {
	secret []byte
	ttl    time.Duration
}

// NewManager creates a session manager signing with secret.
func NewManager(secret string, ttl time.Duration) *Manager {
	return &Manager{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// TTL returns how long issued sessions stay valid.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// New starts a fresh session with a random ID and its derived color.
func (m *Manager) New() *Session {
	id := uuid.NewString()
	return &Session{ID: id, Color: colorhash.Hex(id)}
}

// Encode signs the session into a token suitable for a cookie value.
func (m *Manager) Encode(s *Session) (string, error) {
	now := time.Now()
	claims := Claims{
		Color: s.Color,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.ID,
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	return signed, nil
}

// Decode validates a token and returns the session it carries.
func (m *Manager) Decode(tokenString string) (*Session, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidSession
	}

	// The color is derived, never trusted blindly.
	if claims.Color != colorhash.Hex(claims.Subject) {
		return nil, ErrInvalidSession
	}

	return &Session{ID: claims.Subject, Color: claims.Color}, nil
}
