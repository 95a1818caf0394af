package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	defaultIssuer     = "playsdb"
	defaultSessionTTL = 7 * 24 * time.Hour
	defaultEditTTL    = 15 * time.Minute
	defaultLeeway     = 30 * time.Second
)

// Verification failures are classified so handlers can surface distinct
// user-facing messages for expired vs malformed tokens.
var (
	ErrExpired = errors.New("token expired")
	ErrInvalid = errors.New("token invalid")
)

// The use claim keeps session and edit tokens from standing in for each
// other: a scoped edit token must never open a session, and a session
// cookie must never satisfy an edit-token check.
const (
	useSession = "session"
	useEdit    = "play_edit"
)

// SessionClaims are the claims carried by a session cookie token.
type SessionClaims struct {
	Account int    `json:"account"`
	Use     string `json:"use"`
	jwt.RegisteredClaims
}

// EditClaims are the claims carried by a scoped play-edit token.
type EditClaims struct {
	Account int    `json:"account"`
	PlayID  string `json:"playId"`
	Use     string `json:"use"`
	jwt.RegisteredClaims
}

// Manager signs and verifies HS256 tokens for sessions and scoped play edits.
type Manager struct {
	secret     []byte
	issuer     string
	sessionTTL time.Duration
	editTTL    time.Duration
	leeway     time.Duration
}

// Options configures a Manager. Zero values fall back to defaults.
type Options struct {
	Issuer     string
	SessionTTL time.Duration
	EditTTL    time.Duration
	Leeway     time.Duration
}

// NewManager builds a token manager from a shared secret.
func NewManager(secret string, opts Options) (*Manager, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("token secret is required")
	}
	if opts.Issuer == "" {
		opts.Issuer = defaultIssuer
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = defaultSessionTTL
	}
	if opts.EditTTL <= 0 {
		opts.EditTTL = defaultEditTTL
	}
	if opts.Leeway <= 0 {
		opts.Leeway = defaultLeeway
	}
	return &Manager{
		secret:     []byte(secret),
		issuer:     opts.Issuer,
		sessionTTL: opts.SessionTTL,
		editTTL:    opts.EditTTL,
		leeway:     opts.Leeway,
	}, nil
}

// SessionTTL returns the configured session lifetime.
func (m *Manager) SessionTTL() time.Duration {
	return m.sessionTTL
}

// IssueSession mints a session token for the user.
func (m *Manager) IssueSession(userID string, account int) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", errors.New("user id required")
	}
	now := time.Now().UTC()
	claims := SessionClaims{
		Account: account,
		Use:     useSession,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.sessionTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// VerifySession validates a session token and returns its claims.
// Errors wrap ErrExpired or ErrInvalid.
func (m *Manager) VerifySession(raw string) (SessionClaims, error) {
	claims := SessionClaims{}
	if err := m.parse(raw, &claims); err != nil {
		return SessionClaims{}, err
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return SessionClaims{}, fmt.Errorf("%w: subject missing", ErrInvalid)
	}
	if claims.Use != useSession {
		return SessionClaims{}, fmt.Errorf("%w: not a session token", ErrInvalid)
	}
	return claims, nil
}

// IssueEditToken mints a short-lived token scoped to one play.
func (m *Manager) IssueEditToken(userID string, account int, playID string) (string, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(playID) == "" {
		return "", errors.New("user id and play id required")
	}
	now := time.Now().UTC()
	claims := EditClaims{
		Account: account,
		PlayID:  playID,
		Use:     useEdit,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.editTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// VerifyEditToken validates a scoped edit token and returns its claims.
// The caller must still check that claims.PlayID matches the target play.
func (m *Manager) VerifyEditToken(raw string) (EditClaims, error) {
	claims := EditClaims{}
	if err := m.parse(raw, &claims); err != nil {
		return EditClaims{}, err
	}
	if strings.TrimSpace(claims.Subject) == "" || strings.TrimSpace(claims.PlayID) == "" {
		return EditClaims{}, fmt.Errorf("%w: required claim missing", ErrInvalid)
	}
	if claims.Use != useEdit {
		return EditClaims{}, fmt.Errorf("%w: not an edit token", ErrInvalid)
	}
	return claims, nil
}

func (m *Manager) parse(raw string, claims jwt.Claims) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("%w: empty token", ErrInvalid)
	}
	parsed, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(m.leeway),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return fmt.Errorf("%w: %v", ErrExpired, err)
		}
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if !parsed.Valid {
		return ErrInvalid
	}
	return nil
}
