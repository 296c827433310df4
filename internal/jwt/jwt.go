package jwt

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultCookieName is the cookie that carries the session token.
const DefaultCookieName = "session"

var (
	// ErrNoToken is returned when the request carries no session cookie.
	ErrNoToken = errors.New("session cookie missing")
	// ErrInvalidToken is returned for tampered, expired or malformed tokens.
	ErrInvalidToken = errors.New("invalid session token")
)

// Claims are the JWT claims of a session token.
type Claims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// JWT signs session IDs into tokens and moves them in and out of cookies.
type JWT struct {
	SecretKey  string        // Secret key for signing tokens
	Exp        time.Duration // Token and cookie lifetime
	CookieName string        // Name of the session cookie
	Secure     bool          // Mark the cookie Secure (HTTPS only)
}

// Opt configures a JWT.
type Opt func(*JWT)

// WithSecretKey sets the signing key.
func WithSecretKey(key string) Opt {
	return func(j *JWT) { j.SecretKey = key }
}

// WithExpiration sets the token lifetime.
func WithExpiration(exp time.Duration) Opt {
	return func(j *JWT) { j.Exp = exp }
}

// WithCookieName overrides DefaultCookieName.
func WithCookieName(name string) Opt {
	return func(j *JWT) { j.CookieName = name }
}

// WithSecureCookie marks the cookie Secure.
func WithSecureCookie(secure bool) Opt {
	return func(j *JWT) { j.Secure = secure }
}

// New creates a new JWT instance. Lifetime defaults to 24 hours.
func New(opts ...Opt) *JWT {
	j := &JWT{
		Exp:        24 * time.Hour,
		CookieName: DefaultCookieName,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Generate creates a signed token for a session ID
func (j *JWT) Generate(ctx context.Context, sessionID string) (string, error) {
	now := time.Now()
	claims := Claims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.Exp)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(j.SecretKey))
}

// GetClaims parses and verifies a token
func (j *JWT) GetClaims(ctx context.Context, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(j.SecretKey), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.SessionID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// GetSessionID returns the session ID inside a valid token
func (j *JWT) GetSessionID(ctx context.Context, tokenString string) (string, error) {
	claims, err := j.GetClaims(ctx, tokenString)
	if err != nil {
		return "", err
	}
	return claims.SessionID, nil
}

// GetTokenFromRequest extracts the token string from the session cookie
func (j *JWT) GetTokenFromRequest(ctx context.Context, r *http.Request) (string, error) {
	cookie, err := r.Cookie(j.CookieName)
	if err != nil || cookie.Value == "" {
		return "", ErrNoToken
	}
	return cookie.Value, nil
}

// SetTokenCookie writes the session cookie.
func (j *JWT) SetTokenCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     j.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(j.Exp.Seconds()),
		Expires:  time.Now().Add(j.Exp),
		HttpOnly: true,
		Secure:   j.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearTokenCookie expires the session cookie.
func (j *JWT) ClearTokenCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     j.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   j.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
