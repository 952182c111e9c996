// Package tokens signs and verifies the access/refresh JWT pair and generates
// the opaque tokens and OTP codes used by verification and password reset.
package tokens

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/FACorreiaa/go-complaint-auth/config"
	"github.com/FACorreiaa/go-complaint-auth/internal/types"
)

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

type TokenType string

const (
	TypeAccess  TokenType = "access"
	TypeRefresh TokenType = "refresh"
)

// Claims are shared by access and refresh tokens. Subject holds the user id.
type Claims struct {
	Role  types.Role `json:"role"`
	Email string     `json:"email,omitempty"`
	Phone string     `json:"phone,omitempty"`
	Type  TokenType  `json:"typ"`
	jwt.RegisteredClaims
}

// UserID parses the numeric subject.
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad subject %q", ErrTokenInvalid, c.Subject)
	}
	return id, nil
}

// Subject is the identity a token pair is issued for.
type Subject struct {
	UserID int64
	Role   types.Role
	Email  string
	Phone  string
}

// SubjectFromProfile builds the token subject for a user profile.
func SubjectFromProfile(u *types.UserProfile) Subject {
	return Subject{
		UserID: u.ID,
		Role:   u.Role,
		Email:  u.EmailAddress(),
		Phone:  u.Phone,
	}
}

// Codec is stateless apart from its configuration and is safe for concurrent use.
type Codec struct {
	cfg config.JWTConfig
	now func() time.Time
}

type Option func(*Codec)

// WithClock overrides the codec clock, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

func NewCodec(cfg config.JWTConfig, opts ...Option) *Codec {
	c := &Codec{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Codec) AccessTTL() time.Duration  { return c.cfg.AccessTokenTTL }
func (c *Codec) RefreshTTL() time.Duration { return c.cfg.RefreshTokenTTL }

// SignAccessToken returns a short-lived access token and its expiry.
func (c *Codec) SignAccessToken(s Subject) (string, time.Time, error) {
	return c.sign(s, TypeAccess, []byte(c.cfg.AccessSecret), c.cfg.AccessTokenTTL)
}

// SignRefreshToken returns a refresh token and its expiry. Every refresh token
// carries a fresh jti so two tokens signed in the same second never collide.
func (c *Codec) SignRefreshToken(s Subject) (string, time.Time, error) {
	return c.sign(s, TypeRefresh, []byte(c.cfg.RefreshSecret), c.cfg.RefreshTokenTTL)
}

func (c *Codec) sign(s Subject, typ TokenType, secret []byte, ttl time.Duration) (string, time.Time, error) {
	now := c.now()
	expiresAt := now.Add(ttl)

	claims := &Claims{
		Role:  s.Role,
		Email: s.Email,
		Phone: s.Phone,
		Type:  typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(s.UserID, 10),
			Issuer:    c.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}
	if c.cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{c.cfg.Audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign %s token: %w", typ, err)
	}
	return signed, expiresAt, nil
}

// VerifyAccessToken checks signature, expiry, issuer, audience and token type.
func (c *Codec) VerifyAccessToken(token string) (*Claims, error) {
	return c.verify(token, TypeAccess, []byte(c.cfg.AccessSecret))
}

// VerifyRefreshToken is VerifyAccessToken for the refresh secret.
func (c *Codec) VerifyRefreshToken(token string) (*Claims, error) {
	return c.verify(token, TypeRefresh, []byte(c.cfg.RefreshSecret))
}

func (c *Codec) verify(token string, want TokenType, secret []byte) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (interface{}, error) {
			return secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.cfg.Issuer),
		jwt.WithAudience(c.cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if claims.Type != want {
		return nil, fmt.Errorf("%w: expected %s token, got %q", ErrTokenInvalid, want, claims.Type)
	}
	if _, err := claims.UserID(); err != nil {
		return nil, err
	}
	return claims, nil
}

// GenerateSecureToken returns length random bytes, hex encoded.
func GenerateSecureToken(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("secure token length must be positive")
	}
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// GenerateOTP returns a numeric code of the given number of digits.
func GenerateOTP(digits int) (string, error) {
	if digits < 4 || digits > 10 {
		return "", fmt.Errorf("invalid otp length %d", digits)
	}

	var b strings.Builder
	b.Grow(digits)
	ten := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("failed to generate otp digit: %w", err)
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}
