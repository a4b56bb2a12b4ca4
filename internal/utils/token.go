package utils // package utils provides helper functions for token issuing and hashing

import (
	"crypto/sha256" // SHA-256 hashing for stored reset tokens
	"encoding/hex"  // hex encoding of digests
	"errors"        // sentinel errors and errors.Is mapping
	"strconv"       // subject <-> user id conversion
	"time"          // expirations

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
)

// Token type discriminators carried in the "typ" claim. A token of one
// type must never be accepted where the other is expected.
const (
	TokenTypeAccess = "access"
	TokenTypeReset  = "reset"
)

// Verification failure kinds. Callers distinguish them with errors.Is
// and must reject on any of them; there is no fallback identity.
var (
	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenSignature = errors.New("token signature invalid")
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenWrongType = errors.New("token type mismatch")
)

// Claims is the signed claim set used for both access and reset tokens:
// subject (user id as a decimal string), typ, iat and exp. Anything a
// guard needs beyond these (role, permissions) is loaded from storage
// per request so grants take effect without re-login.
type Claims struct {
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim back into a user id.
func (c *Claims) UserID() (uint64, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, ErrTokenMalformed
	}
	return id, nil
}

// SignedToken is a serialized JWT along with its expiry, returned to
// callers that need to report the expiration to clients.
type SignedToken struct {
	Token string
	Exp   time.Time
}

// TokenIssuer creates and verifies HS256-signed tokens. The signing
// secret and both TTLs come from process configuration, are set once at
// construction and never change; the issuer is safe for concurrent use.
// The secret is unexported so it cannot leak through logging or
// serialization of the issuer.
type TokenIssuer struct {
	secret    []byte
	accessTTL time.Duration
	resetTTL  time.Duration
}

// NewTokenIssuer builds an issuer from the configured secret and TTLs
// in minutes. Reset tokens are typically much shorter-lived than
// access tokens, hence the independent TTL.
func NewTokenIssuer(secret string, accessTTLMin, resetTTLMin int) *TokenIssuer {
	return &TokenIssuer{
		secret:    []byte(secret),
		accessTTL: time.Duration(accessTTLMin) * time.Minute,
		resetTTL:  time.Duration(resetTTLMin) * time.Minute,
	}
}

// IssueAccess signs a session identity token for the user.
func (i *TokenIssuer) IssueAccess(userID uint64) (SignedToken, error) {
	return i.issue(userID, TokenTypeAccess, i.accessTTL)
}

// IssueReset signs a single-purpose password reset token for the user.
// The caller is responsible for persisting its hash so it can be
// consumed exactly once.
func (i *TokenIssuer) IssueReset(userID uint64) (SignedToken, error) {
	return i.issue(userID, TokenTypeReset, i.resetTTL)
}

func (i *TokenIssuer) issue(userID uint64, typ string, ttl time.Duration) (SignedToken, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := Claims{
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(i.secret)
	if err != nil {
		return SignedToken{}, err
	}
	return SignedToken{Token: signed, Exp: exp}, nil
}

// Verify parses and validates a token and checks its type claim. It
// returns the claims on success or exactly one of ErrTokenMalformed,
// ErrTokenSignature, ErrTokenExpired or ErrTokenWrongType. Tokens
// signed with a non-HMAC algorithm are rejected as signature failures.
func (i *TokenIssuer) Verify(token, wantType string) (*Claims, error) {
	tok, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenSignature
		}
		return i.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, ErrTokenSignature):
			return nil, ErrTokenSignature
		default:
			return nil, ErrTokenMalformed
		}
	}
	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return nil, ErrTokenMalformed
	}
	if claims.TokenType != wantType {
		return nil, ErrTokenWrongType
	}
	return claims, nil
}

// HashResetRaw returns the SHA-256 hash of a signed reset token as a
// hex string. Only the hash is stored in the database, so stolen rows
// cannot be replayed as tokens.
func HashResetRaw(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
