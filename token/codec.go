package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Type discriminates access tokens from refresh tokens. The value is carried
// in the "type" claim and checked on every verification.
type Type string

const (
	// TypeAccess marks a short-lived stateless credential.
	TypeAccess Type = "access"
	// TypeRefresh marks a longer-lived credential tracked server-side.
	TypeRefresh Type = "refresh"
)

// Valid reports whether t is one of the two enumerated token types.
func (t Type) Valid() bool {
	return t == TypeAccess || t == TypeRefresh
}

// Reserved claim names. Caller-supplied extra claims never override these;
// reserved names win on conflict.
const (
	ClaimSubject   = "user_id"
	ClaimExpiresAt = "exp"
	ClaimIssuedAt  = "iat"
	ClaimType      = "type"
)

// ErrMalformed is returned when a token is structurally invalid.
var ErrMalformed = errors.New("malformed token")

// ErrSignatureInvalid is returned when the signature does not verify.
var ErrSignatureInvalid = errors.New("token signature invalid")

// ErrExpired is returned when the token's exp claim is in the past.
var ErrExpired = errors.New("token expired")

// ErrEncoding is returned when a claim set cannot be serialized or signed.
var ErrEncoding = errors.New("claims not encodable")

// SigningMethod selects the HMAC variant used to sign tokens. Only symmetric
// methods are supported; key rotation and asymmetric schemes are out of scope.
type SigningMethod string

const (
	// MethodHS256 is the default signing method.
	MethodHS256 SigningMethod = "hs256"
	// MethodHS384 is an exported alternative HMAC method.
	MethodHS384 SigningMethod = "hs384"
	// MethodHS512 is an exported alternative HMAC method.
	MethodHS512 SigningMethod = "hs512"
)

// Claims is the decoded claim set of a signed token. It is a flat mapping:
// reserved keys plus arbitrary caller extras. Numeric claims decode as
// float64, which the accessor methods normalize.
type Claims map[string]any

// Subject returns the identity the token was issued for, or "" when the
// claim is missing or not a string.
func (c Claims) Subject() string {
	sub, _ := c[ClaimSubject].(string)
	return sub
}

// Type returns the token type claim. An absent or non-string claim yields
// an invalid Type, which fails every expectation check.
func (c Claims) Type() Type {
	typ, _ := c[ClaimType].(string)
	return Type(typ)
}

// ExpiresAt returns the expiry timestamp. ok is false when the claim is
// missing or not numeric.
func (c Claims) ExpiresAt() (time.Time, bool) {
	return c.numericTime(ClaimExpiresAt)
}

// IssuedAt returns the issued-at timestamp. ok is false when the claim is
// missing or not numeric.
func (c Claims) IssuedAt() (time.Time, bool) {
	return c.numericTime(ClaimIssuedAt)
}

func (c Claims) numericTime(name string) (time.Time, bool) {
	switch v := c[name].(type) {
	case float64:
		return time.Unix(int64(v), 0), true
	case int64:
		return time.Unix(v, 0), true
	case int:
		return time.Unix(int64(v), 0), true
	default:
		return time.Time{}, false
	}
}

// Extra returns a copy of the claim set with the reserved keys removed.
// This is the payload carried forward when a refresh token is exchanged
// for a new access token.
func (c Claims) Extra() map[string]any {
	if len(c) == 0 {
		return nil
	}
	extra := make(map[string]any, len(c))
	for k, v := range c {
		switch k {
		case ClaimSubject, ClaimExpiresAt, ClaimIssuedAt, ClaimType:
			continue
		}
		extra[k] = v
	}
	if len(extra) == 0 {
		return nil
	}
	return extra
}

// Config carries codec construction parameters.
//
// Config instances are intended to be configured during initialization and
// then treated as immutable.
type Config struct {
	Secret   []byte
	Method   SigningMethod
	TimeFunc func() time.Time
}

// Codec encodes and decodes signed claim sets. It is safe for concurrent use.
type Codec struct {
	secret []byte
	method *jwt.SigningMethodHMAC
	now    func() time.Time
}

// NewCodec validates cfg and returns a ready codec. The secret must be
// non-empty; Method defaults to HS256; TimeFunc defaults to time.Now.
func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("signing secret required")
	}

	method := cfg.Method
	if method == "" {
		method = MethodHS256
	}

	var hmac *jwt.SigningMethodHMAC
	switch method {
	case MethodHS256:
		hmac = jwt.SigningMethodHS256
	case MethodHS384:
		hmac = jwt.SigningMethodHS384
	case MethodHS512:
		hmac = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("unsupported signing method %q", method)
	}

	now := cfg.TimeFunc
	if now == nil {
		now = time.Now
	}

	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)

	return &Codec{
		secret: secret,
		method: hmac,
		now:    now,
	}, nil
}

// NewClaims builds a claim set for subject with the given type and lifetime,
// merging extra claims. Reserved claim names always win over extras, so a
// caller cannot smuggle a forged subject or expiry through the extra map.
func (c *Codec) NewClaims(subject string, typ Type, ttl time.Duration, extra map[string]any) Claims {
	claims := make(Claims, len(extra)+4)
	for k, v := range extra {
		claims[k] = v
	}

	now := c.now()
	claims[ClaimSubject] = subject
	claims[ClaimIssuedAt] = now.Unix()
	claims[ClaimExpiresAt] = now.Add(ttl).Unix()
	claims[ClaimType] = string(typ)

	return claims
}

// Encode signs the claim set and returns the compact token string.
func (c *Codec) Encode(claims Claims) (string, error) {
	tok := jwt.NewWithClaims(c.method, jwt.MapClaims(claims))
	signed, err := tok.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	return signed, nil
}

// Decode verifies the signature and claims of a token and returns its claim
// set. Expected failures come back as discriminated kinds (ErrMalformed,
// ErrSignatureInvalid, ErrExpired) so callers can branch without string
// matching. Expiry is evaluated against the codec's time source.
func (c *Codec) Decode(tokenStr string) (Claims, error) {
	return c.decode(tokenStr, false)
}

// DecodeExpired verifies the signature of a token but skips claim
// validation, so well-formed-but-expired tokens still decode. Revocation
// uses this to compute the remaining lifetime of the token being revoked.
func (c *Codec) DecodeExpired(tokenStr string) (Claims, error) {
	return c.decode(tokenStr, true)
}

func (c *Codec) decode(tokenStr string, skipClaims bool) (Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithTimeFunc(c.now),
	}
	if skipClaims {
		options = append(options, jwt.WithoutClaimsValidation())
	}

	parser := jwt.NewParser(options...)
	claims := jwt.MapClaims{}
	tok, err := parser.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return c.secret, nil
	})
	if err != nil {
		return nil, classifyParseError(err)
	}
	if !tok.Valid {
		return nil, ErrMalformed
	}

	return Claims(claims), nil
}

func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformed
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrSignatureInvalid):
		return ErrSignatureInvalid
	default:
		return ErrMalformed
	}
}
