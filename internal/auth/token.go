package auth

import (
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"aidanwoods.dev/go-paseto"
	"github.com/oklog/ulid/v2"

	"github.com/inkpost/inkpost/internal/model"
)

const (
	tokenIssuer   = "inkpost"
	tokenAudience = "inkpost-web"

	// KeyHexSize is the length of a PASETO v4 symmetric key in hex.
	KeyHexSize   = 64
	keyBytesSize = 32
)

// ErrInvalidToken is returned for any token that fails decryption or claim checks.
var ErrInvalidToken = errors.New("invalid token")

// TokenService issues and verifies PASETO v4.local access tokens.
type TokenService struct {
	key paseto.V4SymmetricKey
	ttl time.Duration
	now func() time.Time
}

// NewTokenService builds a TokenService from a 64 hex character key.
func NewTokenService(keyHex string, ttl time.Duration) (*TokenService, error) {
	if len(keyHex) != KeyHexSize {
		return nil, fmt.Errorf("token key must be exactly %d hex characters, got %d", KeyHexSize, len(keyHex))
	}

	keyBytes, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid hex string for token key: %w", err)
	}
	if len(keyBytes) != keyBytesSize {
		return nil, fmt.Errorf("decoded key must be exactly %d bytes, got %d", keyBytesSize, len(keyBytes))
	}

	key, err := paseto.V4SymmetricKeyFromBytes(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to create token key: %w", err)
	}

	if ttl <= 0 {
		return nil, fmt.Errorf("token ttl must be positive, got %s", ttl)
	}

	return &TokenService{key: key, ttl: ttl, now: time.Now}, nil
}

// Issue encrypts a token for p. The returned expiry is also embedded in the token.
func (s *TokenService) Issue(p *model.Principal) (string, time.Time, error) {
	if p == nil || p.UserID == "" {
		return "", time.Time{}, errors.New("principal with user id required")
	}

	now := s.now()
	expiresAt := now.Add(s.ttl)

	token := paseto.NewToken()
	token.SetIssuer(tokenIssuer)
	token.SetSubject(p.UserID)
	token.SetAudience(tokenAudience)
	token.SetIssuedAt(now)
	token.SetNotBefore(now)
	token.SetExpiration(expiresAt)
	token.SetJti(ulid.Make().String())
	token.SetString("email", p.Email)
	token.SetString("name", p.Name)
	if p.Image != nil {
		token.SetString("image", *p.Image)
	}

	return token.V4Encrypt(s.key, nil), expiresAt, nil
}

// Verify decrypts tokenString and checks issuer, audience and validity window.
func (s *TokenService) Verify(tokenString string) (*model.Principal, error) {
	now := s.now()

	parser := paseto.NewParserWithoutExpiryCheck()
	parser.AddRule(paseto.ForAudience(tokenAudience))
	parser.AddRule(paseto.IssuedBy(tokenIssuer))
	parser.AddRule(paseto.ValidAt(now))

	token, err := parser.ParseV4Local(s.key, tokenString, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	subject, err := token.GetSubject()
	if err != nil || subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	jti, err := token.GetJti()
	if err != nil || jti == "" {
		return nil, fmt.Errorf("%w: missing token id", ErrInvalidToken)
	}
	expiresAt, err := token.GetExpiration()
	if err != nil {
		return nil, fmt.Errorf("%w: missing expiration", ErrInvalidToken)
	}

	p := &model.Principal{
		UserID:    subject,
		TokenID:   jti,
		ExpiresAt: expiresAt,
	}
	p.Email, _ = token.GetString("email")
	p.Name, _ = token.GetString("name")
	if image, err := token.GetString("image"); err == nil && image != "" {
		p.Image = &image
	}

	return p, nil
}
