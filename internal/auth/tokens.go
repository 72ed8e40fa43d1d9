package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/newsdesk/newsdesk/internal/platform/httpx"
	"github.com/newsdesk/newsdesk/internal/rbac"
)

// Claims is the access token payload. Roles and permissions are the resolver
// snapshot at issue time.
type Claims struct {
	jwt.RegisteredClaims
	Email       string   `json:"email"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

// TokenIssuer signs and verifies HS256 access tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer constructs a TokenIssuer.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL returns the access token lifetime.
func (i *TokenIssuer) TTL() time.Duration {
	return i.ttl
}

// Issue signs an access token for p.
func (i *TokenIssuer) Issue(p rbac.Principal) (string, time.Time, error) {
	now := i.now()
	expiresAt := now.Add(i.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.New().String(),
		},
		Email:       p.Email,
		Roles:       p.Roles,
		Permissions: p.Permissions,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, expiresAt, nil
}

// Parse verifies raw and returns the principal snapshot it carries.
func (i *TokenIssuer) Parse(raw string) (*rbac.Principal, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: invalid token: %v", httpx.ErrUnauthorized, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: invalid token", httpx.ErrUnauthorized)
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid subject", httpx.ErrUnauthorized)
	}
	return &rbac.Principal{
		UserID:      userID,
		Email:       claims.Email,
		Roles:       claims.Roles,
		Permissions: claims.Permissions,
	}, nil
}

// HashToken returns the storage key form of an opaque token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// TokenStore keeps single-use opaque tokens in Redis keyed by their hash.
type TokenStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRefreshStore stores refresh tokens.
func NewRefreshStore(client *redis.Client, ttl time.Duration) *TokenStore {
	return &TokenStore{client: client, prefix: "newsdesk:auth:refresh:", ttl: ttl}
}

// NewResetStore stores password reset tokens.
func NewResetStore(client *redis.Client, ttl time.Duration) *TokenStore {
	return &TokenStore{client: client, prefix: "newsdesk:auth:reset:", ttl: ttl}
}

func (s *TokenStore) key(token string) string {
	return s.prefix + HashToken(token)
}

// Issue mints a new token bound to userID.
func (s *TokenStore) Issue(ctx context.Context, userID uuid.UUID) (string, error) {
	token := uuid.NewString() + uuid.NewString()
	if err := s.client.Set(ctx, s.key(token), userID.String(), s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store token: %w", err)
	}
	return token, nil
}

// Consume returns the bound user and deletes the token. Unknown or expired
// tokens yield httpx.ErrUnauthorized.
func (s *TokenStore) Consume(ctx context.Context, token string) (uuid.UUID, error) {
	if token == "" {
		return uuid.Nil, fmt.Errorf("%w: token required", httpx.ErrUnauthorized)
	}
	raw, err := s.client.GetDel(ctx, s.key(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return uuid.Nil, fmt.Errorf("%w: token invalid or expired", httpx.ErrUnauthorized)
		}
		return uuid.Nil, fmt.Errorf("consume token: %w", err)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: token invalid", httpx.ErrUnauthorized)
	}
	return id, nil
}

// Revoke deletes the token if present.
func (s *TokenStore) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.client.Del(ctx, s.key(token)).Err()
}
