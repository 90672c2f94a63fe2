package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"glxy/internal/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenRevoked = errors.New("token revoked")
)

// SessionClaims are carried by every GLXY session token
type SessionClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// RevocationStore remembers signed-out token ids until they expire
type RevocationStore interface {
	Revoke(ctx context.Context, jti string, until time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// SessionManager issues and checks HS256 session tokens
type SessionManager struct {
	secret  []byte
	ttl     time.Duration
	revoked RevocationStore
	now     func() time.Time
}

func NewSessionManager(secret string, ttl time.Duration, revoked RevocationStore) *SessionManager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if revoked == nil {
		revoked = NewMemoryRevocations()
	}
	return &SessionManager{secret: []byte(secret), ttl: ttl, revoked: revoked, now: time.Now}
}

func (m *SessionManager) Issue(userID string) (string, *SessionClaims, error) {
	now := m.now()
	claims := &SessionClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// Parse validates signature, time claims and revocation
func (m *SessionManager) Parse(ctx context.Context, tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID == "" || claims.ID == "" {
		return nil, ErrInvalidToken
	}

	revoked, err := m.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// Revoke signs the session out until its natural expiry
func (m *SessionManager) Revoke(ctx context.Context, claims *SessionClaims) error {
	until := m.now().Add(m.ttl)
	if claims.ExpiresAt != nil {
		until = claims.ExpiresAt.Time
	}
	return m.revoked.Revoke(ctx, claims.ID, until)
}

// MemoryRevocations is the single-process revocation list
type MemoryRevocations struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewMemoryRevocations() *MemoryRevocations {
	return &MemoryRevocations{entries: make(map[string]time.Time), now: time.Now}
}

func (r *MemoryRevocations) Revoke(ctx context.Context, jti string, until time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for id, exp := range r.entries {
		if now.After(exp) {
			delete(r.entries, id)
		}
	}
	r.entries[jti] = until
	return nil
}

func (r *MemoryRevocations) IsRevoked(ctx context.Context, jti string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	exp, ok := r.entries[jti]
	return ok && r.now().Before(exp), nil
}

const revokedKeyPrefix = "glxy:revoked:"

// RedisRevocations shares the revocation list between instances. Every
// sign-out is also kept locally, and lookups fall back to that list while
// Redis is failing so valid sessions are not rejected.
type RedisRevocations struct {
	client *redis.Client
	local  *MemoryRevocations
	log    *slog.Logger
}

func NewRedisRevocations(client *redis.Client, log *slog.Logger) *RedisRevocations {
	if log == nil {
		log = logger.Get()
	}
	return &RedisRevocations{client: client, local: NewMemoryRevocations(), log: log.With("component", "revocations")}
}

func (r *RedisRevocations) Revoke(ctx context.Context, jti string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	_ = r.local.Revoke(ctx, jti, until)
	if err := r.client.Set(ctx, revokedKeyPrefix+jti, 1, ttl).Err(); err != nil {
		revocationFallbacks.WithLabelValues("revoke").Inc()
		r.log.Warn("redis revoke failed, kept locally", "jti", jti, "error", err)
	}
	return nil
}

func (r *RedisRevocations) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if revoked, _ := r.local.IsRevoked(ctx, jti); revoked {
		return true, nil
	}
	n, err := r.client.Exists(ctx, revokedKeyPrefix+jti).Result()
	if err != nil {
		revocationFallbacks.WithLabelValues("lookup").Inc()
		r.log.Warn("redis revocation lookup failed, using local list", "error", err)
		return false, nil
	}
	return n > 0, nil
}
