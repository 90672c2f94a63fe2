package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"glxy/internal/logger"
	"glxy/internal/service"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
)

func newAuthRouter(sessions SessionParser) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", JWT(sessions), func(c *gin.Context) {
		uid, _ := UserID(c)
		c.JSON(http.StatusOK, gin.H{"user_id": uid})
	})
	return r
}

func getWithToken(r http.Handler, token string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	r.ServeHTTP(rec, req)
	return rec
}

func TestJWT_UnreachableRedisKeepsSessionsValid(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer client.Close()

	sessions := service.NewSessionManager("secret", time.Hour, service.NewRedisRevocations(client, logger.Discard()))
	token, claims, err := sessions.Issue("u1")
	if err != nil {
		t.Fatal(err)
	}
	r := newAuthRouter(sessions)

	if rec := getWithToken(r, token); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}

	// sign-out still sticks on this instance while Redis is down
	if err := sessions.Revoke(context.Background(), claims); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if rec := getWithToken(r, token); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after sign-out got %d", rec.Code)
	}
}

type failingSessions struct{ err error }

func (f failingSessions) Parse(ctx context.Context, token string) (*service.SessionClaims, error) {
	return nil, f.err
}

func TestJWT_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid", service.ErrInvalidToken, http.StatusUnauthorized},
		{"revoked", service.ErrTokenRevoked, http.StatusUnauthorized},
		{"backend down", errors.New("dial tcp: connection refused"), http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newAuthRouter(failingSessions{err: tt.err})
			if rec := getWithToken(r, "tok"); rec.Code != tt.want {
				t.Fatalf("expected %d got %d", tt.want, rec.Code)
			}
		})
	}

	if rec := getWithToken(newAuthRouter(failingSessions{}), ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing header: expected 401 got %d", rec.Code)
	}
}
