package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"remi-llm/internal/service"
)

func TestSessionContextMiddleware_AllowsRegisteredToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sessions := service.NewSessionContextService("secret", time.Hour, service.NewMemorySessionContextStore())
	issued, err := sessions.Begin(context.Background(), "GK82")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	r := gin.New()
	r.GET("/protected", SessionContextMiddleware(sessions), func(c *gin.Context) {
		sc, ok := GetSessionContext(c)
		if !ok || sc.ParticipantID != "GK82" {
			c.Status(http.StatusUnauthorized)
			return
		}
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+issued.Token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	// El socket de escucha manda el token por query.
	req = httptest.NewRequest(http.MethodGet, "/protected?token="+issued.Token, nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with query token, got %d", rec.Code)
	}
}

func TestSessionContextMiddleware_RequiresRegistration(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sessions := service.NewSessionContextService("secret", time.Hour, service.NewMemorySessionContextStore())
	issued, _ := sessions.Begin(context.Background(), "GK82")
	_ = sessions.Forget(context.Background(), issued.Context)

	r := gin.New()
	r.GET("/protected", SessionContextMiddleware(sessions), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for name, header := range map[string]string{
		"missing":   "",
		"forgotten": "Bearer " + issued.Token,
		"garbage":   "Bearer not-a-token",
	} {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", name, rec.Code)
		}
	}
}
