package context

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestContextRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithBusinessID(ctx, "42")
	ctx = WithAPIKeyID(ctx, "key_1")

	if got := RequestIDFromContext(ctx); got != "req-1" {
		t.Fatalf("expected req-1, got %q", got)
	}
	if got := BusinessIDFromContext(ctx); got != "42" {
		t.Fatalf("expected 42, got %q", got)
	}
	if got := APIKeyIDFromContext(ctx); got != "key_1" {
		t.Fatalf("expected key_1, got %q", got)
	}
}

func TestBusinessIDFromGinFallsBackToKeys(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Set("business_id", "7")

	if got := BusinessIDFromGin(c); got != "7" {
		t.Fatalf("expected 7, got %q", got)
	}
}
