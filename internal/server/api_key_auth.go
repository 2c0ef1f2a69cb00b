package server

import (
	"errors"
	"strings"

	apikeydomain "github.com/WordpressDesigne/mpesaprompt/internal/apikey/domain"
	auditdomain "github.com/WordpressDesigne/mpesaprompt/internal/audit/domain"
	"github.com/WordpressDesigne/mpesaprompt/internal/auditcontext"
	obsctx "github.com/WordpressDesigne/mpesaprompt/internal/observability/context"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

const (
	HeaderBusiness = "X-Business-Id"

	contextBusinessIDKey = "business_id"
	contextAPIKeyIDKey   = "api_key_id"
)

// APIKeyRequired authenticates requests using an API key only.
// Business identity is derived solely from the api_keys table.
func (s *Server) APIKeyRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if requestHasBusinessID(c) {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		parts := strings.Fields(header)
		if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		key, err := s.apiKeySvc.Authenticate(c.Request.Context(), parts[1])
		if err != nil {
			if errors.Is(err, apikeydomain.ErrInvalidKey) {
				AbortWithError(c, ErrUnauthorized)
				return
			}
			AbortWithError(c, err)
			return
		}

		c.Set(contextBusinessIDKey, key.BusinessID.String())
		c.Set(contextAPIKeyIDKey, key.KeyID)

		ctx := c.Request.Context()
		ctx = obsctx.WithBusinessID(ctx, key.BusinessID.String())
		ctx = obsctx.WithAPIKeyID(ctx, key.KeyID)
		ctx = auditcontext.WithActor(ctx, string(auditdomain.ActorTypeAPIKey), key.KeyID)
		ctx = auditcontext.WithRequestID(ctx, obsctx.RequestIDFromGin(c))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// businessID returns the tenant resolved by APIKeyRequired.
func businessID(c *gin.Context) (snowflake.ID, error) {
	raw := obsctx.BusinessIDFromGin(c)
	if raw == "" {
		return 0, ErrUnauthorized
	}
	id, err := snowflake.ParseString(raw)
	if err != nil || id == 0 {
		return 0, ErrUnauthorized
	}
	return id, nil
}

func requestHasBusinessID(c *gin.Context) bool {
	if strings.TrimSpace(c.GetHeader(HeaderBusiness)) != "" {
		return true
	}
	if value, ok := c.GetQuery("business_id"); ok && strings.TrimSpace(value) != "" {
		return true
	}
	if value, ok := c.GetQuery("businessId"); ok && strings.TrimSpace(value) != "" {
		return true
	}
	return false
}
