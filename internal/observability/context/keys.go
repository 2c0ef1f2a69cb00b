package context

import "context"

type contextKey string

const (
	requestIDKey  contextKey = "observability_request_id"
	businessIDKey contextKey = "observability_business_id"
	apiKeyIDKey   contextKey = "observability_api_key_id"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil || requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey).(string)
	return value
}

func WithBusinessID(ctx context.Context, businessID string) context.Context {
	if ctx == nil || businessID == "" {
		return ctx
	}
	return context.WithValue(ctx, businessIDKey, businessID)
}

func BusinessIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(businessIDKey).(string)
	return value
}

func WithAPIKeyID(ctx context.Context, keyID string) context.Context {
	if ctx == nil || keyID == "" {
		return ctx
	}
	return context.WithValue(ctx, apiKeyIDKey, keyID)
}

func APIKeyIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(apiKeyIDKey).(string)
	return value
}
