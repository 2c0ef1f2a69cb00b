package logger

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	obsctx "github.com/WordpressDesigne/mpesaprompt/internal/observability/context"
	"go.uber.org/zap"
)

const HeaderRequestID = "X-Request-Id"

const maxLoggedBody = 8 << 10

type MiddlewareConfig struct {
	// SkipPaths are not logged (health checks, metrics scrapes).
	SkipPaths []string
	// LogBodyOnError adds the masked JSON request body to lines for 4xx and 5xx responses.
	LogBodyOnError bool
}

// GinMiddleware assigns a request id and logs one line per request.
func GinMiddleware(cfg MiddlewareConfig) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, path := range cfg.SkipPaths {
		skip[path] = struct{}{}
	}

	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(HeaderRequestID))
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Header(HeaderRequestID, requestID)
		c.Request = c.Request.WithContext(obsctx.WithRequestID(c.Request.Context(), requestID))

		var body []byte
		if cfg.LogBodyOnError {
			body = peekBody(c)
		}

		start := time.Now()
		c.Next()

		if _, ok := skip[c.Request.URL.Path]; ok {
			return
		}

		fields := []zap.Field{
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.Any("request", SafeFieldsFromRequest(c.Request)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		if c.Writer.Status() >= 400 {
			if masked := maskedBody(body); masked != nil {
				fields = append(fields, zap.Any("body", masked))
			}
		}

		log := FromContext(c.Request.Context())
		switch status := c.Writer.Status(); {
		case status >= 500:
			log.Error("http request", fields...)
		case status >= 400:
			log.Warn("http request", fields...)
		default:
			log.Info("http request", fields...)
		}
	}
}

// peekBody reads up to maxLoggedBody bytes of a JSON body and puts them back
// in front of the unread remainder.
func peekBody(c *gin.Context) []byte {
	req := c.Request
	if req.Body == nil || !strings.Contains(req.Header.Get("Content-Type"), "json") {
		return nil
	}
	head, err := io.ReadAll(io.LimitReader(req.Body, maxLoggedBody+1))
	req.Body = readCloser{Reader: io.MultiReader(bytes.NewReader(head), req.Body), Closer: req.Body}
	if err != nil || len(head) > maxLoggedBody {
		return nil
	}
	return head
}

type readCloser struct {
	io.Reader
	io.Closer
}

func maskedBody(body []byte) map[string]any {
	if len(body) == 0 {
		return nil
	}
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil
	}
	return MaskJSON(fields)
}
