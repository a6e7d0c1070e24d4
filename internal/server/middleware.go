package server

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/vetbilling/internal/audit/domain"
	auditservice "github.com/smallbiznis/vetbilling/internal/audit/service"
	"github.com/smallbiznis/vetbilling/internal/auth"
	obscontext "github.com/smallbiznis/vetbilling/internal/observability/context"
	"github.com/smallbiznis/vetbilling/internal/observability/logger"
	"go.uber.org/zap"
)

const (
	contextUserIDKey = "user_id"
	contextRoleKey   = "role"

	rateLimitReasonClient = "client-rate"

	// maxRequestBodyBytes caps JSON request bodies.
	maxRequestBodyBytes = 10 << 20
)

// AuthRequired verifies the bearer token and stores the caller on the
// request context.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := auth.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		claims, err := s.verifier.Verify(raw)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		ctx := obscontext.WithActor(c.Request.Context(), claims.Subject, claims.Role)
		c.Request = c.Request.WithContext(ctx)
		c.Set(contextUserIDKey, claims.Subject)
		c.Set(contextRoleKey, claims.Role)
		c.Next()
	}
}

func (s *Server) authorize(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID, role := obscontext.ActorFromContext(c.Request.Context())
		if actorID == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if err := s.authzSvc.Authorize(c.Request.Context(), actorID, role, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

// RateLimit applies the per-client request budget. A nil limiter admits
// everything.
func (s *Server) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter == nil {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		endpoint := normalizeRateLimitEndpoint(c)

		res, err := s.limiter.Allow(ctx, c.ClientIP())
		if err != nil {
			logger.WithContext(ctx, s.log).Warn("rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		if !res.Allowed {
			logger.WithContext(ctx, s.log).Warn("rate limit exceeded",
				zap.String("reason", rateLimitReasonClient),
				zap.String("endpoint", endpoint),
			)
			s.obsMetrics.RecordRateLimitDenied(ctx, endpoint, rateLimitReasonClient)

			retryAfter := int(math.Ceil(res.RetryAfter.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			AbortWithError(c, ErrRateLimited)
			return
		}

		s.obsMetrics.RecordRateLimitAllowed(ctx, endpoint)
		c.Next()
	}
}

// AuditWrites records every write request after it is handled, including
// rejected ones. A failed record is logged and never changes the response.
func (s *Server) AuditWrites() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !auditservice.IsWriteMethod(c.Request.Method) {
			c.Next()
			return
		}

		body, err := readBody(c)
		if err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}

		c.Next()

		ctx := c.Request.Context()
		var actorID *string
		if id, _ := obscontext.ActorFromContext(ctx); id != "" {
			actorID = &id
		}

		metadata := map[string]any{
			"request_id": obscontext.RequestIDFromContext(ctx),
		}
		if lastErr := c.Errors.Last(); lastErr != nil {
			errorType, _ := classifyErrorForLog(lastErr.Err)
			metadata["error_type"] = errorType
		}

		entry := auditdomain.Entry{
			ActorID:  actorID,
			Route:    c.Request.URL.RequestURI(),
			Method:   c.Request.Method,
			Body:     decodeBody(body),
			Metadata: metadata,
		}
		if err := s.auditSvc.Record(ctx, entry); err != nil {
			logger.WithContext(ctx, s.log).Warn("failed to record write operation",
				zap.String("method", c.Request.Method),
				zap.String("route", c.FullPath()),
				zap.Error(err),
			)
		}
	}
}

func readBody(c *gin.Context) ([]byte, error) {
	if c.Request.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestBodyBytes))
	if err != nil {
		return nil, err
	}
	c.Request.Body = io.NopCloser(bytes.NewBuffer(body))
	return body, nil
}

// decodeBody returns the parsed JSON body. Bodies that do not parse are kept
// raw so the recorder stores them as unserializable.
func decodeBody(body []byte) any {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return json.RawMessage(body)
	}
	return payload
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
