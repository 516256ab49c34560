package gateway

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vyrodovalexey/loangw/internal/auth"
	"github.com/vyrodovalexey/loangw/internal/config"
	"github.com/vyrodovalexey/loangw/internal/observability"
	"github.com/vyrodovalexey/loangw/internal/ratelimit"
	"github.com/vyrodovalexey/loangw/internal/router"
)

const (
	// RequestIDHeader is the header carrying the request id.
	RequestIDHeader = "X-Request-ID"
	// RequestIDKey is the gin context key of the request id.
	RequestIDKey = "requestID"
)

// Recovery answers panics with 500 and logs them with the stack.
func Recovery(logger observability.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.WithContext(c.Request.Context()).Error("panic recovered",
					observability.Any("error", rec),
					observability.String("method", c.Request.Method),
					observability.String("path", c.Request.URL.Path),
					observability.String("stack", string(debug.Stack())),
				)
				abortWithError(c, fmt.Errorf("panic: %v: %w", rec, ErrInternal))
			}
		}()

		c.Next()
	}
}

// RequestID reuses the inbound X-Request-ID or generates one, and stores it
// in the request context for logging.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Request = c.Request.WithContext(observability.ContextWithRequestID(c.Request.Context(), id))

		c.Next()
	}
}

// AccessLog logs every completed request at a level chosen by status.
func AccessLog(logger observability.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		fields := []observability.Field{
			observability.String("method", c.Request.Method),
			observability.String("path", c.Request.URL.Path),
			observability.String("query", c.Request.URL.RawQuery),
			observability.Int("status", status),
			observability.Duration("latency", time.Since(start)),
			observability.String("client_ip", c.ClientIP()),
			observability.Int("body_size", c.Writer.Size()),
		}
		if id, ok := auth.IdentityFromContext(c.Request.Context()); ok {
			fields = append(fields, observability.String("user_id", id.UserID))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, observability.String("errors", c.Errors.String()))
		}

		log := logger.WithContext(c.Request.Context())
		switch {
		case status >= http.StatusInternalServerError:
			log.Error("request completed", fields...)
		case status >= http.StatusBadRequest:
			log.Warn("request completed", fields...)
		default:
			log.Info("request completed", fields...)
		}
	}
}

// endpointLabel returns the bounded endpoint label of a request: the
// registered path, the matched route prefix, or empty when unmatched.
func endpointLabel(c *gin.Context, routes *router.Table) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	if e, ok := routes.Match(c.Request.URL.Path); ok {
		return e.Prefix
	}
	return ""
}

// Metrics records request counts and durations.
func Metrics(m *observability.Metrics, routes *router.Table) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		m.RecordRequest(c.Request.Method, endpointLabel(c, routes), c.Writer.Status(), time.Since(start))
	}
}

// RateLimit rejects clients above the limit on paths under pathPrefix.
// Store failures admit the request.
func RateLimit(
	limiter *ratelimit.Limiter,
	clientIP *ratelimit.ClientIPExtractor,
	pathPrefix string,
	routes *router.Table,
	m *observability.Metrics,
	logger observability.Logger,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !strings.HasPrefix(c.Request.URL.Path, pathPrefix) {
			c.Next()
			return
		}

		client := clientIP.Extract(c.Request)
		result, err := limiter.Allow(c.Request.Context(), client)
		if err != nil {
			logger.WithContext(c.Request.Context()).Warn("rate limit check failed, request admitted",
				observability.String("client", client),
				observability.Error(err),
			)
		}

		if !result.Allowed {
			logger.WithContext(c.Request.Context()).Debug("rate limit exceeded",
				observability.String("client", client),
				observability.Int64("count", result.Count),
				observability.Int("limit", result.Limit),
			)
			if m != nil {
				m.RecordRateLimited(endpointLabel(c, routes))
			}
			c.Header("Retry-After", strconv.Itoa(int(result.RetryAfter.Seconds())))
			abortWithError(c, ErrRateLimited)
			return
		}

		c.Next()
	}
}

// CORS answers cross-origin requests for the configured origins. Preflight
// requests are answered directly. Credentials are allowed, so the request
// origin is echoed even when all origins are allowed.
func CORS(cfg config.CORSConfig) gin.HandlerFunc {
	allowAll := false
	allowed := make(map[string]struct{}, len(cfg.AllowOrigins))
	for _, o := range cfg.AllowOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			c.Next()
			return
		}
		if _, ok := allowed[origin]; !ok && !allowAll {
			c.Next()
			return
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Add("Vary", "Origin")

		reqMethod := c.GetHeader("Access-Control-Request-Method")
		if c.Request.Method != http.MethodOptions || reqMethod == "" {
			c.Next()
			return
		}

		c.Header("Access-Control-Allow-Methods", strings.Join(allowedMethods, ", "))
		if h := c.GetHeader("Access-Control-Request-Headers"); h != "" {
			c.Header("Access-Control-Allow-Headers", h)
		}
		c.Header("Access-Control-Max-Age", "600")
		c.AbortWithStatus(http.StatusOK)
	}
}
