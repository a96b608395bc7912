package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"payconfirm/internal/redis"
)

const (
	idempotencyHeader = "Idempotency-Key"
	skipCacheKey      = "idempotency_skip"
)

// cachedResponse stores the response for idempotent requests.
type cachedResponse struct {
	StatusCode  int             `json:"status_code"`
	Body        json.RawMessage `json:"body"`
	Headers     http.Header     `json:"headers"`
	RequestHash string          `json:"request_hash"`
}

// SkipIdempotencyCache marks the current response as provisional so it is
// not stored for replay. Handlers call it for answers a client is expected
// to poll past, such as a payment still pending at the provider.
func SkipIdempotencyCache(c *gin.Context) {
	c.Set(skipCacheKey, true)
}

// responseWriter wraps gin.ResponseWriter to capture the response.
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// IdempotencyMiddleware replays the stored response for a repeated
// Idempotency-Key. The ledger already makes confirmation idempotent; this
// saves the repeat a rail round trip. A nil cache disables it.
func IdempotencyMiddleware(cache redis.ResponseCacheInterface, ttl time.Duration, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cache == nil || c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		key := c.GetHeader(idempotencyHeader)
		if key == "" {
			c.Next()
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "error": "unreadable request body"})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		sum := sha256.Sum256(body)
		requestHash := hex.EncodeToString(sum[:])

		ctx := c.Request.Context()
		cacheKey := c.Request.Method + ":" + c.Request.URL.Path + ":" + key

		data, err := cache.Get(ctx, cacheKey)
		if err != nil {
			// Cache unavailable - proceed without replay.
			logger.Warn("idempotency cache read failed", zap.Error(err))
			c.Next()
			return
		}

		if data != nil {
			var cached cachedResponse
			if err := json.Unmarshal(data, &cached); err == nil {
				if cached.RequestHash != requestHash {
					c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
						"success": false,
						"error":   "Idempotency-Key was already used with a different request body",
					})
					return
				}
				for k, v := range cached.Headers {
					for _, val := range v {
						c.Header(k, val)
					}
				}
				c.Header("Idempotent-Replayed", "true")
				c.Data(cached.StatusCode, "application/json", cached.Body)
				c.Abort()
				return
			}
		}

		w := &responseWriter{
			ResponseWriter: c.Writer,
			body:           &bytes.Buffer{},
		}
		c.Writer = w

		c.Next()

		if c.GetBool(skipCacheKey) {
			return
		}

		// 5xx answers are retryable and must not be replayed.
		if status := c.Writer.Status(); status >= 200 && status < 500 {
			response := cachedResponse{
				StatusCode:  status,
				Body:        w.body.Bytes(),
				Headers:     extractResponseHeaders(c),
				RequestHash: requestHash,
			}
			data, err := json.Marshal(&response)
			if err == nil {
				err = cache.Set(ctx, cacheKey, data, ttl)
			}
			if err != nil {
				logger.Warn("idempotency cache write failed", zap.Error(err))
			}
		}
	}
}

// extractResponseHeaders extracts headers to cache.
func extractResponseHeaders(c *gin.Context) http.Header {
	headers := make(http.Header)
	if ct := c.Writer.Header().Get("Content-Type"); ct != "" {
		headers.Set("Content-Type", ct)
	}
	return headers
}
