package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/prohmpiriya/test-platform/pkg/logger"
	"github.com/prohmpiriya/test-platform/pkg/response"
)

const (
	// IdempotencyKeyHeader lets a client retry a create without duplicating it
	IdempotencyKeyHeader = "Idempotency-Key"

	idempotencyKeyPrefix = "idempotency:"
)

type replayStatus string

const (
	replayProcessing replayStatus = "processing"
	replayCompleted  replayStatus = "completed"
)

// replayRecord is the stored outcome of one keyed request
type replayRecord struct {
	Status       replayStatus `json:"status"`
	RequestHash  string       `json:"request_hash"`
	ResponseCode int          `json:"response_code,omitempty"`
	ResponseBody string       `json:"response_body,omitempty"`
}

// ReplayStore is the subset of the Redis client the replay middleware uses
type ReplayStore interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// IdempotencyConfig holds configuration for Idempotent
type IdempotencyConfig struct {
	Store ReplayStore
	// TTL of a completed record
	TTL time.Duration
	// ProcessingTTL bounds how long a crashed request blocks its key
	ProcessingTTL time.Duration
	// Timeout bounds each store call
	Timeout time.Duration
}

// Idempotent replays the first successful response of a request carrying an
// Idempotency-Key header. Keys are scoped to the caller. Requests without the
// header pass through, and so does everything while the store is unreachable.
func Idempotent(cfg IdempotencyConfig, log *logger.Logger) gin.HandlerFunc {
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.ProcessingTTL <= 0 {
		cfg.ProcessingTTL = time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 500 * time.Millisecond
	}

	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyKeyHeader)
		if key == "" {
			c.Next()
			return
		}
		if !requestIDPattern.MatchString(key) {
			response.Abort(c, http.StatusBadRequest, "INVALID_IDEMPOTENCY_KEY", "Idempotency-Key must be 1-64 letters, digits, '.', '_' or '-'")
			return
		}

		var body []byte
		if c.Request.Body != nil {
			var err error
			body, err = io.ReadAll(c.Request.Body)
			if err != nil {
				response.Abort(c, http.StatusBadRequest, "BAD_REQUEST", "Failed to read request body")
				return
			}
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
		}

		owner := ""
		if p := GetPrincipal(c); p != nil {
			owner = p.Username
		}
		storeKey := idempotencyKeyPrefix + owner + ":" + key
		hash := requestHash(c.Request.Method, c.Request.URL.Path, body)

		ctx := c.Request.Context()
		record := &replayRecord{Status: replayProcessing, RequestHash: hash}

		claimed, err := claim(ctx, cfg, storeKey, record)
		if err != nil {
			log.WarnContext(ctx, "Idempotency store unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !claimed {
			existing, err := load(ctx, cfg, storeKey)
			if err != nil || existing == nil {
				// Expired between SETNX and GET, or the store is failing
				c.Next()
				return
			}
			replay(c, existing, hash)
			return
		}

		rw := &capturingWriter{ResponseWriter: c.Writer}
		c.Writer = rw

		c.Next()

		storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Timeout)
		defer cancel()

		status := rw.Status()
		if status < 200 || status >= 300 {
			// Failed attempts release the key so the client can retry
			cfg.Store.Del(storeCtx, storeKey)
			return
		}

		record.Status = replayCompleted
		record.ResponseCode = status
		record.ResponseBody = rw.body.String()
		data, _ := json.Marshal(record)
		if err := cfg.Store.Set(storeCtx, storeKey, data, cfg.TTL).Err(); err != nil {
			log.WarnContext(ctx, "Failed to store idempotent response", zap.Error(err))
		}
	}
}

func claim(ctx context.Context, cfg IdempotencyConfig, key string, record *replayRecord) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	data, err := json.Marshal(record)
	if err != nil {
		return false, err
	}
	return cfg.Store.SetNX(ctx, key, data, cfg.ProcessingTTL).Result()
}

func load(ctx context.Context, cfg IdempotencyConfig, key string) (*replayRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	raw, err := cfg.Store.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var record replayRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func replay(c *gin.Context, record *replayRecord, hash string) {
	switch {
	case record.RequestHash != hash:
		response.Abort(c, http.StatusUnprocessableEntity, "IDEMPOTENCY_KEY_REUSED", "Idempotency-Key was already used with a different request")
	case record.Status == replayProcessing:
		response.Abort(c, http.StatusConflict, "REQUEST_IN_PROGRESS", "A request with this Idempotency-Key is still being processed")
	default:
		c.Header("Idempotent-Replayed", "true")
		c.Data(record.ResponseCode, "application/json; charset=utf-8", []byte(record.ResponseBody))
		c.Abort()
	}
}

func requestHash(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte(path))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// capturingWriter keeps a copy of the response body
type capturingWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *capturingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *capturingWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
