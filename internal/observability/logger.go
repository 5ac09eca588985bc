package observability

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rkbansal/postify/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the process logger. Format "json" uses the production
// encoder; "console" (or "text") uses the development encoder.
func NewLogger(cfg config.ObservabilityConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}

	var zcfg zap.Config
	switch strings.ToLower(cfg.LogFormat) {
	case "", "json":
		zcfg = zap.NewProductionConfig()
	case "console", "text":
		zcfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("invalid log format %q", cfg.LogFormat)
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.EncoderConfig.TimeKey = "timestamp"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger.With(zap.String("service", "postify")), nil
}

// WithContext returns a logger annotated with the chi request ID, if any.
func WithContext(ctx context.Context, logger *zap.Logger) *zap.Logger {
	if reqID := chimw.GetReqID(ctx); reqID != "" {
		return logger.With(zap.String("request_id", reqID))
	}
	return logger
}

// RequestLogger logs one line per request after the handler returns.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote_addr", r.RemoteAddr),
			}
			l := WithContext(r.Context(), logger)
			switch {
			case status >= 500:
				l.Error("request completed", fields...)
			case status >= 400:
				l.Warn("request completed", fields...)
			default:
				l.Info("request completed", fields...)
			}
		})
	}
}
