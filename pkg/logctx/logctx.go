package logctx

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ctxKey string

const (
	// LoggerKey is used both as gin.Context key and context.Context key.
	LoggerKey  = "logger"
	TraceIDKey = "traceID"

	orderRefKey ctxKey = "order_ref"
)

// FromGin returns a request-scoped logger from gin.Context if present,
// otherwise returns the provided base logger.
func FromGin(c *gin.Context, base *zap.SugaredLogger) *zap.SugaredLogger {
	if c == nil {
		return base
	}
	if l, ok := c.Get(LoggerKey); ok {
		if lg, ok := l.(*zap.SugaredLogger); ok && lg != nil {
			return lg
		}
	}
	if c.Request == nil {
		return base
	}
	return FromCtx(c.Request.Context(), base)
}

// FromCtx returns a logger from context if set, otherwise attempts to enrich
// base with trace_id/order_ref from context values.
func FromCtx(ctx context.Context, base *zap.SugaredLogger) *zap.SugaredLogger {
	if ctx == nil {
		return base
	}
	lg := base
	if l, ok := ctx.Value(LoggerKey).(*zap.SugaredLogger); ok && l != nil {
		lg = l
	} else if tid, ok := ctx.Value(TraceIDKey).(string); ok && tid != "" {
		lg = lg.With("trace_id", tid)
	}
	if ref, ok := ctx.Value(orderRefKey).(string); ok && ref != "" {
		lg = lg.With("order_ref", ref)
	}
	return lg
}

// WithOrderRef tags every log line written through FromCtx with the attempt's order_ref.
func WithOrderRef(ctx context.Context, orderRef string) context.Context {
	return context.WithValue(ctx, orderRefKey, orderRef)
}
