// Package logger wraps logrus with a context-scoped field logger, the way
// the teacher package (internal/logger, referenced but not vendored in the
// retrieval pack) is called from internal/handler: logger.Info(ctx, ...),
// logger.Errorf(ctx, ...), logger.ErrorWithFields(ctx, err, fields).
package logger

import (
	"context"

	"github.com/sirupsen/logrus"
)

type ctxKey string

const requestIDKey ctxKey = "x-request-id"

var base = logrus.New()

func init() {
	base.SetFormatter(&logrus.JSONFormatter{})
}

// WithRequestID returns a context carrying the request id for later log calls.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// CloneContext returns ctx unchanged; kept as a named helper because the
// teacher's handlers call logger.CloneContext(c.Request.Context()) before
// spawning background work off the request context.
func CloneContext(ctx context.Context) context.Context {
	return ctx
}

func entry(ctx context.Context) *logrus.Entry {
	if rid, ok := ctx.Value(requestIDKey).(string); ok && rid != "" {
		return base.WithField("request_id", rid)
	}
	return logrus.NewEntry(base)
}

func Info(ctx context.Context, args ...interface{})  { entry(ctx).Info(args...) }
func Warn(ctx context.Context, args ...interface{})  { entry(ctx).Warn(args...) }
func Error(ctx context.Context, args ...interface{}) { entry(ctx).Error(args...) }
func Debug(ctx context.Context, args ...interface{}) { entry(ctx).Debug(args...) }

func Infof(ctx context.Context, format string, args ...interface{})  { entry(ctx).Infof(format, args...) }
func Warnf(ctx context.Context, format string, args ...interface{})  { entry(ctx).Warnf(format, args...) }
func Errorf(ctx context.Context, format string, args ...interface{}) { entry(ctx).Errorf(format, args...) }

// ErrorWithFields logs err along with a structured field map.
func ErrorWithFields(ctx context.Context, err error, fields map[string]interface{}) {
	e := entry(ctx)
	if fields != nil {
		e = e.WithFields(fields)
	}
	e.WithError(err).Error("operation failed")
}
