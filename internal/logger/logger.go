// Package logger provides structured logging for the client
// using the Uber zap logging library. The CLI logs to stderr at the
// configured level; the demo server reuses the same logger through an
// HTTP request-logging middleware.
package logger

import (
	"errors"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
)

// Log is a global SugaredLogger instance from the zap logging library.
// Log should be initialized via Init() before first use.
var Log = zap.NewNop().Sugar()

// Init initializes the global logger with the given level.
func Init(level string) error {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return err
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = lvl
	zl, err := cfg.Build()
	if err != nil {
		return err
	}
	Log = zl.Sugar()

	return nil
}

// Sync flushes any buffered log entries to the output.
// It should be called when shutting down to ensure all logs are written.
func Sync() error {
	if err := Log.Sync(); err != nil && !errors.Is(err, os.ErrInvalid) {
		return err
	}

	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	size, err := r.ResponseWriter.Write(b)
	r.size += size
	return size, err
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.ResponseWriter.WriteHeader(statusCode)
	r.status = statusCode
}

// WithRequestLogging wraps an http.Handler and logs method, URI, status,
// duration and response size for every request it serves.
func WithRequestLogging(h http.Handler) http.Handler {
	logFn := func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		recorder := &statusRecorder{ResponseWriter: w}
		h.ServeHTTP(recorder, r)

		Log.Infoln(
			"uri", r.RequestURI,
			"method", r.Method,
			"status", recorder.status,
			"duration", time.Since(start),
			"size", recorder.size,
		)
	}

	return http.HandlerFunc(logFn)
}
