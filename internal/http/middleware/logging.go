package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/straye-as/project-access-api/internal/auth"
	"github.com/straye-as/project-access-api/internal/domain"
	"go.uber.org/zap"
)

type responseWriter struct {
	http.ResponseWriter
	statusCode    int
	written       int64
	wroteHeader   bool
	principalKind string
	userID        string
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// Logging middleware logs HTTP requests
func Logging(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
				principalKind:  "none",
			}

			next.ServeHTTP(rw, r)

			duration := time.Since(start)
			meta := auth.RequestMetaFromContext(r.Context())

			fields := []zap.Field{
				zap.String("request_id", meta.RequestID),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", meta.IPAddress),
				zap.Int("status_code", rw.statusCode),
				zap.Int64("response_size", rw.written),
				zap.Duration("duration", duration),
				zap.String("principal_kind", rw.principalKind),
			}
			if rw.userID != "" {
				fields = append(fields, zap.String("user_id", rw.userID))
			}

			logger.Info(
				fmt.Sprintf("%s %-30s -> %3d (%s)",
					r.Method,
					r.URL.Path,
					rw.statusCode,
					duration.Truncate(time.Microsecond),
				),
				fields...,
			)
		})
	}
}

// TagPrincipal records the resolved principal on the request log line. It must
// run after authentication, inside Logging.
func TagPrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rw, ok := w.(*responseWriter); ok {
			if p, found := auth.FromContext(r.Context()); found {
				rw.principalKind = p.KindString()
				if p.IsAuthenticated() {
					rw.userID = p.UserID.String()
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Recovery turns a panic into a 500 response and logs the stack
func Recovery(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.Error("panic recovered",
					zap.Any("panic", rec),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("request_id", auth.RequestMetaFromContext(r.Context()).RequestID),
					zap.ByteString("stack", debug.Stack()),
				)
				if rw, ok := w.(*responseWriter); ok && rw.wroteHeader {
					return
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":"` + domain.ErrorTypeInternal + `","message":"An internal error occurred","code":500}`))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
