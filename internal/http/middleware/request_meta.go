package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/straye-as/project-access-api/internal/auth"
)

// HeaderRequestID correlates a request across logs, audit records and responses
const HeaderRequestID = "X-Request-ID"

const maxUserAgentLength = 500

// RequestMeta captures the caller's network metadata for audit and access logs.
// An incoming X-Request-ID is kept, otherwise a new one is generated.
func RequestMeta(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(HeaderRequestID))
		if requestID == "" || len(requestID) > 100 {
			requestID = uuid.New().String()
		}
		w.Header().Set(HeaderRequestID, requestID)

		userAgent := r.UserAgent()
		if len(userAgent) > maxUserAgentLength {
			userAgent = userAgent[:maxUserAgentLength]
		}

		ctx := auth.WithRequestMeta(r.Context(), auth.RequestMeta{
			IPAddress: clientIP(r),
			UserAgent: userAgent,
			RequestID: requestID,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// clientIP extracts the client IP, honouring proxy headers
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// X-Forwarded-For can contain multiple IPs, take the first one
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
