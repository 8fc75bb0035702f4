package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/straye-as/project-access-api/internal/config"
	"github.com/straye-as/project-access-api/internal/domain"
	"go.uber.org/zap"
)

const (
	// HeaderAPIKey identifies a service principal
	HeaderAPIKey = "X-API-Key"
	// HeaderPortalToken carries a portal token secret
	HeaderPortalToken = "X-Portal-Token"
	// HeaderPortalCode carries a portal short code
	HeaderPortalCode = "X-Portal-Code"
)

// PortalValidator validates a portal credential (secret or short code). A nil grant
// with a nil error means the credential is not valid.
type PortalValidator interface {
	ValidateGrant(ctx context.Context, credential string) (*PortalGrant, error)
}

// Middleware resolves the principal of every request
type Middleware struct {
	jwtValidator *JWTValidator
	resolver     *RoleResolver
	portal       PortalValidator
	apiKey       string
	logger       *zap.Logger
}

// NewMiddleware creates a new authentication middleware
func NewMiddleware(cfg *config.AuthConfig, resolver *RoleResolver, portal PortalValidator, logger *zap.Logger) *Middleware {
	return &Middleware{
		jwtValidator: NewJWTValidator(cfg),
		resolver:     resolver,
		portal:       portal,
		apiKey:       cfg.APIKey,
		logger:       logger,
	}
}

// Authenticate attaches a principal to the request context. Precedence: API key,
// bearer session, portal credential. Requests with none of them are rejected.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		if apiKey := r.Header.Get(HeaderAPIKey); apiKey != "" {
			if !m.validateAPIKey(apiKey) {
				m.logger.Warn("invalid API key attempt",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeAuthError(w, domain.ErrorTypeUnauthorized, "invalid api key")
				return
			}
			m.serve(w, r, next, ServicePrincipal(), start)
			return
		}

		if authHeader := r.Header.Get("Authorization"); authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				writeAuthError(w, domain.ErrorTypeUnauthorized, "invalid authorization header format")
				return
			}

			session, err := m.jwtValidator.ValidateToken(parts[1])
			if err != nil {
				m.logger.Warn("session token validation failed",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
					zap.Error(err),
				)
				writeAuthError(w, domain.ErrorTypeUnauthorized, err.Error())
				return
			}

			p := UserPrincipal(session.UserID, m.resolver.ResolveRole(r.Context(), session.UserID))
			p.Email = session.Email
			p.DisplayName = session.Name
			m.serve(w, r, next, p, start)
			return
		}

		if credential := portalCredential(r); credential != "" {
			grant, err := m.portal.ValidateGrant(r.Context(), credential)
			if err != nil {
				m.logger.Error("portal token validation failed", zap.Error(err))
				writeAuthError(w, domain.ErrorTypeInternal, "portal validation unavailable")
				return
			}
			if grant == nil {
				writeAuthError(w, domain.ErrorTypePortalToken, "portal link is invalid or has expired")
				return
			}
			m.serve(w, r, next, AnonymousPrincipal(grant), start)
			return
		}

		writeAuthError(w, domain.ErrorTypeUnauthorized, "missing credentials")
	})
}

// RequireAuthenticated rejects callers without a verified session
func (m *Middleware) RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := FromContext(r.Context())
		if !ok || !p.IsAuthenticated() {
			writeAuthError(w, domain.ErrorTypeUnauthorized, "a user session is required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) serve(w http.ResponseWriter, r *http.Request, next http.Handler, p *Principal, start time.Time) {
	fields := []zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("principal_kind", string(p.Kind)),
		zap.Duration("auth_duration", time.Since(start)),
	}
	if p.IsAuthenticated() {
		fields = append(fields, zap.String("user_id", p.UserID.String()), zap.String("role", string(p.Role)))
	}
	if p.Portal != nil {
		fields = append(fields, zap.String("portal_project_id", p.Portal.ProjectID.String()))
	}
	m.logger.Debug("request authenticated", fields...)

	next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
}

func (m *Middleware) validateAPIKey(key string) bool {
	if m.apiKey == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(m.apiKey)) == 1
}

// HasPortalCredential reports whether the request presents a portal credential
func HasPortalCredential(r *http.Request) bool {
	return portalCredential(r) != ""
}

func portalCredential(r *http.Request) string {
	if token := strings.TrimSpace(r.Header.Get(HeaderPortalToken)); token != "" {
		return token
	}
	return strings.TrimSpace(r.Header.Get(HeaderPortalCode))
}

func writeAuthError(w http.ResponseWriter, errType, message string) {
	status := http.StatusUnauthorized
	if errType == domain.ErrorTypeInternal {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(domain.ErrorResponse{
		Error:   errType,
		Message: message,
		Code:    status,
	})
}
