package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	loggerpkg "AegisVault/pkg/logger"
)

// MiddlewareConfig configures the authentication middleware.
type MiddlewareConfig struct {
	// RequiredRoles lists acceptable roles per HTTP method; "*" applies to
	// methods without an explicit entry.
	RequiredRoles map[string][]string
	// AuditEvent names the event recorded in the audit log.
	AuditEvent string
}

// Middleware returns an HTTP middleware enforcing authentication and role
// checks, and recording every request to the audit log.
func (s *Service) Middleware(cfg MiddlewareConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !s.Enabled() {
				next.ServeHTTP(w, r)
				return
			}
			subject, err := s.Authenticate(r.Header.Get("Authorization"))
			if err != nil {
				status := http.StatusUnauthorized
				if errors.Is(err, ErrSubjectRevoked) {
					status = http.StatusForbidden
				}
				http.Error(w, http.StatusText(status), status)
				s.auditLogger().Warn("access_denied",
					"path", r.URL.Path,
					"method", r.Method,
					"status", status,
					"error", err.Error(),
				)
				return
			}
			roles := cfg.RequiredRoles[r.Method]
			if len(roles) == 0 {
				roles = cfg.RequiredRoles["*"]
			}
			if err := subject.Authorize(roles...); err != nil {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				s.auditLogger().Warn("role_denied",
					"path", r.URL.Path,
					"method", r.Method,
					"error", err.Error(),
					"subject", subject.Name,
				)
				return
			}
			start := time.Now()
			aw := &auditWriter{ResponseWriter: w, status: http.StatusOK}
			ctx := WithSubject(r.Context(), subject)
			next.ServeHTTP(aw, r.WithContext(ctx))
			event := cfg.AuditEvent
			if event == "" {
				event = r.URL.Path
			}
			s.auditLogger().Info("api_request",
				"event", event,
				"method", r.Method,
				"path", r.URL.Path,
				"status", aw.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"subject", subject.Name,
			)
		})
	}
}

func (s *Service) auditLogger() *slog.Logger {
	if s != nil && s.audit != nil {
		return s.audit
	}
	return loggerpkg.Audit()
}

// auditWriter captures the response status for the audit record.
type auditWriter struct {
	http.ResponseWriter
	status int
}

func (w *auditWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
