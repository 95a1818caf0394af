// Package server exposes the HTTP surface: routes, session middleware, and
// the JSON envelope.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"playsdb/internal/app"
	"playsdb/internal/ratelimit"
	"playsdb/internal/token"
	"playsdb/internal/util"
	"playsdb/pkg/domain"
)

const sessionCookieName = "token"

// Config wires required dependencies for the HTTP server.
type Config struct {
	App                       *app.App
	RedisAddr                 string
	RedisPassword             string
	AuthRateLimitPerMinute    int
	ContactRateLimitPerMinute int
	ClientOrigin              string
	SecureCookies             bool
	TrustedProxies            *util.TrustedProxies
}

// Server exposes HTTP endpoints for the backend.
type Server struct {
	app            *app.App
	mux            *http.ServeMux
	clientOrigin   string
	secureCookies  bool
	trustedProxies *util.TrustedProxies
	authLimiter    *ratelimit.FixedWindowLimiter
	contactLimiter *ratelimit.FixedWindowLimiter
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	authLimit := cfg.AuthRateLimitPerMinute
	if authLimit <= 0 {
		authLimit = 10
	}
	contactLimit := cfg.ContactRateLimitPerMinute
	if contactLimit <= 0 {
		contactLimit = 5
	}
	newLimiter := func(name string, limit int) (*ratelimit.FixedWindowLimiter, error) {
		prefix := "playsdb:ratelimit:" + name
		limiter, err := ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, prefix, limit, time.Minute)
		if err != nil {
			return nil, fmt.Errorf("init %s limiter: %w", name, err)
		}
		return limiter, nil
	}
	authLimiter, err := newLimiter("auth", authLimit)
	if err != nil {
		return nil, err
	}
	contactLimiter, err := newLimiter("contact", contactLimit)
	if err != nil {
		return nil, err
	}
	s := &Server{
		app:            cfg.App,
		mux:            http.NewServeMux(),
		clientOrigin:   cfg.ClientOrigin,
		secureCookies:  cfg.SecureCookies,
		trustedProxies: cfg.TrustedProxies,
		authLimiter:    authLimiter,
		contactLimiter: contactLimiter,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler with the middleware chain applied.
func (s *Server) Router() http.Handler {
	handler := util.WithSecurityHeaders(util.WithCORS(s.clientOrigin, s.mux))
	return util.WithRequestID(util.WithRequestLog("playsdb", handler))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// auth
	s.mux.HandleFunc("/auth/signup", s.handleSignup)
	s.mux.HandleFunc("/auth/login", s.handleLogin)
	s.mux.HandleFunc("/auth/logout", s.handleLogout)
	s.mux.Handle("/auth/check", s.authenticated(s.handleCheck))
	s.mux.HandleFunc("/auth/forgot-password", s.handleForgotPassword)
	s.mux.HandleFunc("/auth/reset-password/", s.handleResetPassword)

	// users
	s.mux.Handle("/users/profile", s.authenticated(s.handleProfile))
	s.mux.HandleFunc("/users/", s.handleUserByID)

	// plays
	s.mux.HandleFunc("/plays", s.handlePlays)
	s.mux.HandleFunc("/plays/", s.handlePlayByID)

	// contact
	s.mux.HandleFunc("/contact", s.handleContactSite)
	s.mux.Handle("/contact/user/", s.authenticated(s.handleContactUser))

	// admin
	s.mux.Handle("/admin/users", s.adminOnly(s.handleAdminUsers))
	s.mux.Handle("/admin/users/", s.adminOnly(s.handleAdminUserByID))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// auth wrappers
type authHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.authorize(w, r)
		if !ok {
			return
		}
		next(w, r, user)
	})
}

func (s *Server) adminOnly(next authHandler) http.Handler {
	return s.authenticated(func(w http.ResponseWriter, r *http.Request, user domain.User) {
		if !user.IsAdmin() {
			s.audit(r, "admin.authorize", "fail", "user_id", user.ID, "reason", "forbidden")
			writeError(w, http.StatusForbidden, "Access denied: Insufficient permissions")
			return
		}
		next(w, r, user)
	})
}

// authorize resolves the session cookie to a user. On failure it writes the
// 401 response itself, distinguishing expired from malformed tokens.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request) (domain.User, bool) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		s.audit(r, "session.verify", "fail", "reason", "missing_cookie")
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return domain.User{}, false
	}
	claims, err := s.app.Tokens().VerifySession(cookie.Value)
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			s.audit(r, "session.verify", "fail", "reason", "expired")
			writeError(w, http.StatusUnauthorized, "Session expired. Please log in again.")
			return domain.User{}, false
		}
		s.audit(r, "session.verify", "fail", "reason", "invalid")
		writeError(w, http.StatusUnauthorized, "Invalid token. Please log in again.")
		return domain.User{}, false
	}
	user, err := s.app.GetUser(claims.Subject)
	if err != nil {
		s.audit(r, "session.verify", "fail", "reason", "user_not_found")
		writeError(w, http.StatusUnauthorized, "Invalid token. Please log in again.")
		return domain.User{}, false
	}
	return user, true
}

func (s *Server) setSessionCookie(w http.ResponseWriter, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(s.app.Tokens().SessionTTL().Seconds()),
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, msg string) bool {
	key := r.URL.Path + "|" + s.clientIP(r)
	if limiter.Allow(key) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}

func (s *Server) clientIP(r *http.Request) string {
	return util.ClientIP(r, s.trustedProxies)
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", s.clientIP(r),
		"request_id", util.RequestIDFromRequest(r),
	}
	logAttrs = append(logAttrs, attrs...)
	if outcome == "success" {
		slog.Info("security_event", logAttrs...)
		return
	}
	slog.Warn("security_event", logAttrs...)
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
}

func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

// writeAppError maps application errors onto HTTP statuses. Unknown errors
// are logged and hidden behind a 500.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *app.ValidationError
	if errors.As(err, &verr) {
		writeError(w, http.StatusBadRequest, verr.Message)
		return
	}
	var rlerr *app.RateLimitError
	if errors.As(err, &rlerr) {
		w.Header().Set("Retry-After", strconv.Itoa(rlerr.WaitMinutes()*60))
		writeError(w, http.StatusTooManyRequests, rlerr.Error())
		return
	}
	switch {
	case errors.Is(err, app.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, app.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, app.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, app.ErrNoSample):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrEmailInUse), errors.Is(err, app.ErrInvalidResetToken):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("internal error",
			"path", r.URL.Path,
			"method", r.Method,
			"request_id", util.RequestIDFromRequest(r),
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}
