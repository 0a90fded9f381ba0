package auth

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gracegoods/server/src/config"
)

const (
	// SessionCookie carries the signed session token.
	SessionCookie = "session"
	// StateCookie carries the CSRF nonce, scoped to the auth routes.
	StateCookie = "oauth_state"

	stateCookiePath = "/api/v1/auth"
)

// Pinger is the health probe for the backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// AuditReader lists recent audit entries for the admin dashboard.
type AuditReader interface {
	Recent(ctx context.Context, limit int) ([]AuditEntry, error)
}

// Handler is the single HTTP adapter over the auth service.
type Handler struct {
	service *Service
	cfg     *config.AuthConfig
	store   Pinger
	trail   AuditReader
	log     *zap.Logger
}

func NewHandler(service *Service, cfg *config.AuthConfig, store Pinger, trail AuditReader, log *zap.Logger) *Handler {
	return &Handler{
		service: service,
		cfg:     cfg,
		store:   store,
		trail:   trail,
		log:     log,
	}
}

// Login generates the CSRF state, sets the state cookie and returns the
// provider consent URL.
func (h *Handler) Login(c *gin.Context) {
	if !h.service.Configured() {
		writeError(c, ErrConfiguration)
		return
	}

	url, state, err := h.service.GenerateAuthorizationURL(c.Request.Context())
	if err != nil {
		h.log.Error("failed to generate authorization url", zap.Error(err))
		writeError(c, asAuthError(err))
		return
	}

	h.setCookie(c, StateCookie, state, int(h.service.StateTTL().Seconds()), stateCookiePath)
	c.JSON(http.StatusOK, gin.H{
		"redirectUrl": url,
		"provider":    "google",
	})
}

// Callback completes the login: state check, code exchange, user upsert,
// token issue, session persist. Browser-facing failures redirect to the
// storefront with a machine-readable error code; API callers get the
// JSON envelope.
func (h *Handler) Callback(c *gin.Context) {
	meta := Meta(c)
	storedState, _ := c.Cookie(StateCookie)

	// The nonce is single-use: drop the cookie no matter how this ends.
	h.clearCookie(c, StateCookie, stateCookiePath)

	if provErr := c.Query("error"); provErr != "" {
		h.log.Warn("provider returned error on callback", zap.String("error", provErr))
		h.service.RecordLoginFailure(c.Request.Context(), ActionProviderError, meta)
		h.failCallback(c, ErrOAuth)
		return
	}

	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		h.service.RecordLoginFailure(c.Request.Context(), ActionProviderError, meta)
		h.failCallback(c, ErrOAuth)
		return
	}

	result, err := h.service.ProcessCallback(c.Request.Context(), code, state, storedState, meta)
	if err != nil {
		h.log.Warn("callback failed", zap.String("code", asAuthError(err).Code), zap.Error(err))
		h.failCallback(c, err)
		return
	}

	h.setCookie(c, SessionCookie, result.Token, int(h.service.TokenTTL().Seconds()), "/")

	if h.cfg.FrontendURL != "" {
		c.Redirect(http.StatusFound, h.cfg.FrontendURL+"/auth/callback")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"user":        result.User,
		"is_new_user": result.IsNewUser,
	})
}

// Logout invalidates the session record and clears cookies. Always
// succeeds, even when the token is already invalid.
func (h *Handler) Logout(c *gin.Context) {
	tokenString := TokenFromRequest(c)
	h.service.InvalidateSession(c.Request.Context(), tokenString, Meta(c))

	h.clearCookie(c, SessionCookie, "/")
	h.clearCookie(c, StateCookie, stateCookiePath)

	c.JSON(http.StatusOK, gin.H{
		"message": "Logged out successfully",
		"cleared": []string{SessionCookie, StateCookie},
	})
}

// User returns the identity behind the session cookie.
func (h *Handler) User(c *gin.Context) {
	user := h.service.ValidateSession(c.Request.Context(), TokenFromRequest(c), "", Meta(c))
	if user == nil {
		h.clearCookie(c, SessionCookie, "/")
		c.JSON(http.StatusUnauthorized, gin.H{"authenticated": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"authenticated": true, "user": user})
}

// Health reports whether the provider credentials, signing secret and
// backing store are available.
func (h *Handler) Health(c *gin.Context) {
	redisStatus := "up"
	if err := h.store.Ping(c.Request.Context()); err != nil {
		redisStatus = "down"
	}

	status := "ok"
	if !h.cfg.HasGoogleCredentials() || redisStatus != "up" {
		status = "degraded"
	}

	c.JSON(http.StatusOK, gin.H{
		"status": status,
		"dependencies": gin.H{
			"google_oauth":   h.cfg.HasGoogleCredentials(),
			"session_secret": h.cfg.SessionSecret != "",
			"redis":          redisStatus,
		},
	})
}

// AuditTrail returns the most recent security events. Admin only.
func (h *Handler) AuditTrail(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	entries, err := h.trail.Recent(c.Request.Context(), limit)
	if err != nil {
		h.log.Error("failed to read audit trail", zap.Error(err))
		writeError(c, ErrDatabase.Wrap(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
}

func (h *Handler) failCallback(c *gin.Context, err error) {
	authErr := asAuthError(err)
	if h.cfg.FrontendURL != "" {
		c.Redirect(http.StatusFound, h.cfg.FrontendURL+"/auth/error?error="+authErr.Code)
		return
	}
	writeError(c, authErr)
}

func (h *Handler) setCookie(c *gin.Context, name, value string, maxAge int, path string) {
	c.SetSameSite(sameSiteMode(h.cfg.CookieSameSite))
	c.SetCookie(name, value, maxAge, path, cookieDomain(h.cfg.CookieDomain), h.cfg.CookieSecure, true)
}

func (h *Handler) clearCookie(c *gin.Context, name, path string) {
	c.SetSameSite(sameSiteMode(h.cfg.CookieSameSite))
	c.SetCookie(name, "", -1, path, cookieDomain(h.cfg.CookieDomain), h.cfg.CookieSecure, true)
}

func sameSiteMode(mode string) http.SameSite {
	switch mode {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

func cookieDomain(domain string) string {
	if domain == "localhost" {
		return ""
	}
	return domain
}

// TokenFromRequest reads the session token from the cookie, falling back to
// a bearer header for non-browser clients.
func TokenFromRequest(c *gin.Context) string {
	if tok, err := c.Cookie(SessionCookie); err == nil && tok != "" {
		return tok
	}
	const prefix = "Bearer "
	if h := c.GetHeader("Authorization"); len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return ""
}

// Meta captures the requester IP and user agent for audit records.
func Meta(c *gin.Context) RequestMeta {
	return RequestMeta{
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

func writeError(c *gin.Context, err *Error) {
	c.JSON(err.Status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    err.Code,
			"message": err.Message,
		},
	})
}

func asAuthError(err error) *Error {
	var authErr *Error
	if errors.As(err, &authErr) {
		return authErr
	}
	return ErrDatabase.Wrap(err)
}
