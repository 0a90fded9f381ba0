// Package middleware provides the per-request authentication gates.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gracegoods/server/src/auth"
	"github.com/gracegoods/server/src/config"
)

// Context keys under which the authenticated user is stored.
const UserKey = "user"

// AuthMiddleware gates requests on the session token. The admin
// allow-list is resolved once at construction, not per request.
type AuthMiddleware struct {
	service  *auth.Service
	cfg      *config.AuthConfig
	admins   map[string]struct{}
	loginURL string
	log      *zap.Logger
}

func NewAuthMiddleware(service *auth.Service, cfg *config.AuthConfig, log *zap.Logger) *AuthMiddleware {
	admins := make(map[string]struct{}, len(cfg.AdminEmails))
	for _, email := range cfg.AdminEmails {
		admins[strings.ToLower(strings.TrimSpace(email))] = struct{}{}
	}

	loginURL := ""
	if cfg.FrontendURL != "" {
		loginURL = cfg.FrontendURL + "/login"
	}

	return &AuthMiddleware{
		service:  service,
		cfg:      cfg,
		admins:   admins,
		loginURL: loginURL,
		log:      log,
	}
}

// RequireAuth rejects unauthenticated requests. Browser clients are
// redirected to the login page; API clients get a 401 envelope. Either
// way the stale session cookie is cleared.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := m.authenticate(c)
		if user == nil {
			m.clearSessionCookie(c)
			if m.loginURL != "" && !wantsJSON(c) {
				c.Redirect(http.StatusFound, m.loginURL)
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "AUTHENTICATION_REQUIRED",
					"message": "authentication required",
				},
			})
			return
		}

		c.Set(UserKey, user)
		c.Next()
	}
}

// RequireAdmin runs RequireAuth and then checks the allow-list. A signed
// in user who is not an admin is authenticated but not authorized, so
// the answer is a 403, not a redirect.
func (m *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	requireAuth := m.RequireAuth()
	return func(c *gin.Context) {
		requireAuth(c)
		if c.IsAborted() {
			return
		}

		user := UserFromContext(c)
		if user == nil || !m.isAdmin(user.Email) {
			email := ""
			if user != nil {
				email = user.Email
			}
			m.log.Warn("admin access denied", zap.String("email", email), zap.String("path", c.Request.URL.Path))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"error": gin.H{
					"code":    auth.ErrInsufficientPermissions.Code,
					"message": auth.ErrInsufficientPermissions.Message,
				},
			})
			return
		}

		c.Next()
	}
}

// OptionalAuth attaches the user when a valid token is present and
// always continues. Routes behind it render guest or member content.
func (m *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if tok := auth.TokenFromRequest(c); tok != "" {
			if user := m.authenticate(c); user != nil {
				c.Set(UserKey, user)
			} else {
				m.clearSessionCookie(c)
			}
		}
		c.Next()
	}
}

func (m *AuthMiddleware) authenticate(c *gin.Context) *auth.User {
	tok := auth.TokenFromRequest(c)
	if tok == "" {
		return nil
	}
	return m.service.ValidateSession(c.Request.Context(), tok, "", auth.Meta(c))
}

func (m *AuthMiddleware) isAdmin(email string) bool {
	_, ok := m.admins[strings.ToLower(email)]
	return ok
}

func (m *AuthMiddleware) clearSessionCookie(c *gin.Context) {
	domain := m.cfg.CookieDomain
	if domain == "localhost" {
		domain = ""
	}
	c.SetCookie(auth.SessionCookie, "", -1, "/", domain, m.cfg.CookieSecure, true)
}

// wantsJSON distinguishes API calls from browser navigations.
func wantsJSON(c *gin.Context) bool {
	accept := c.GetHeader("Accept")
	return strings.Contains(accept, "application/json") || accept == ""
}

// UserFromContext returns the authenticated user set by the middleware,
// or nil when the request is unauthenticated.
func UserFromContext(c *gin.Context) *auth.User {
	v, ok := c.Get(UserKey)
	if !ok {
		return nil
	}
	user, ok := v.(*auth.User)
	if !ok {
		return nil
	}
	return user
}
