package auth

import (
	"time"
)

type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusInactive  UserStatus = "inactive"
	UserStatusSuspended UserStatus = "suspended"
)

// User is the internal account record owned by the user directory.
// Created on the first successful callback for a new email, updated on
// every repeat login, never deleted by this subsystem.
type User struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	Name          string     `json:"name"`
	Picture       string     `json:"picture,omitempty"`
	EmailVerified bool       `json:"email_verified"`
	Status        UserStatus `json:"status"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// GoogleUserInfo is the transient identity returned by the provider's
// userinfo endpoint. Received once per login, never persisted verbatim.
type GoogleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Picture       string `json:"picture"`
	Locale        string `json:"locale"`
}

// SessionRecord is the durable server-side counterpart of a session
// token, keyed by the token's jti. Holds a fingerprint of the token
// rather than the token itself. Soft-invalidated on logout, never
// deleted before its TTL runs out.
type SessionRecord struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	TokenHash string    `json:"token_hash"`
	ExpiresAt time.Time `json:"expires_at"`
	IPAddress string    `json:"ip_address,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OAuthState is the transient CSRF nonce tying a login redirect to the
// callback that completes it.
type OAuthState struct {
	State     string    `json:"state"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AuditEntry records a security-relevant event, including denials.
type AuditEntry struct {
	UserID       string         `json:"user_id,omitempty"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id,omitempty"`
	BeforeValues map[string]any `json:"before_values,omitempty"`
	AfterValues  map[string]any `json:"after_values,omitempty"`
	IPAddress    string         `json:"ip_address,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Audit actions written by the auth core.
const (
	ActionUserLogin          = "user_login"
	ActionUserRegistered     = "user_registered"
	ActionUserLogout         = "user_logout"
	ActionStateMismatch      = "oauth_state_mismatch"
	ActionProviderError      = "oauth_provider_error"
	ActionExchangeFailed     = "oauth_exchange_failed"
	ActionUserInfoFailed     = "oauth_userinfo_failed"
	ActionEmailUnverified    = "oauth_email_unverified"
	ActionTokenRejected      = "auth_token_rejected"
	ActionStorageFailed      = "auth_storage_failed"
	ActionWelcomeEmailFailed = "welcome_email_failed"
)

// AuthResult is returned by ProcessCallback on success.
type AuthResult struct {
	User      *User  `json:"user"`
	Token     string `json:"-"`
	SessionID string `json:"-"`
	IsNewUser bool   `json:"is_new_user"`
}

// RequestMeta carries the requester details recorded in sessions and
// audit entries.
type RequestMeta struct {
	IP        string
	UserAgent string
}
