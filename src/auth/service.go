package auth

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/gracegoods/server/src/metrics"
	"github.com/gracegoods/server/src/token"
)

// UserDirectory resolves provider identities to internal users.
type UserDirectory interface {
	FindByID(ctx context.Context, id string) (*User, error)
	Upsert(ctx context.Context, info *GoogleUserInfo) (*User, bool, error)
}

// SessionRepository persists server-side session records.
type SessionRepository interface {
	Create(ctx context.Context, id, userID, tokenHash string, ttl time.Duration, meta RequestMeta) (*SessionRecord, error)
	FindByID(ctx context.Context, id string) (*SessionRecord, error)
	Invalidate(ctx context.Context, id string) error
}

// StateRepository holds single-use CSRF nonces.
type StateRepository interface {
	Generate(ctx context.Context) (string, error)
	Consume(ctx context.Context, state string) (bool, error)
	TTL() time.Duration
}

// Service drives the login state machine and answers session-validation
// queries. All collaborators are injected at construction.
type Service struct {
	oauth    OAuthClient
	users    UserDirectory
	sessions SessionRepository
	states   StateRepository
	audit    AuditLog
	codec    *token.Codec
	notifier Notifier
	log      *zap.Logger
}

func NewService(
	oauth OAuthClient,
	users UserDirectory,
	sessions SessionRepository,
	states StateRepository,
	audit AuditLog,
	codec *token.Codec,
	notifier Notifier,
	log *zap.Logger,
) *Service {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &Service{
		oauth:    oauth,
		users:    users,
		sessions: sessions,
		states:   states,
		audit:    audit,
		codec:    codec,
		notifier: notifier,
		log:      log,
	}
}

// Configured reports whether an OAuth provider was wired in. When the
// provider credentials are absent the service boots without one and
// login answers with a configuration error.
func (s *Service) Configured() bool {
	return s.oauth != nil
}

// StateTTL is the lifetime the handler applies to the state cookie.
func (s *Service) StateTTL() time.Duration {
	return s.states.TTL()
}

// TokenTTL is the lifetime of issued tokens and their session records.
func (s *Service) TokenTTL() time.Duration {
	return s.codec.TTL()
}

// GenerateAuthorizationURL creates and stores a CSRF state and returns
// the provider consent URL. The caller must persist the state in a
// cookie before redirecting.
func (s *Service) GenerateAuthorizationURL(ctx context.Context) (string, string, error) {
	if s.oauth == nil {
		return "", "", ErrConfiguration
	}
	state, err := s.states.Generate(ctx)
	if err != nil {
		return "", "", ErrDatabase.Wrap(err)
	}
	return s.oauth.AuthCodeURL(state), state, nil
}

// RecordLoginFailure audits a login attempt that ended before the
// callback sequence could run, such as a provider-reported error or a
// callback missing its code or state. These denials feed abuse
// detection just like the in-sequence ones.
func (s *Service) RecordLoginFailure(ctx context.Context, action string, meta RequestMeta) {
	s.denied(ctx, action, "", meta)
	metrics.LoginsTotal.WithLabelValues("provider_error").Inc()
}

// ProcessCallback runs the full callback sequence: CSRF check, code
// exchange, identity fetch, user upsert, token issue, session persist,
// audit. Any failure before the exchange aborts with no side effects;
// the session is always the last write.
func (s *Service) ProcessCallback(ctx context.Context, code, state, storedState string, meta RequestMeta) (*AuthResult, error) {
	if s.oauth == nil {
		return nil, ErrConfiguration
	}

	if state == "" || storedState == "" || state != storedState {
		s.denied(ctx, ActionStateMismatch, "", meta)
		metrics.LoginsTotal.WithLabelValues("state_mismatch").Inc()
		return nil, ErrInvalidState
	}
	ok, err := s.states.Consume(ctx, state)
	if err != nil {
		return nil, ErrDatabase.Wrap(err)
	}
	if !ok {
		s.denied(ctx, ActionStateMismatch, "", meta)
		metrics.LoginsTotal.WithLabelValues("state_mismatch").Inc()
		return nil, ErrInvalidState
	}

	providerToken, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		s.denied(ctx, ActionExchangeFailed, "", meta)
		metrics.LoginsTotal.WithLabelValues("exchange_failed").Inc()
		return nil, ErrTokenExchangeFailed.Wrap(err)
	}

	identity, err := s.oauth.FetchIdentity(ctx, providerToken.AccessToken)
	if err != nil {
		if errors.Is(err, ErrEmailNotVerified) {
			s.denied(ctx, ActionEmailUnverified, "", meta)
			metrics.LoginsTotal.WithLabelValues("email_unverified").Inc()
			return nil, ErrEmailNotVerified
		}
		s.denied(ctx, ActionUserInfoFailed, "", meta)
		metrics.LoginsTotal.WithLabelValues("userinfo_failed").Inc()
		return nil, ErrUserInfoFailed.Wrap(err)
	}

	user, isNew, err := s.users.Upsert(ctx, identity)
	if err != nil {
		s.denied(ctx, ActionStorageFailed, "", meta)
		metrics.LoginsTotal.WithLabelValues("storage_error").Inc()
		return nil, ErrDatabase.Wrap(err)
	}

	signed, claims, err := s.codec.Issue(user.ID, user.Email, user.Name, user.Picture, time.Now())
	if err != nil {
		s.denied(ctx, ActionStorageFailed, user.ID, meta)
		metrics.LoginsTotal.WithLabelValues("storage_error").Inc()
		return nil, ErrDatabase.Wrap(err)
	}

	// The session record shares the token's jti and lifetime so neither
	// can outlive the other.
	record, err := s.sessions.Create(ctx, claims.ID, user.ID, token.Hash(signed), s.codec.TTL(), meta)
	if err != nil {
		s.denied(ctx, ActionStorageFailed, user.ID, meta)
		metrics.LoginsTotal.WithLabelValues("storage_error").Inc()
		return nil, ErrDatabase.Wrap(err)
	}

	action := ActionUserLogin
	if isNew {
		action = ActionUserRegistered
	}
	s.audit.Record(ctx, AuditEntry{
		UserID:     user.ID,
		Action:     action,
		ResourceID: record.ID,
		AfterValues: map[string]any{
			"email":       user.Email,
			"is_new_user": isNew,
		},
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
	})
	metrics.LoginsTotal.WithLabelValues("success").Inc()

	if isNew {
		if err := s.notifier.SendWelcome(ctx, user); err != nil {
			s.log.Warn("welcome email failed", zap.String("user_id", user.ID), zap.Error(err))
			s.audit.Record(ctx, AuditEntry{
				UserID:    user.ID,
				Action:    ActionWelcomeEmailFailed,
				IPAddress: meta.IP,
				UserAgent: meta.UserAgent,
			})
		}
	}

	return &AuthResult{
		User:      user,
		Token:     signed,
		SessionID: record.ID,
		IsNewUser: isNew,
	}, nil
}

// ValidateSession verifies a presented token and returns the user, or
// nil when the request is simply not authenticated. Being logged out is
// a normal outcome, not an error, so nothing propagates to callers.
// When sessionID is non-empty the server-side record must also pass the
// validity rule (active, unexpired, fingerprint match).
func (s *Service) ValidateSession(ctx context.Context, tokenString, sessionID string, meta RequestMeta) *User {
	if tokenString == "" {
		return nil
	}

	claims, err := s.codec.Verify(tokenString)
	if err != nil {
		s.denied(ctx, ActionTokenRejected, "", meta)
		metrics.TokenRejections.Inc()
		return nil
	}

	user, err := s.users.FindByID(ctx, claims.Subject)
	if err != nil {
		s.log.Error("user lookup failed during validation", zap.Error(err))
		return nil
	}
	if user == nil || user.Status != UserStatusActive {
		// A valid token for a suspended or vanished account is still a
		// denial worth recording.
		s.denied(ctx, ActionTokenRejected, claims.Subject, meta)
		metrics.TokenRejections.Inc()
		return nil
	}

	if sessionID != "" {
		record, err := s.sessions.FindByID(ctx, sessionID)
		if err != nil {
			s.log.Error("session lookup failed during validation", zap.Error(err))
			return nil
		}
		if !record.Usable(token.Hash(tokenString), time.Now()) {
			s.denied(ctx, ActionTokenRejected, user.ID, meta)
			metrics.TokenRejections.Inc()
			return nil
		}
	}

	return user
}

// InvalidateSession revokes the session record behind a token and
// returns its id. Invalid or expired tokens are fine: logout always
// succeeds, there is just nothing to revoke.
func (s *Service) InvalidateSession(ctx context.Context, tokenString string, meta RequestMeta) string {
	if tokenString == "" {
		return ""
	}
	claims, err := s.codec.Verify(tokenString)
	if err != nil {
		return ""
	}

	if err := s.sessions.Invalidate(ctx, claims.ID); err != nil {
		s.log.Error("failed to invalidate session", zap.String("session_id", claims.ID), zap.Error(err))
		return ""
	}

	s.audit.Record(ctx, AuditEntry{
		UserID:     claims.Subject,
		Action:     ActionUserLogout,
		ResourceID: claims.ID,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	})
	metrics.SessionsInvalidated.Inc()
	return claims.ID
}

func (s *Service) denied(ctx context.Context, action, userID string, meta RequestMeta) {
	s.audit.Record(ctx, AuditEntry{
		UserID:    userID,
		Action:    action,
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
	})
}
