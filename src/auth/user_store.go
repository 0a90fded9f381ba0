package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	userKeyPrefix  = "user:"
	emailKeyPrefix = "user_email:"
)

// UserStore maps provider identities to internal user records. Email
// uniqueness is enforced with SETNX on the email index so two concurrent
// first logins for the same identity cannot both create a user.
type UserStore struct {
	client *redis.Client
}

func NewUserStore(client *redis.Client) *UserStore {
	return &UserStore{client: client}
}

// FindByID returns the user or nil when none exists.
func (u *UserStore) FindByID(ctx context.Context, id string) (*User, error) {
	data, err := u.client.Get(ctx, userKeyPrefix+id).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	var user User
	if err := json.Unmarshal([]byte(data), &user); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}
	return &user, nil
}

// FindByEmail returns the user or nil when none exists.
func (u *UserStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	id, err := u.client.Get(ctx, emailKeyPrefix+email).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user id: %w", err)
	}
	return u.FindByID(ctx, id)
}

// Upsert creates a user on first login and updates name, picture,
// verification flag and last login on every later one. ID, CreatedAt and
// Status are never touched on update. The returned bool reports whether
// the user was created by this call.
func (u *UserStore) Upsert(ctx context.Context, info *GoogleUserInfo) (*User, bool, error) {
	existing, err := u.FindByEmail(ctx, info.Email)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return u.update(ctx, existing, info)
	}

	now := time.Now().UTC()
	user := &User{
		ID:            uuid.NewString(),
		Email:         info.Email,
		Name:          info.Name,
		Picture:       info.Picture,
		EmailVerified: info.VerifiedEmail,
		Status:        UserStatusActive,
		LastLoginAt:   &now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	// Claim the email index atomically. Losing the claim means a
	// concurrent request created the user first; retry as an update.
	ok, err := u.client.SetNX(ctx, emailKeyPrefix+user.Email, user.ID, 0).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to claim email index: %w", err)
	}
	if !ok {
		winner, err := u.FindByEmail(ctx, info.Email)
		if err != nil {
			return nil, false, err
		}
		if winner == nil {
			return nil, false, fmt.Errorf("email index points at missing user: %s", info.Email)
		}
		return u.update(ctx, winner, info)
	}

	if err := u.save(ctx, user); err != nil {
		return nil, false, err
	}
	return user, true, nil
}

func (u *UserStore) update(ctx context.Context, user *User, info *GoogleUserInfo) (*User, bool, error) {
	now := time.Now().UTC()
	user.Name = info.Name
	user.Picture = info.Picture
	user.EmailVerified = info.VerifiedEmail
	user.LastLoginAt = &now
	user.UpdatedAt = now

	if err := u.save(ctx, user); err != nil {
		return nil, false, err
	}
	return user, false, nil
}

func (u *UserStore) save(ctx context.Context, user *User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}
	if err := u.client.Set(ctx, userKeyPrefix+user.ID, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}
