package services

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/contactsbook/apiserver/internal/cache"
	"github.com/contactsbook/apiserver/internal/storage"
	"github.com/contactsbook/apiserver/internal/store"
	"github.com/contactsbook/apiserver/types"
)

// AvatarStorage is the subset of object storage used for avatar uploads.
type AvatarStorage interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	URL(key string) string
}

// UserService encapsulates profile use-cases.
type UserService struct {
	users      UserDirectory
	storage    AvatarStorage
	identities *cache.IdentityCache
	logger     *slog.Logger
}

// NewUserService wires the profile service. identities may be nil.
func NewUserService(users UserDirectory, objects AvatarStorage, identities *cache.IdentityCache, logger *slog.Logger) *UserService {
	if logger == nil {
		logger = slog.Default()
	}
	if identities == nil {
		identities = cache.NewIdentityCache(nil)
	}
	return &UserService{users: users, storage: objects, identities: identities, logger: logger}
}

// UpdateAvatar uploads the image, points the user's avatar at it and drops
// the cached identity so the next request sees the new URL.
func (s *UserService) UpdateAvatar(ctx context.Context, user types.User, r io.Reader, size int64, contentType string) (types.User, error) {
	if s.storage == nil {
		return types.User{}, internal(errors.New("avatar storage is not configured"))
	}

	key := storage.AvatarKey(user.Username)
	if err := s.storage.Put(ctx, key, r, size, contentType); err != nil {
		s.logger.ErrorContext(ctx, "avatar upload failed", "user_id", user.ID, "error", err)
		return types.User{}, internal(err)
	}

	updated, err := s.users.SetAvatar(ctx, user.Email, s.storage.URL(key))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, unauthorized(MsgInvalidCredentials, err)
		}
		s.logger.ErrorContext(ctx, "avatar update failed", "user_id", user.ID, "error", err)
		return types.User{}, internal(err)
	}

	s.identities.Invalidate(ctx, user.Email)

	updated.PasswordHash = ""
	updated.RefreshToken = nil
	return updated, nil
}
