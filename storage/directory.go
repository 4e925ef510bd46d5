package storage

import (
	"fmt"

	"go.uber.org/zap"

	"portnavigator/models"
)

// Tier A keys for the mock user directory. The portal authenticates
// against a locally seeded user list rather than a real identity provider.
const (
	KeyUsers     = KeyPrefix + "users"
	KeyPasswords = KeyPrefix + "passwords"
)

// Users returns the full user directory.
func (s *Service) Users() []models.User {
	var users []models.User
	s.kv.Get(KeyUsers, &users)
	return users
}

// UserByID looks a user up by id, nil when absent.
func (s *Service) UserByID(userID string) *models.User {
	for _, u := range s.Users() {
		if u.UserID == userID {
			user := u
			return &user
		}
	}
	return nil
}

// UserByUsername looks a user up by username, nil when absent.
func (s *Service) UserByUsername(username string) *models.User {
	for _, u := range s.Users() {
		if u.Username == username {
			user := u
			return &user
		}
	}
	return nil
}

// UpsertUser inserts or replaces a directory entry.
func (s *Service) UpsertUser(user models.User) error {
	users := s.Users()
	replaced := false
	for i, u := range users {
		if u.UserID == user.UserID {
			users[i] = user
			replaced = true
			break
		}
	}
	if !replaced {
		users = append(users, user)
	}
	if err := s.kv.Set(KeyUsers, users); err != nil {
		return fmt.Errorf("failed to persist user directory: %w", err)
	}
	return nil
}

// DeleteUser removes a directory entry and its password hash. Owned
// requests and complaints are left in place: the data model enforces no
// cross-entity cascade.
func (s *Service) DeleteUser(userID string) error {
	users := s.Users()
	kept := users[:0]
	for _, u := range users {
		if u.UserID != userID {
			kept = append(kept, u)
		}
	}
	if err := s.kv.Set(KeyUsers, kept); err != nil {
		return fmt.Errorf("failed to persist user directory: %w", err)
	}

	hashes := s.passwordHashes()
	delete(hashes, userID)
	if err := s.kv.Set(KeyPasswords, hashes); err != nil {
		s.logger.Warn("failed to drop password hash", zap.String("user_id", userID), zap.Error(err))
	}
	return nil
}

func (s *Service) passwordHashes() map[string]string {
	hashes := make(map[string]string)
	s.kv.Get(KeyPasswords, &hashes)
	return hashes
}

// StorePasswordHash stores a password hash for a user.
func (s *Service) StorePasswordHash(userID, hash string) error {
	hashes := s.passwordHashes()
	hashes[userID] = hash
	if err := s.kv.Set(KeyPasswords, hashes); err != nil {
		return fmt.Errorf("failed to store password hash: %w", err)
	}
	return nil
}

// PasswordHash returns the stored hash for a user, or an error when the
// user has none.
func (s *Service) PasswordHash(userID string) (string, error) {
	hashes := s.passwordHashes()
	hash, ok := hashes[userID]
	if !ok {
		return "", fmt.Errorf("password hash not found for user: %s", userID)
	}
	return hash, nil
}
