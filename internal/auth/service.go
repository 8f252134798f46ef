package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/storebridge/storebridge/internal/shared"
)

// ErrUnknownAdmin is returned by a Directory for unknown usernames.
var ErrUnknownAdmin = errors.New("unknown admin")

// Service wraps authentication rules for the admin API.
type Service struct {
	admins  Directory
	apiKeys [][32]byte
}

// NewService constructs a new Service. Blank API keys are ignored.
func NewService(admins Directory, apiKeys []string) *Service {
	s := &Service{admins: admins}
	for _, key := range apiKeys {
		if key = strings.TrimSpace(key); key != "" {
			s.apiKeys = append(s.apiKeys, sha256.Sum256([]byte(key)))
		}
	}
	return s
}

// Authenticate validates username/password credentials.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*Admin, error) {
	admin, err := s.admins.FindByUsername(ctx, username)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return admin, nil
}

// VerifyAPIKey reports whether key matches a configured API key.
func (s *Service) VerifyAPIKey(key string) bool {
	if key == "" {
		return false
	}
	sum := sha256.Sum256([]byte(key))
	match := 0
	for _, candidate := range s.apiKeys {
		match |= subtle.ConstantTimeCompare(sum[:], candidate[:])
	}
	return match == 1
}

// Principal returns the identity string recorded for an API key caller.
func Principal(key string) string {
	if len(key) > 6 {
		key = key[:6]
	}
	return "apikey:" + key
}
