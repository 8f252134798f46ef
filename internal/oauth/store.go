package oauth

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/oauth2"

	"github.com/storebridge/storebridge/internal/platform/filestore"
)

// Store persists a provider's token. Load returns nil, nil when no token
// has been stored yet.
type Store interface {
	Load(ctx context.Context) (*oauth2.Token, error)
	Save(ctx context.Context, tok *oauth2.Token) error
}

// FileStore keeps the token as JSON on disk, replacing it atomically.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a FileStore writing to path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load implements Store.
func (s *FileStore) Load(ctx context.Context) (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var tok oauth2.Token
	if err := filestore.ReadJSON(s.path, &tok); err != nil {
		if errors.Is(err, filestore.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, nil
	}
	return &tok, nil
}

// Save implements Store.
func (s *FileStore) Save(ctx context.Context, tok *oauth2.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return filestore.WriteJSON(s.path, tok, 0o600)
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu  sync.Mutex
	tok *oauth2.Token
}

// Load implements Store.
func (s *MemoryStore) Load(ctx context.Context) (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tok == nil {
		return nil, nil
	}
	cp := *s.tok
	return &cp, nil
}

// Save implements Store.
func (s *MemoryStore) Save(ctx context.Context, tok *oauth2.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *tok
	s.tok = &cp
	return nil
}
