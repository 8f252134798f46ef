// Package notify keeps notification recipients and sends operational email
// about order and inventory sync runs.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/storebridge/storebridge/internal/platform/filestore"
	"github.com/storebridge/storebridge/internal/platform/httpx"
)

// Type is a notification category.
type Type string

const (
	TypeOrderSuccess     Type = "order_success"
	TypeOrderFailure     Type = "order_failure"
	TypeManualAction     Type = "manual_action"
	TypeInventorySummary Type = "inventory_summary"
	TypeStatusSync       Type = "status_sync"
)

// AllTypes lists every notification type.
var AllTypes = []Type{TypeOrderSuccess, TypeOrderFailure, TypeManualAction, TypeInventorySummary, TypeStatusSync}

// Valid reports whether t is a known type.
func (t Type) Valid() bool {
	for _, known := range AllTypes {
		if t == known {
			return true
		}
	}
	return false
}

var (
	ErrUnknownType        = fmt.Errorf("%w: unknown notification type", httpx.ErrValidation)
	ErrInvalidEmail       = fmt.Errorf("%w: invalid email address", httpx.ErrValidation)
	ErrRecipientNotFound  = fmt.Errorf("%w: recipient not configured", httpx.ErrNotFound)
	ErrProtectedRecipient = fmt.Errorf("%w: the default recipient cannot be removed or deactivated", httpx.ErrForbidden)
)

// Setting is one recipient of one notification type.
type Setting struct {
	Type   Type   `json:"type"`
	Email  string `json:"email"`
	Active bool   `json:"active"`
}

type recipientEntry struct {
	Email  string `json:"email"`
	Active bool   `json:"active"`
}

type settingsFile map[Type][]recipientEntry

// DefaultBackupLimit is how many settings backups a Store keeps.
const DefaultBackupLimit = 20

// Store keeps settings in a JSON file. A timestamped copy of the previous
// file is written before every change; only the newest copies are kept.
type Store struct {
	path             string
	defaultRecipient string
	keepBackups      int
	validate         *validator.Validate
	now              func() time.Time
	mu               sync.Mutex
}

// NewStore constructs a Store.
func NewStore(path, defaultRecipient string) *Store {
	return &Store{
		path:             path,
		defaultRecipient: normalizeEmail(defaultRecipient),
		keepBackups:      DefaultBackupLimit,
		validate:         validator.New(),
		now:              time.Now,
	}
}

// SetBackupLimit changes how many backups are kept; n <= 0 keeps all.
func (s *Store) SetBackupLimit(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keepBackups = n
}

// DefaultRecipient returns the protected recipient.
func (s *Store) DefaultRecipient() string {
	return s.defaultRecipient
}

// List returns every setting ordered by type then email.
func (s *Store) List(ctx context.Context) ([]Setting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	file, err := s.load()
	if err != nil {
		return nil, err
	}
	var out []Setting
	for _, t := range AllTypes {
		for _, r := range file[t] {
			out = append(out, Setting{Type: t, Email: r.Email, Active: r.Active})
		}
	}
	return out, nil
}

// Recipients returns the active addresses for t.
func (s *Store) Recipients(ctx context.Context, t Type) ([]string, error) {
	if !t.Valid() {
		return nil, ErrUnknownType
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	file, err := s.load()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, r := range file[t] {
		if r.Active {
			out = append(out, r.Email)
		}
	}
	return out, nil
}

// Add subscribes email to t. Adding an existing recipient reactivates it.
func (s *Store) Add(ctx context.Context, t Type, email string) error {
	return s.BulkAdd(ctx, email, []Type{t})
}

// BulkAdd subscribes email to every type in types.
func (s *Store) BulkAdd(ctx context.Context, email string, types []Type) error {
	email, err := s.checkEmail(email)
	if err != nil {
		return err
	}
	if len(types) == 0 {
		return ErrUnknownType
	}
	for _, t := range types {
		if !t.Valid() {
			return ErrUnknownType
		}
	}
	return s.mutate(func(file settingsFile) error {
		for _, t := range types {
			idx := indexOf(file[t], email)
			if idx >= 0 {
				file[t][idx].Active = true
				continue
			}
			file[t] = append(file[t], recipientEntry{Email: email, Active: true})
		}
		return nil
	})
}

// Remove unsubscribes email from t.
func (s *Store) Remove(ctx context.Context, t Type, email string) error {
	if !t.Valid() {
		return ErrUnknownType
	}
	email = normalizeEmail(email)
	if email == s.defaultRecipient {
		return ErrProtectedRecipient
	}
	return s.mutate(func(file settingsFile) error {
		idx := indexOf(file[t], email)
		if idx < 0 {
			return ErrRecipientNotFound
		}
		file[t] = append(file[t][:idx], file[t][idx+1:]...)
		return nil
	})
}

// SetActive toggles a recipient without removing it.
func (s *Store) SetActive(ctx context.Context, t Type, email string, active bool) error {
	if !t.Valid() {
		return ErrUnknownType
	}
	email = normalizeEmail(email)
	if email == s.defaultRecipient && !active {
		return ErrProtectedRecipient
	}
	return s.mutate(func(file settingsFile) error {
		idx := indexOf(file[t], email)
		if idx < 0 {
			return ErrRecipientNotFound
		}
		file[t][idx].Active = active
		return nil
	})
}

func (s *Store) mutate(fn func(settingsFile) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	file, err := s.load()
	if err != nil {
		return err
	}
	if err := fn(file); err != nil {
		return err
	}
	s.ensureDefault(file)
	if _, err := filestore.Backup(s.path, s.now()); err != nil {
		return fmt.Errorf("notify: backup settings: %w", err)
	}
	if err := filestore.WriteJSON(s.path, file, 0o640); err != nil {
		return fmt.Errorf("notify: write settings: %w", err)
	}
	if err := filestore.PruneBackups(s.path, s.keepBackups); err != nil {
		return fmt.Errorf("notify: prune backups: %w", err)
	}
	return nil
}

// load reads the file and applies the default-recipient invariant in memory.
func (s *Store) load() (settingsFile, error) {
	file := settingsFile{}
	if err := filestore.ReadJSON(s.path, &file); err != nil && !errors.Is(err, filestore.ErrNotExist) {
		return nil, fmt.Errorf("notify: read settings: %w", err)
	}
	for t, entries := range file {
		for i := range entries {
			entries[i].Email = normalizeEmail(entries[i].Email)
		}
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].Email < entries[j].Email })
		file[t] = entries
	}
	s.ensureDefault(file)
	return file, nil
}

func (s *Store) ensureDefault(file settingsFile) {
	if s.defaultRecipient == "" {
		return
	}
	for _, t := range AllTypes {
		idx := indexOf(file[t], s.defaultRecipient)
		if idx >= 0 {
			file[t][idx].Active = true
			continue
		}
		file[t] = append([]recipientEntry{{Email: s.defaultRecipient, Active: true}}, file[t]...)
	}
}

func (s *Store) checkEmail(email string) (string, error) {
	email = normalizeEmail(email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return "", ErrInvalidEmail
	}
	return email, nil
}

func indexOf(entries []recipientEntry, email string) int {
	for i, e := range entries {
		if e.Email == email {
			return i
		}
	}
	return -1
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
