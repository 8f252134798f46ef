package auth

import "context"

// Admin is an operator allowed to use the admin API.
type Admin struct {
	Username     string
	PasswordHash string
}

// Directory resolves admins by username.
type Directory interface {
	FindByUsername(ctx context.Context, username string) (*Admin, error)
}

// StaticDirectory serves the single admin configured through the environment.
type StaticDirectory struct {
	admin Admin
}

// NewStaticDirectory returns a Directory holding one admin. An empty hash
// disables password login.
func NewStaticDirectory(username, passwordHash string) *StaticDirectory {
	return &StaticDirectory{admin: Admin{Username: username, PasswordHash: passwordHash}}
}

// FindByUsername implements Directory.
func (d *StaticDirectory) FindByUsername(_ context.Context, username string) (*Admin, error) {
	if d.admin.PasswordHash == "" || username != d.admin.Username {
		return nil, ErrUnknownAdmin
	}
	admin := d.admin
	return &admin, nil
}

var _ Directory = (*StaticDirectory)(nil)
