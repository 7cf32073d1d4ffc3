package user

import (
	"context"
	"errors"
)

// Service contains business logic for user management.
type Service struct {
	repo Repository
}

// NewService creates a new user Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create registers a new user account with an already-hashed password.
func (s *Service) Create(ctx context.Context, username, email, passwordHash string) (*User, error) {
	return s.repo.Create(ctx, username, email, passwordHash)
}

// GetByID returns a user by their id.
func (s *Service) GetByID(ctx context.Context, id int64) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByIdentifier returns a user by username or email.
func (s *Service) GetByIdentifier(ctx context.Context, identifier string) (*User, error) {
	return s.repo.GetByIdentifier(ctx, identifier)
}

// List returns users newest-first with skip/limit pagination.
func (s *Service) List(ctx context.Context, skip, limit int) ([]*User, error) {
	return s.repo.List(ctx, skip, limit)
}

// IsNotFound returns true when the error indicates a user was not found.
func (s *Service) IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
