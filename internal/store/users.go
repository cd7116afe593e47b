package store

import (
	"context"
	"fmt"

	"shop-service/internal/models"
)

// CreateUser inserts a new user
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (username, full_name, email, address, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := s.insert(ctx, user, query,
		user.Username, user.FullName, user.Email, user.Address, user.Role)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// GetUserByID retrieves a user by ID
func (s *Store) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	if err := s.get(ctx, &user, "SELECT * FROM users WHERE id = $1", id); err != nil {
		return nil, fmt.Errorf("user %d: %w", id, err)
	}
	return &user, nil
}

// GetUserByUsername retrieves a user by username
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := s.get(ctx, &user, "SELECT * FROM users WHERE username = $1", username); err != nil {
		return nil, fmt.Errorf("user %q: %w", username, err)
	}
	return &user, nil
}

// ListUsers retrieves all users
func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := s.selectAll(ctx, &users, "SELECT * FROM users ORDER BY id")
	return users, err
}

// UpdateUser overwrites the mutable user columns
func (s *Store) UpdateUser(ctx context.Context, user *models.User) error {
	err := s.execAffecting(ctx,
		"UPDATE users SET full_name = $1, email = $2, address = $3, role = $4 WHERE id = $5",
		user.FullName, user.Email, user.Address, user.Role, user.ID)
	if err != nil {
		return fmt.Errorf("failed to update user %d: %w", user.ID, err)
	}
	return nil
}

// DeleteUser removes a user
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	if err := s.execAffecting(ctx, "DELETE FROM users WHERE id = $1", id); err != nil {
		return fmt.Errorf("failed to delete user %d: %w", id, err)
	}
	return nil
}
