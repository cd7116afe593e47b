package service

import (
	"context"
	"errors"
	"fmt"

	"shop-service/internal/models"
	"shop-service/internal/store"
	"shop-service/internal/util"

	"go.uber.org/zap"
)

const (
	msgUserNotFound   = "User not found"
	msgUsernameExists = "Username already exists"
)

// UserService handles user accounts
type UserService struct {
	repo   store.Repository
	logger *zap.Logger
}

// NewUserService creates a new user service
func NewUserService(repo store.Repository) *UserService {
	return &UserService{repo: repo, logger: util.GetLogger()}
}

// Create registers a new user. Usernames are unique.
func (s *UserService) Create(ctx context.Context, req *UserCreateRequest) (*UserResponse, error) {
	ctx, span := util.StartSpan(ctx, "UserService.Create")
	defer span.End()

	_, err := s.repo.GetUserByUsername(ctx, req.Username)
	if err == nil {
		return nil, BadRequest(msgUsernameExists)
	}
	if !errors.Is(err, store.ErrNotFound) {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to check username: %w", err)
	}

	role := req.Role
	if role == "" {
		role = models.UserRoleUser
	}

	user := &models.User{
		Username: req.Username,
		FullName: req.FullName,
		Email:    req.Email,
		Address:  req.Address,
		Role:     role,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, storeErr(err, "", "Username or email already exists", "")
	}

	s.logger.Info("User created", zap.Int64("user_id", user.ID), zap.String("username", user.Username))
	resp := toUserResponse(user)
	return &resp, nil
}

// Get returns a user by id
func (s *UserService) Get(ctx context.Context, id int64) (*UserResponse, error) {
	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, msgUserNotFound, "", "")
	}
	resp := toUserResponse(user)
	return &resp, nil
}

// GetAll returns every user
func (s *UserService) GetAll(ctx context.Context) ([]UserResponse, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	resp := make([]UserResponse, 0, len(users))
	for i := range users {
		resp = append(resp, toUserResponse(&users[i]))
	}
	return resp, nil
}

// Update applies the non-nil fields of req
func (s *UserService) Update(ctx context.Context, id int64, req *UserUpdateRequest) (*UserResponse, error) {
	ctx, span := util.StartSpan(ctx, "UserService.Update")
	defer span.End()

	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, msgUserNotFound, "", "")
	}

	if req.FullName != nil {
		user.FullName = *req.FullName
	}
	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.Address != nil {
		user.Address = req.Address
	}
	if req.Role != nil {
		user.Role = *req.Role
	}

	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return nil, storeErr(err, msgUserNotFound, "Email already exists", "")
	}
	resp := toUserResponse(user)
	return &resp, nil
}

// Delete removes a user that has no orders
func (s *UserService) Delete(ctx context.Context, id int64) error {
	err := s.repo.DeleteUser(ctx, id)
	if err != nil {
		return storeErr(err, msgUserNotFound, "", "User has orders and cannot be deleted")
	}
	s.logger.Info("User deleted", zap.Int64("user_id", id))
	return nil
}
