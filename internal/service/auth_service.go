package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/andymarrow/stark-api/internal/model"
	"github.com/andymarrow/stark-api/internal/repository"
	"github.com/andymarrow/stark-api/pkg/auth"
)

// AuthService handles authentication business logic
type AuthService struct {
	userRepo   *repository.UserRepository
	jwtManager *auth.JWTManager
	rdb        *redis.Client
}

func NewAuthService(userRepo *repository.UserRepository, jwtManager *auth.JWTManager, rdb *redis.Client) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		jwtManager: jwtManager,
		rdb:        rdb,
	}
}

// Register creates a new user account and logs it in
func (s *AuthService) Register(req model.RegisterRequest) (*model.LoginResponse, error) {
	if _, err := s.userRepo.FindByEmail(req.Email); err == nil {
		return nil, errors.New("email already registered")
	}
	if _, err := s.userRepo.FindByUsername(req.Username); err == nil {
		return nil, errors.New("username already taken")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.New("failed to hash password")
	}

	user := &model.User{
		Username: req.Username,
		Name:     req.Name,
		Email:    req.Email,
		Password: string(hashedPassword),
	}
	if err := s.userRepo.Create(user); err != nil {
		return nil, errors.New("failed to create user")
	}

	token, err := s.jwtManager.GenerateToken(user.ID, user.Email, user.Name)
	if err != nil {
		return nil, errors.New("failed to generate token")
	}

	return &model.LoginResponse{
		Token: token,
		User:  user.ToResponse(),
	}, nil
}

// Login verifies credentials and issues a JWT
func (s *AuthService) Login(req model.LoginRequest) (*model.LoginResponse, error) {
	user, err := s.userRepo.FindByEmail(req.Email)
	if err != nil {
		return nil, errors.New("invalid email or password")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, errors.New("invalid email or password")
	}

	token, err := s.jwtManager.GenerateToken(user.ID, user.Email, user.Name)
	if err != nil {
		return nil, errors.New("failed to generate token")
	}

	return &model.LoginResponse{
		Token: token,
		User:  user.ToResponse(),
	}, nil
}

// Logout blacklists the token in Redis until it would have expired anyway
func (s *AuthService) Logout(ctx context.Context, tokenString string) error {
	claims, err := s.jwtManager.ValidateToken(tokenString)
	if err != nil {
		// Already invalid, nothing to revoke
		return nil
	}

	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}
	return s.rdb.Set(ctx, "blacklist:"+tokenString, "1", ttl).Err()
}

// GetProfile returns the user's own profile
func (s *AuthService) GetProfile(userID uuid.UUID) (*model.UserResponse, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return nil, ErrNotFound
	}
	resp := user.ToResponse()
	return &resp, nil
}

// UpdateProfile updates the user's name, avatar and bio
func (s *AuthService) UpdateProfile(userID uuid.UUID, req model.UpdateProfileRequest) (*model.UserResponse, error) {
	if err := s.userRepo.UpdateProfile(userID, req.Name, req.Avatar, req.Bio); err != nil {
		return nil, err
	}
	return s.GetProfile(userID)
}

// RegisterDevice stores an FCM token for push notifications
func (s *AuthService) RegisterDevice(userID uuid.UUID, req model.RegisterDeviceRequest) error {
	return s.userRepo.AddDevice(userID, req.FCMToken, req.DeviceType)
}

// SearchUsers finds users by username or name, hiding anyone in a
// block relation with the caller.
func (s *AuthService) SearchUsers(query string, callerID uuid.UUID, limit int) ([]model.UserResponse, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	users, err := s.userRepo.Search(query, callerID, limit)
	if err != nil {
		return nil, err
	}
	result := make([]model.UserResponse, 0, len(users))
	for i := range users {
		result = append(result, users[i].ToResponse())
	}
	return result, nil
}
