package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"taskflow/models"
)

// TokenCodec issues and verifies bearer credentials.
type TokenCodec interface {
	Generate(userID uint) (string, error)
	Parse(token string) (uint, error)
}

type RegisterInput struct {
	Username     string
	Fullname     string
	Organization string
	Workmail     string
	Email        string
	Password     string
}

// AuthService is the identity resolver plus the account endpoints around it.
type AuthService struct {
	db     *gorm.DB
	tokens TokenCodec
	now    func() time.Time
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	username := strings.TrimSpace(in.Username)
	if email == "" || username == "" || in.Password == "" {
		return nil, invalidInput("username, email and password are required")
	}

	var existing int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("email = ? OR username = ?", email, username).
		Count(&existing).Error; err != nil {
		return nil, fmt.Errorf("failed to check user: %w", err)
	}
	if existing > 0 {
		return nil, conflict("user already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Fullname:     strings.TrimSpace(in.Fullname),
		Organization: strings.TrimSpace(in.Organization),
		Workmail:     strings.TrimSpace(in.Workmail),
		JoinedAt:     s.now(),
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, conflict("user already exists")
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return &user, nil
}

// Login checks credentials and returns a bearer token.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, newError(KindUnauthorized, "invalid credentials")
		}
		return "", nil, fmt.Errorf("failed to load user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", nil, newError(KindUnauthorized, "invalid credentials")
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return token, &user, nil
}

// Resolve maps a bearer credential to its user.
func (s *AuthService) Resolve(ctx context.Context, credential string) (*models.User, error) {
	userID, err := s.tokens.Parse(credential)
	if err != nil {
		return nil, newError(KindUnauthorized, "invalid or expired token")
	}
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(KindUnauthorized, "user not found")
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}

func (s *AuthService) GetUser(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		return nil, lookupErr(err, "user", userID)
	}
	return &user, nil
}

// ListUsers returns every account, used to pick invitees.
func (s *AuthService) ListUsers(ctx context.Context) ([]models.UserSummary, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Order("id").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	out := make([]models.UserSummary, 0, len(users))
	for i := range users {
		out = append(out, users[i].Summary())
	}
	return out, nil
}

func (s *AuthService) ChangePassword(ctx context.Context, caller *models.User, current, next string) error {
	if strings.TrimSpace(next) == "" {
		return invalidInput("new password is required")
	}
	if bcrypt.CompareHashAndPassword([]byte(caller.PasswordHash), []byte(current)) != nil {
		return newError(KindUnauthorized, "invalid credentials")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", caller.ID).
		Update("password_hash", string(hash)).Error; err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	caller.PasswordHash = string(hash)
	return nil
}
