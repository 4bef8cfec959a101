package auth

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/outreachlab/telegram-mailer-backend/internal/database/repository"
	"github.com/outreachlab/telegram-mailer-backend/internal/models"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type AuthService struct {
	userRepo       *repository.UserRepository
	jwtSecret      []byte
	accessTokenTTL time.Duration
}

func NewAuthService(db *gorm.DB) *AuthService {
	jwtSecret := []byte(os.Getenv("JWT_SECRET"))
	if len(jwtSecret) == 0 {
		jwtSecret = []byte("default-secret-key-change-in-production")
		logrus.Warn("JWT_SECRET is not set, using the insecure default")
	}

	accessTokenTTL := 24 * time.Hour
	if ttl := os.Getenv("ACCESS_TOKEN_TTL"); ttl != "" {
		if parsed, err := time.ParseDuration(ttl); err == nil {
			accessTokenTTL = parsed
		}
	}

	return &AuthService{
		userRepo:       repository.NewUserRepository(db),
		jwtSecret:      jwtSecret,
		accessTokenTTL: accessTokenTTL,
	}
}

// Login authenticates an operator
func (s *AuthService) Login(req *models.LoginRequest) (*models.AuthResponse, error) {
	user, err := s.userRepo.GetByUsername(req.Username)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, errors.New("account is deactivated")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.generateAuthResponse(user)
}

// ValidateToken validates and parses a JWT token
func (s *AuthService) ValidateToken(tokenString string) (*models.TokenInfo, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	user, err := s.userRepo.GetByID(claims.UserID)
	if err != nil {
		return nil, errors.New("user not found")
	}
	if !user.IsActive {
		return nil, errors.New("account is deactivated")
	}

	return &models.TokenInfo{
		UserID:    claims.UserID,
		Username:  claims.Username,
		IsAdmin:   user.IsAdmin,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// GetUser loads a user by id
func (s *AuthService) GetUser(userID uint) (*models.User, error) {
	return s.userRepo.GetByID(userID)
}

// EnsureAdminUser creates the bootstrap admin operator from the environment
// on first start. It is a no-op when the username already exists or the
// credentials are not configured.
func (s *AuthService) EnsureAdminUser() error {
	username := os.Getenv("ADMIN_USERNAME")
	password := os.Getenv("ADMIN_PASSWORD")
	if username == "" || password == "" {
		logrus.Warn("ADMIN_USERNAME/ADMIN_PASSWORD not set, skipping admin bootstrap")
		return nil
	}

	exists, err := s.userRepo.CheckUsernameExists(username)
	if err != nil {
		return fmt.Errorf("failed to check admin username: %w", err)
	}
	if exists {
		return nil
	}

	var telegramID int64
	if raw := os.Getenv("ADMIN_TELEGRAM_ID"); raw != "" {
		if parsed, perr := strconv.ParseInt(raw, 10, 64); perr == nil {
			telegramID = parsed
		} else {
			logrus.Warnf("Invalid ADMIN_TELEGRAM_ID %q: %v", raw, perr)
		}
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	user := &models.User{
		Username:     username,
		PasswordHash: string(hashedPassword),
		TelegramID:   telegramID,
		IsActive:     true,
		IsAdmin:      true,
	}
	if err := s.userRepo.Create(user); err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	logrus.Infof("Bootstrap admin user %s created", username)
	return nil
}

// generateAuthResponse issues an access token for a user
func (s *AuthService) generateAuthResponse(user *models.User) (*models.AuthResponse, error) {
	now := time.Now()
	claims := &models.JWTClaims{
		UserID:   user.ID,
		Username: user.Username,
		IsAdmin:  user.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTokenTTL)),
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &models.AuthResponse{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.accessTokenTTL.Seconds()),
		User:        user.ToResponse(),
	}, nil
}
