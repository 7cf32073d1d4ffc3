// Package auth handles password credentials and JWT-based authentication.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/imagehost/service/internal/config"
	"github.com/imagehost/service/internal/user"
)

// ErrInvalidCredentials is returned when the identifier/password pair does not
// match a known account. Unknown user and wrong password are deliberately
// indistinguishable.
var ErrInvalidCredentials = errors.New("incorrect username or password")

// ErrInvalidToken is returned when a bearer token is malformed, expired, or
// signed with an unexpected key.
var ErrInvalidToken = errors.New("invalid or expired token")

// Service contains the business logic for registration and login.
type Service struct {
	userSvc *user.Service
	cfg     *config.Config
}

// NewService creates a new auth Service.
func NewService(userSvc *user.Service, cfg *config.Config) *Service {
	return &Service{userSvc: userSvc, cfg: cfg}
}

// Register creates a new user account with a bcrypt-hashed password.
// Username and email uniqueness violations surface as user.ErrUsernameTaken
// and user.ErrEmailTaken.
func (s *Service) Register(ctx context.Context, username, email, password string) (*user.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return s.userSvc.Create(ctx, username, email, string(hash))
}

// Login validates the identifier (username or email) and password and issues
// a JWT token for the matched account.
func (s *Service) Login(ctx context.Context, identifier, password string) (string, *user.User, error) {
	u, err := s.userSvc.GetByIdentifier(ctx, identifier)
	if err != nil {
		if s.userSvc.IsNotFound(err) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("look up user: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.IssueToken(u.ID)
	if err != nil {
		return "", nil, fmt.Errorf("issue token: %w", err)
	}
	return token, u, nil
}

// IssueToken creates a signed JWT whose subject is the user id.
func (s *Service) IssueToken(userID int64) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWTTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}

// DecodeToken verifies a bearer token and returns the embedded user id.
// Any parse, signature, or expiry failure yields ErrInvalidToken.
func (s *Service) DecodeToken(tokenString string) (int64, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return 0, ErrInvalidToken
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, ErrInvalidToken
	}
	return userID, nil
}
