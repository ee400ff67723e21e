package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jekmagalaman/gso/internal/config"
	"github.com/jekmagalaman/gso/internal/gso/entity"
	"github.com/jekmagalaman/gso/internal/gso/repository"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

const refreshKeyPrefix = "token:refresh:"

// ErrInvalidCredentials is returned for a wrong username or password.
var ErrInvalidCredentials = errors.New("invalid username or password")

// ErrInvalidToken is returned for a refresh token that is malformed, expired or revoked.
var ErrInvalidToken = errors.New("invalid or expired refresh token")

// AuthService issues and rotates JWTs for local accounts.
type AuthService struct {
	userRepo *repository.UserRepository
	rdb      *redis.Client
	cfg      config.JWTConfig
	now      func() time.Time
}

// NewAuthService creates the service. Without redis, refresh tokens are not
// tracked and cannot be revoked.
func NewAuthService(userRepo *repository.UserRepository, rdb *redis.Client, cfg config.JWTConfig) *AuthService {
	return &AuthService{userRepo: userRepo, rdb: rdb, cfg: cfg, now: time.Now}
}

// TokenPair is returned by Login and Refresh.
type TokenPair struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int64        `json:"expires_in"`
	User         *entity.User `json:"user,omitempty"`
}

// Login checks the password and issues a token pair.
func (s *AuthService) Login(ctx context.Context, username, password string) (*TokenPair, error) {
	user, err := s.userRepo.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	if !user.IsActive || user.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.generateTokenPair(ctx, user)
}

func (s *AuthService) generateTokenPair(ctx context.Context, user *entity.User) (*TokenPair, error) {
	now := s.now()
	unitID := ""
	if user.UnitID != nil {
		unitID = *user.UnitID
	}

	accessClaims := jwt.MapClaims{
		"sub":     user.ID,
		"uid":     user.ID,
		"name":    user.FullName(),
		"role":    string(user.Role),
		"unit_id": unitID,
		"iss":     s.cfg.Issuer,
		"iat":     now.Unix(),
		"exp":     now.Add(s.cfg.AccessTokenExpire).Unix(),
		"jti":     uuid.New().String(),
	}
	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refreshJti := uuid.New().String()
	refreshClaims := jwt.MapClaims{
		"sub":  user.ID,
		"type": "refresh",
		"iss":  s.cfg.Issuer,
		"iat":  now.Unix(),
		"exp":  now.Add(s.cfg.RefreshTokenExpire).Unix(),
		"jti":  refreshJti,
	}
	refreshToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	if s.rdb != nil {
		if err := s.rdb.Set(ctx, refreshKeyPrefix+refreshJti, user.ID, s.cfg.RefreshTokenExpire).Err(); err != nil {
			return nil, fmt.Errorf("store refresh token: %w", err)
		}
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.cfg.AccessTokenExpire.Seconds()),
		User:         user,
	}, nil
}

// parseRefresh validates a refresh token and returns its subject and jti.
func (s *AuthService) parseRefresh(tokenString string) (string, string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(s.cfg.Secret), nil
	})
	if err != nil {
		return "", "", ErrInvalidToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid || claims["type"] != "refresh" {
		return "", "", ErrInvalidToken
	}
	sub, _ := claims["sub"].(string)
	jti, _ := claims["jti"].(string)
	if sub == "" || jti == "" {
		return "", "", ErrInvalidToken
	}
	return sub, jti, nil
}

// Refresh rotates a refresh token. The old token stops working.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	userID, jti, err := s.parseRefresh(refreshToken)
	if err != nil {
		return nil, err
	}
	if s.rdb != nil {
		stored, err := s.rdb.GetDel(ctx, refreshKeyPrefix+jti).Result()
		if err != nil || stored != userID {
			return nil, ErrInvalidToken
		}
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil || !user.IsActive {
		return nil, ErrInvalidToken
	}
	return s.generateTokenPair(ctx, user)
}

// Logout revokes a refresh token.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if s.rdb == nil || refreshToken == "" {
		return nil
	}
	_, jti, err := s.parseRefresh(refreshToken)
	if err != nil {
		return nil
	}
	if err := s.rdb.Del(ctx, refreshKeyPrefix+jti).Err(); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// Me returns the actor's account with unit and department.
func (s *AuthService) Me(ctx context.Context, actor Actor) (*entity.User, error) {
	user, err := s.userRepo.FindByID(ctx, actor.UserID)
	if err != nil {
		return nil, lookupErr(err, "user", actor.UserID)
	}
	return user, nil
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
