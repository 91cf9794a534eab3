package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/d60-Lab/newsfeed/internal/model"
	"github.com/d60-Lab/newsfeed/internal/repository"
)

var ErrInvalidCredentials = errors.New("invalid username or password")

// UserService 用户注册/登录与删号
type UserService struct {
	users     repository.UserRepository
	posts     *PostService
	jwtSecret []byte
	jwtExpire time.Duration
}

func NewUserService(users repository.UserRepository, posts *PostService, jwtSecret string, jwtExpire time.Duration) *UserService {
	if jwtExpire <= 0 {
		jwtExpire = 24 * time.Hour
	}
	return &UserService{users: users, posts: posts, jwtSecret: []byte(jwtSecret), jwtExpire: jwtExpire}
}

func (s *UserService) Register(ctx context.Context, username, email, password string, age int) (*model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &model.User{ID: uuid.New().String(), Username: username, Email: email, Password: string(hash), Age: age}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Login 校验密码并签发 HS256 JWT
func (s *UserService) Login(ctx context.Context, username, password string) (string, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return "", ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) != nil {
		return "", ErrInvalidCredentials
	}
	claims := jwt.RegisteredClaims{
		Subject:   u.ID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.jwtExpire)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}

func (s *UserService) GetByID(ctx context.Context, id string) (*model.User, error) {
	return s.users.GetByID(ctx, id)
}

// Delete 删号：连带删除该用户全部帖子（含各信息流清理）
func (s *UserService) Delete(ctx context.Context, id string) error {
	if err := s.posts.DeleteByAuthor(ctx, id); err != nil {
		return err
	}
	return s.users.Delete(ctx, id)
}
