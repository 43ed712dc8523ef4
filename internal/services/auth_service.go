package services

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/squadup/squadup/internal/models"
	"github.com/squadup/squadup/internal/repositories"
	"github.com/squadup/squadup/internal/utils"
	pkgutils "github.com/squadup/squadup/pkg/utils"
)

// AuthService 认证服务：账号落 postgres，实时档案落文档库
type AuthService struct {
	userRepo *repositories.UserRepository
	profiles *repositories.ProfileRepository
}

// NewAuthService 创建认证服务实例
func NewAuthService(userRepo *repositories.UserRepository, profiles *repositories.ProfileRepository) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		profiles: profiles,
	}
}

// RegisterRequest 注册请求
type RegisterRequest struct {
	Username   string `json:"username" binding:"required"`
	Email      string `json:"email" binding:"required"`
	Password   string `json:"password" binding:"required"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Gender     string `json:"gender"`
	Age        int    `json:"age"`
	SkillLevel int    `json:"skill_level"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse 认证响应
type AuthResponse struct {
	Token   string   `json:"token"`
	User    *UserDTO `json:"user"`
	Message string   `json:"message"`
}

// UserDTO 用户数据传输对象
type UserDTO struct {
	UID       string `json:"uid"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Verified  bool   `json:"verified"`
}

// Register 注册用户：建立 postgres 账号与文档库档案
func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error) {
	// 验证输入
	if !utils.ValidateUsername(req.Username) {
		return nil, errors.New("invalid username format")
	}
	if !utils.ValidateEmail(req.Email) {
		return nil, errors.New("invalid email format")
	}
	if !utils.ValidatePassword(req.Password) {
		return nil, errors.New("password too short")
	}

	// 检查用户名和邮箱是否已存在
	if _, err := s.userRepo.GetByUsername(req.Username); err == nil {
		return nil, errors.New("username already exists")
	}
	if _, err := s.userRepo.GetByEmail(req.Email); err == nil {
		return nil, errors.New("email already exists")
	}

	// 密码哈希
	hashPassword, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	// 创建用户
	user := &models.User{
		UID:          uuid.New().String(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hashPassword,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		SkillLevel:   req.SkillLevel,
	}
	if err := s.userRepo.Create(user); err != nil {
		return nil, err
	}

	// 初始化实时档案
	profile := &models.Profile{
		UID:        user.UID,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Gender:     req.Gender,
		Age:        req.Age,
		SkillLevel: req.SkillLevel,
	}
	if err := s.profiles.Put(ctx, profile); err != nil {
		return nil, err
	}

	// 生成token
	token, err := pkgutils.GenerateToken(user.UID, user.Username, user.Email)
	if err != nil {
		return nil, err
	}

	return &AuthResponse{
		Token:   token,
		User:    userDTO(user),
		Message: "register success",
	}, nil
}

// Login 登录用户
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	user, err := s.userRepo.GetByUsername(req.Username)
	if err != nil {
		return nil, errors.New("username or password incorrect")
	}

	// 验证密码
	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		return nil, errors.New("username or password incorrect")
	}

	// 生成token
	token, err := pkgutils.GenerateToken(user.UID, user.Username, user.Email)
	if err != nil {
		return nil, err
	}

	return &AuthResponse{
		Token:   token,
		User:    userDTO(user),
		Message: "login success",
	}, nil
}

func userDTO(u *models.User) *UserDTO {
	return &UserDTO{
		UID:       u.UID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Verified:  u.Verified,
	}
}
