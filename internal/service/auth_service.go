package service

import (
	"appcc_edu_backend/internal/config"
	"appcc_edu_backend/internal/model"
	"appcc_edu_backend/internal/repository"
	"appcc_edu_backend/internal/util"
	"appcc_edu_backend/pkg/logger"
	"context"
	"errors"
	"net/mail"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type AuthService struct {
	UserRepo    *repository.UserRepository
	CompanyRepo *repository.CompanyRepository
	Policy      *AccessPolicy
	Cfg         *config.Config
}

func NewAuthService(userRepo *repository.UserRepository, companyRepo *repository.CompanyRepository, policy *AccessPolicy, cfg *config.Config) *AuthService {
	return &AuthService{
		UserRepo:    userRepo,
		CompanyRepo: companyRepo,
		Policy:      policy,
		Cfg:         cfg,
	}
}

type RegisterInput struct {
	CompanyID uint   `json:"companyId"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

type CreateUserInput struct {
	Name     string         `json:"name"`
	Email    string         `json:"email"`
	Password string         `json:"password"`
	Role     model.UserRole `json:"role"`
}

func validateCredentials(name, email, password string) *util.ValidationError {
	verr := &util.ValidationError{}
	if strings.TrimSpace(name) == "" {
		verr.Add("name", "required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		verr.Add("email", "invalid email address")
	}
	if len(password) < 8 {
		verr.Add("password", "must be at least 8 characters")
	}
	return verr
}

// Register 在已有公司下注册学员账号
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	verr := validateCredentials(in.Name, in.Email, in.Password)
	if in.CompanyID == 0 {
		verr.Add("companyId", "required")
	}
	if verr.HasErrors() {
		return nil, verr
	}
	if _, err := s.CompanyRepo.FindByID(in.CompanyID); err != nil {
		if errors.Is(err, util.ErrNotFound) {
			return nil, util.ErrCompanyNotFound
		}
		return nil, err
	}
	return s.createUser(in.CompanyID, in.Name, in.Email, in.Password, model.RoleLearner)
}

// CreateUser 管理员在本公司内创建用户
func (s *AuthService) CreateUser(ctx context.Context, actor Actor, in CreateUserInput) (*model.User, error) {
	if err := s.Policy.CanAuthor(actor, actor.CompanyID); err != nil {
		return nil, err
	}
	if in.Role == "" {
		in.Role = model.RoleLearner
	}
	verr := validateCredentials(in.Name, in.Email, in.Password)
	if !in.Role.Valid() {
		verr.Add("role", "must be admin or learner")
	}
	if verr.HasErrors() {
		return nil, verr
	}
	return s.createUser(actor.CompanyID, in.Name, in.Email, in.Password, in.Role)
}

func (s *AuthService) createUser(companyID uint, name, email, password string, role model.UserRole) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := s.UserRepo.FindByEmail(email); err == nil {
		return nil, util.ErrEmailRegistered
	} else if !errors.Is(err, util.ErrNotFound) {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := &model.User{
		CompanyID: companyID,
		Name:      strings.TrimSpace(name),
		Email:     email,
		Password:  string(hashedPassword),
		Role:      role,
	}
	if err := s.UserRepo.Create(user); err != nil {
		if repository.IsDuplicate(err) {
			return nil, util.ErrEmailRegistered
		}
		return nil, err
	}
	logger.Log.Info("User created",
		zap.Uint("user_id", user.ID),
		zap.Uint("company_id", companyID),
		zap.String("role", string(role)))
	return user, nil
}

// Login 校验密码并签发 JWT
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *model.User, error) {
	user, err := s.UserRepo.FindByEmail(strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			return "", nil, util.ErrInvalidCredentials
		}
		return "", nil, err
	}
	if user.Disabled {
		return "", nil, util.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", nil, util.ErrInvalidCredentials
	}

	token, err := util.GenerateJWT(user, s.Cfg.JWT.Secret, s.Cfg.JWT.ExpireTime)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

func (s *AuthService) GetCurrentUser(ctx context.Context, actor Actor) (*model.User, error) {
	if actor.UserID == 0 {
		return nil, util.ErrUnauthenticated
	}
	return s.UserRepo.FindByID(actor.UserID)
}

// ListUsers 管理员查看本公司用户
func (s *AuthService) ListUsers(ctx context.Context, actor Actor) ([]model.User, error) {
	if err := s.Policy.CanAuthor(actor, actor.CompanyID); err != nil {
		return nil, err
	}
	return s.UserRepo.ListByCompany(actor.CompanyID)
}
