// Package auth provides account and session management.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/tdnguyen-dev/evswap-station/internal/common/crypto"
	"github.com/tdnguyen-dev/evswap-station/internal/common/errors"
	"github.com/tdnguyen-dev/evswap-station/internal/common/jwt"
	"github.com/tdnguyen-dev/evswap-station/internal/common/logger"
	"github.com/tdnguyen-dev/evswap-station/internal/common/utils"
	"github.com/tdnguyen-dev/evswap-station/internal/models"
	"github.com/tdnguyen-dev/evswap-station/internal/repository"
	"github.com/tdnguyen-dev/evswap-station/pkg/sms"
)

// Session cache keys.
const (
	keySession     = "session:%d"        // user id -> refresh token
	keyCoreToken   = "core_token:%d"     // user id -> upstream bearer token
	keyCoreTokenRe = "core_token_re:%s"  // upstream token -> user id, for the 401 hook
	keyVerifyCode  = "verify_code:%s"    // phone -> code
	keyCodeCool    = "verify_cool:%s"    // phone -> send cooldown marker
)

// AuthService manages accounts and sessions.
type AuthService struct {
	userRepo   *repository.UserRepository
	jwtManager *jwt.Manager
	redis      *redis.Client
	smsSender  sms.Sender
	bcryptCost int
}

// NewAuthService creates an auth service.
func NewAuthService(
	userRepo *repository.UserRepository,
	jwtManager *jwt.Manager,
	redisClient *redis.Client,
	smsSender sms.Sender,
	bcryptCost int,
) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		jwtManager: jwtManager,
		redis:      redisClient,
		smsSender:  smsSender,
		bcryptCost: bcryptCost,
	}
}

// RegisterRequest is the driver registration payload.
type RegisterRequest struct {
	Phone    string `json:"phone" binding:"required"`
	Password string `json:"password" binding:"required,min=6"`
	FullName string `json:"full_name" binding:"required"`
	Code     string `json:"code" binding:"required"`
}

// LoginRequest is the password login payload.
type LoginRequest struct {
	Phone    string `json:"phone" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// UserInfo is the account view returned to clients.
type UserInfo struct {
	ID          int64      `json:"id"`
	Phone       string     `json:"phone"`
	FullName    string     `json:"full_name"`
	Avatar      string     `json:"avatar,omitempty"`
	Role        string     `json:"role"`
	StationID   string     `json:"station_id,omitempty"`
	PlanID      string     `json:"plan_id,omitempty"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// LoginResult is the login response.
type LoginResult struct {
	User  *UserInfo      `json:"user"`
	Token *jwt.TokenPair `json:"token"`
}

// Register creates a driver account after verifying the SMS code.
func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*UserInfo, error) {
	if !utils.ValidatePhone(req.Phone) {
		return nil, errors.ErrInvalidParams.WithMessage("invalid phone number")
	}
	if err := s.checkVerifyCode(ctx, req.Phone, req.Code); err != nil {
		return nil, err
	}

	if _, err := s.userRepo.GetByPhone(ctx, req.Phone); err == nil {
		return nil, errors.ErrUserExists
	} else if err != gorm.ErrRecordNotFound {
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	hash, err := crypto.HashPassword(req.Password, s.bcryptCost)
	if err != nil {
		return nil, errors.ErrInternalError.WithError(err)
	}

	user := &models.User{
		Phone:        req.Phone,
		PasswordHash: hash,
		FullName:     req.FullName,
		Role:         jwt.RoleDriver,
		Status:       models.UserStatusActive,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	logger.Info("user registered",
		logger.UserID(user.ID),
		logger.String("role", user.Role),
	)

	return s.toUserInfo(user), nil
}

// Login authenticates with phone and password.
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*LoginResult, error) {
	user, err := s.userRepo.GetByPhone(ctx, req.Phone)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrPasswordError
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	if user.Status == models.UserStatusDisabled {
		return nil, errors.ErrAccountDisabled
	}
	if !crypto.CheckPassword(req.Password, user.PasswordHash) {
		return nil, errors.ErrPasswordError
	}

	return s.issueSession(ctx, user)
}

// SendVerifyCode sends a registration/login code with a 60s cooldown.
func (s *AuthService) SendVerifyCode(ctx context.Context, phone string) error {
	if !utils.ValidatePhone(phone) {
		return errors.ErrInvalidParams.WithMessage("invalid phone number")
	}

	coolKey := fmt.Sprintf(keyCodeCool, phone)
	set, err := s.redis.SetNX(ctx, coolKey, "1", 60*time.Second).Result()
	if err != nil {
		return errors.ErrCacheError.WithError(err)
	}
	if !set {
		return errors.ErrRateLimitExceed.WithMessage("verification code already sent, please wait")
	}

	code := utils.GenerateRandomNumber(6)
	if err := s.redis.Set(ctx, fmt.Sprintf(keyVerifyCode, phone), code, 5*time.Minute).Err(); err != nil {
		return errors.ErrCacheError.WithError(err)
	}

	if err := s.smsSender.SendVerifyCode(ctx, phone, code); err != nil {
		logger.Error("failed to send verify code", logger.String("phone", phone), logger.Err(err))
		return errors.ErrOperationFailed.WithMessage("failed to send verification code")
	}
	return nil
}

// RefreshToken exchanges a valid refresh token for a new pair.
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*jwt.TokenPair, error) {
	claims, err := s.jwtManager.ParseToken(refreshToken)
	if err != nil {
		if err == jwt.ErrTokenExpired {
			return nil, errors.ErrTokenExpired
		}
		return nil, errors.ErrTokenInvalid
	}

	stored, err := s.redis.Get(ctx, fmt.Sprintf(keySession, claims.UserID)).Result()
	if err == redis.Nil || stored != refreshToken {
		return nil, errors.ErrTokenInvalid
	}
	if err != nil && err != redis.Nil {
		return nil, errors.ErrCacheError.WithError(err)
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, errors.ErrUserNotFound
	}
	if user.Status == models.UserStatusDisabled {
		return nil, errors.ErrAccountDisabled
	}

	pair, err := s.jwtManager.GenerateTokenPair(user.ID, user.Role, utils.SafeString(user.StationID))
	if err != nil {
		return nil, errors.ErrTokenRefreshFail.WithError(err)
	}
	if err := s.storeSession(ctx, user.ID, pair.RefreshToken); err != nil {
		return nil, err
	}
	return pair, nil
}

// Logout drops the session and the cached upstream token.
func (s *AuthService) Logout(ctx context.Context, userID int64) error {
	if token, err := s.redis.Get(ctx, fmt.Sprintf(keyCoreToken, userID)).Result(); err == nil {
		s.redis.Del(ctx, fmt.Sprintf(keyCoreTokenRe, token))
	}
	s.redis.Del(ctx, fmt.Sprintf(keySession, userID), fmt.Sprintf(keyCoreToken, userID))
	return nil
}

// GetProfile returns the account view.
func (s *AuthService) GetProfile(ctx context.Context, userID int64) (*UserInfo, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrUserNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return s.toUserInfo(user), nil
}

// UpdateProfileRequest is the profile update payload.
type UpdateProfileRequest struct {
	FullName string `json:"full_name"`
	Avatar   string `json:"avatar"`
}

// UpdateProfile updates mutable profile fields.
func (s *AuthService) UpdateProfile(ctx context.Context, userID int64, req *UpdateProfileRequest) (*UserInfo, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrUserNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	fields := map[string]interface{}{}
	if req.FullName != "" {
		fields["full_name"] = req.FullName
	}
	if req.Avatar != "" {
		fields["avatar"] = req.Avatar
	}
	if len(fields) > 0 {
		if err := s.userRepo.UpdateFields(ctx, userID, fields); err != nil {
			return nil, errors.ErrDatabaseError.WithError(err)
		}
	}

	return s.GetProfile(ctx, user.ID)
}

// CoreToken returns the cached upstream bearer token for a user. An empty
// string means the user has no upstream session and calls will fall back to
// the gateway service token.
func (s *AuthService) CoreToken(ctx context.Context, userID int64) string {
	token, err := s.redis.Get(ctx, fmt.Sprintf(keyCoreToken, userID)).Result()
	if err != nil {
		return ""
	}
	return token
}

// StoreCoreToken caches the upstream bearer token for a user.
func (s *AuthService) StoreCoreToken(ctx context.Context, userID int64, token string, ttl time.Duration) error {
	if err := s.redis.Set(ctx, fmt.Sprintf(keyCoreToken, userID), token, ttl).Err(); err != nil {
		return errors.ErrCacheError.WithError(err)
	}
	return s.redis.Set(ctx, fmt.Sprintf(keyCoreTokenRe, token), userID, ttl).Err()
}

// HandleCoreAuthExpired is the 401 hook wired into the core client. It clears
// every cached session key for the owner of the rejected token so the next
// request fails fast with an auth error instead of looping.
func (s *AuthService) HandleCoreAuthExpired(ctx context.Context, token string) {
	userID, err := s.redis.Get(ctx, fmt.Sprintf(keyCoreTokenRe, token)).Int64()
	if err != nil {
		return
	}
	logger.Warn("core platform session expired, clearing local session", logger.UserID(userID))
	s.redis.Del(ctx,
		fmt.Sprintf(keySession, userID),
		fmt.Sprintf(keyCoreToken, userID),
		fmt.Sprintf(keyCoreTokenRe, token),
	)
}

func (s *AuthService) issueSession(ctx context.Context, user *models.User) (*LoginResult, error) {
	pair, err := s.jwtManager.GenerateTokenPair(user.ID, user.Role, utils.SafeString(user.StationID))
	if err != nil {
		return nil, errors.ErrInternalError.WithError(err)
	}
	if err := s.storeSession(ctx, user.ID, pair.RefreshToken); err != nil {
		return nil, err
	}

	now := time.Now()
	if err := s.userRepo.UpdateFields(ctx, user.ID, map[string]interface{}{"last_login_at": now}); err != nil {
		logger.Warn("failed to record login time", logger.UserID(user.ID), logger.Err(err))
	}
	user.LastLoginAt = &now

	logger.Info("user logged in", logger.UserID(user.ID), logger.String("role", user.Role))

	return &LoginResult{
		User:  s.toUserInfo(user),
		Token: pair,
	}, nil
}

func (s *AuthService) storeSession(ctx context.Context, userID int64, refreshToken string) error {
	if err := s.redis.Set(ctx, fmt.Sprintf(keySession, userID), refreshToken, 7*24*time.Hour).Err(); err != nil {
		return errors.ErrCacheError.WithError(err)
	}
	return nil
}

func (s *AuthService) checkVerifyCode(ctx context.Context, phone, code string) error {
	key := fmt.Sprintf(keyVerifyCode, phone)
	stored, err := s.redis.Get(ctx, key).Result()
	if err == redis.Nil || stored != code {
		return errors.ErrInvalidParams.WithMessage("wrong or expired verification code")
	}
	if err != nil && err != redis.Nil {
		return errors.ErrCacheError.WithError(err)
	}
	s.redis.Del(ctx, key)
	return nil
}

func (s *AuthService) toUserInfo(user *models.User) *UserInfo {
	return &UserInfo{
		ID:          user.ID,
		Phone:       user.Phone,
		FullName:    user.FullName,
		Avatar:      utils.SafeString(user.Avatar),
		Role:        user.Role,
		StationID:   utils.SafeString(user.StationID),
		PlanID:      utils.SafeString(user.PlanID),
		LastLoginAt: user.LastLoginAt,
		CreatedAt:   user.CreatedAt,
	}
}
