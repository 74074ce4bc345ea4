package auth

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tdnguyen-dev/evswap-station/internal/common/errors"
	"github.com/tdnguyen-dev/evswap-station/internal/common/jwt"
	"github.com/tdnguyen-dev/evswap-station/internal/models"
	"github.com/tdnguyen-dev/evswap-station/internal/repository"
	"github.com/tdnguyen-dev/evswap-station/pkg/sms"
)

const testPhone = "0912345678"

type testEnv struct {
	svc   *AuthService
	redis *miniredis.Miniredis
	sms   *sms.MockSender
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	redisClient := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}))

	jwtManager := jwt.NewManager(&jwt.Config{
		Secret:            "test-secret",
		AccessExpireTime:  time.Hour,
		RefreshExpireTime: 24 * time.Hour,
		Issuer:            "evswap-test",
	})

	sender := sms.NewMockSender()
	svc := NewAuthService(repository.NewUserRepository(db), jwtManager, redisClient, sender, 4)

	return &testEnv{svc: svc, redis: mr, sms: sender}
}

// seedCode plants a verification code directly in the cache.
func (e *testEnv) seedCode(t *testing.T, phone, code string) {
	t.Helper()
	require.NoError(t, e.redis.Set("verify_code:"+phone, code))
}

func registerUser(t *testing.T, env *testEnv) *UserInfo {
	t.Helper()
	env.seedCode(t, testPhone, "123456")
	user, err := env.svc.Register(context.Background(), &RegisterRequest{
		Phone:    testPhone,
		Password: "secret123",
		FullName: "Nguyen Van A",
		Code:     "123456",
	})
	require.NoError(t, err)
	return user
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t)

	user := registerUser(t, env)
	assert.Equal(t, testPhone, user.Phone)
	assert.Equal(t, jwt.RoleDriver, user.Role)

	// the code is single use
	_, err := env.svc.Register(context.Background(), &RegisterRequest{
		Phone:    "0987654321",
		Password: "secret123",
		FullName: "Nguyen Van B",
		Code:     "123456",
	})
	assert.True(t, errors.Is(err, errors.ErrInvalidParams))
}

func TestRegisterRejectsWrongCode(t *testing.T) {
	env := newTestEnv(t)
	env.seedCode(t, testPhone, "123456")

	_, err := env.svc.Register(context.Background(), &RegisterRequest{
		Phone:    testPhone,
		Password: "secret123",
		FullName: "Nguyen Van A",
		Code:     "000000",
	})
	assert.True(t, errors.Is(err, errors.ErrInvalidParams))
}

func TestRegisterRejectsInvalidPhone(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Register(context.Background(), &RegisterRequest{
		Phone:    "12345",
		Password: "secret123",
		FullName: "Nguyen Van A",
		Code:     "123456",
	})
	assert.True(t, errors.Is(err, errors.ErrInvalidParams))
}

func TestRegisterRejectsDuplicatePhone(t *testing.T) {
	env := newTestEnv(t)
	registerUser(t, env)

	env.seedCode(t, testPhone, "654321")
	_, err := env.svc.Register(context.Background(), &RegisterRequest{
		Phone:    testPhone,
		Password: "secret123",
		FullName: "Nguyen Van A",
		Code:     "654321",
	})
	assert.True(t, errors.Is(err, errors.ErrUserExists))
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	registerUser(t, env)

	result, err := env.svc.Login(context.Background(), &LoginRequest{Phone: testPhone, Password: "secret123"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token.AccessToken)
	assert.NotEmpty(t, result.Token.RefreshToken)
	assert.Equal(t, testPhone, result.User.Phone)

	// the session is stored for refresh
	stored, err := env.redis.Get(fmt.Sprintf("session:%d", result.User.ID))
	require.NoError(t, err)
	assert.Equal(t, result.Token.RefreshToken, stored)
}

func TestLoginWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	registerUser(t, env)

	_, err := env.svc.Login(context.Background(), &LoginRequest{Phone: testPhone, Password: "wrong"})
	assert.True(t, errors.Is(err, errors.ErrPasswordError))
}

func TestLoginUnknownPhoneSameError(t *testing.T) {
	env := newTestEnv(t)

	// unknown account and wrong password are indistinguishable
	_, err := env.svc.Login(context.Background(), &LoginRequest{Phone: "0900000000", Password: "whatever"})
	assert.True(t, errors.Is(err, errors.ErrPasswordError))
}

func TestSendVerifyCodeCooldown(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.svc.SendVerifyCode(ctx, testPhone))
	require.Len(t, env.sms.SentMessages, 1)
	assert.Equal(t, testPhone, env.sms.GetLastMessage().Phone)

	err := env.svc.SendVerifyCode(ctx, testPhone)
	assert.True(t, errors.Is(err, errors.ErrRateLimitExceed))

	// after the cooldown lapses a new code goes out
	env.redis.FastForward(61 * time.Second)
	require.NoError(t, env.svc.SendVerifyCode(ctx, testPhone))
	assert.Len(t, env.sms.SentMessages, 2)
}

func TestRefreshToken(t *testing.T) {
	env := newTestEnv(t)
	registerUser(t, env)
	ctx := context.Background()

	result, err := env.svc.Login(ctx, &LoginRequest{Phone: testPhone, Password: "secret123"})
	require.NoError(t, err)

	pair, err := env.svc.RefreshToken(ctx, result.Token.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)

	// the old refresh token is rotated out
	_, err = env.svc.RefreshToken(ctx, result.Token.RefreshToken)
	assert.True(t, errors.Is(err, errors.ErrTokenInvalid))
}

func TestRefreshTokenRejectsGarbage(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.RefreshToken(context.Background(), "not-a-token")
	assert.True(t, errors.Is(err, errors.ErrTokenInvalid))
}

func TestLogoutClearsSession(t *testing.T) {
	env := newTestEnv(t)
	registerUser(t, env)
	ctx := context.Background()

	result, err := env.svc.Login(ctx, &LoginRequest{Phone: testPhone, Password: "secret123"})
	require.NoError(t, err)
	userID := result.User.ID

	require.NoError(t, env.svc.StoreCoreToken(ctx, userID, "core-token-abc", time.Hour))
	require.NoError(t, env.svc.Logout(ctx, userID))

	assert.False(t, env.redis.Exists(fmt.Sprintf("session:%d", userID)))
	assert.False(t, env.redis.Exists(fmt.Sprintf("core_token:%d", userID)))
	assert.False(t, env.redis.Exists("core_token_re:core-token-abc"))

	_, err = env.svc.RefreshToken(ctx, result.Token.RefreshToken)
	assert.True(t, errors.Is(err, errors.ErrTokenInvalid))
}

func TestCoreTokenRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	assert.Empty(t, env.svc.CoreToken(ctx, 7))

	require.NoError(t, env.svc.StoreCoreToken(ctx, 7, "core-token-abc", time.Hour))
	assert.Equal(t, "core-token-abc", env.svc.CoreToken(ctx, 7))
}

func TestHandleCoreAuthExpired(t *testing.T) {
	env := newTestEnv(t)
	registerUser(t, env)
	ctx := context.Background()

	result, err := env.svc.Login(ctx, &LoginRequest{Phone: testPhone, Password: "secret123"})
	require.NoError(t, err)
	userID := result.User.ID

	require.NoError(t, env.svc.StoreCoreToken(ctx, userID, "core-token-abc", time.Hour))

	env.svc.HandleCoreAuthExpired(ctx, "core-token-abc")

	assert.Empty(t, env.svc.CoreToken(ctx, userID))
	assert.False(t, env.redis.Exists(fmt.Sprintf("session:%d", userID)))
}

func TestHandleCoreAuthExpiredUnknownToken(t *testing.T) {
	env := newTestEnv(t)

	// a token we never issued is ignored
	env.svc.HandleCoreAuthExpired(context.Background(), "stranger")
}

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv(t)
	user := registerUser(t, env)
	ctx := context.Background()

	updated, err := env.svc.UpdateProfile(ctx, user.ID, &UpdateProfileRequest{FullName: "Nguyen Van B"})
	require.NoError(t, err)
	assert.Equal(t, "Nguyen Van B", updated.FullName)

	// empty fields leave the current values alone
	updated, err = env.svc.UpdateProfile(ctx, user.ID, &UpdateProfileRequest{Avatar: "https://cdn.example.com/a.png"})
	require.NoError(t, err)
	assert.Equal(t, "Nguyen Van B", updated.FullName)
	assert.Equal(t, "https://cdn.example.com/a.png", updated.Avatar)
}

func TestGetProfileNotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.GetProfile(context.Background(), 9999)
	assert.True(t, errors.Is(err, errors.ErrUserNotFound))
}
