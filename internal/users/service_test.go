package users

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	pkgauth "github.com/avalencia/storefront-backend/pkg/auth"
	"github.com/avalencia/storefront-backend/pkg/config"
	"github.com/avalencia/storefront-backend/pkg/db/models"
	"github.com/avalencia/storefront-backend/pkg/enums"
	pkgerrors "github.com/avalencia/storefront-backend/pkg/errors"
)

func testPasswordConfig() config.PasswordConfig {
	// Small argon parameters keep the suite fast.
	return config.PasswordConfig{
		ArgonMemoryKB:    1024,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	}
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "unit-test-secret",
		Issuer:            "storefront-test",
		ExpirationMinutes: 60,
	}
}

func newUsersTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:users_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(&models.User{}, &models.UserAddress{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func newUsersService(t *testing.T, repo Repository) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:           repo,
		PasswordConfig: testPasswordConfig(),
		JWTConfig:      testJWTConfig(),
	})
	require.NoError(t, err)
	return svc
}

// conflictRepo simulates the postgres unique-constraint error on insert.
type conflictRepo struct {
	Repository
}

func (r conflictRepo) Create(ctx context.Context, user *models.User) error {
	return errors.New(`duplicate key value violates unique constraint "ux_users_email"`)
}

func TestRegisterIssuesToken(t *testing.T) {
	t.Parallel()

	conn := newUsersTestDB(t)
	svc := newUsersService(t, NewRepository(conn))

	resp, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "  Shopper@Example.COM ",
		Password: "correct-horse",
		FullName: "  Dana Reyes ",
	})
	require.NoError(t, err)

	assert.Equal(t, "shopper@example.com", resp.User.Email)
	assert.Equal(t, "Dana Reyes", resp.User.FullName)
	assert.Equal(t, enums.UserRoleCustomer, resp.User.Role)

	claims, err := pkgauth.ParseAccessToken(testJWTConfig(), resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)
	assert.Equal(t, enums.UserRoleCustomer, claims.Role)

	var stored models.User
	require.NoError(t, conn.Where("email = ?", "shopper@example.com").First(&stored).Error)
	assert.NotEqual(t, "correct-horse", stored.PasswordHash, "password must never be stored in the clear")
}

func TestRegisterValidation(t *testing.T) {
	t.Parallel()

	conn := newUsersTestDB(t)
	svc := newUsersService(t, NewRepository(conn))

	cases := []struct {
		name string
		req  RegisterRequest
	}{
		{"missing email", RegisterRequest{Password: "correct-horse", FullName: "Dana"}},
		{"missing name", RegisterRequest{Email: "a@b.com", Password: "correct-horse"}},
		{"short password", RegisterRequest{Email: "a@b.com", Password: "short", FullName: "Dana"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tc.req)
			typed := pkgerrors.As(err)
			require.NotNil(t, typed)
			assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
		})
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	t.Parallel()

	conn := newUsersTestDB(t)
	svc := newUsersService(t, conflictRepo{NewRepository(conn)})

	_, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "shopper@example.com",
		Password: "correct-horse",
		FullName: "Dana Reyes",
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeConflict, typed.Code())
	assert.Equal(t, "email already registered", typed.Message())
}

func TestLogin(t *testing.T) {
	t.Parallel()

	conn := newUsersTestDB(t)
	svc := newUsersService(t, NewRepository(conn))

	_, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "shopper@example.com",
		Password: "correct-horse",
		FullName: "Dana Reyes",
	})
	require.NoError(t, err)

	resp, err := svc.Login(context.Background(), LoginRequest{
		Email:    "shopper@example.com",
		Password: "correct-horse",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Login(context.Background(), LoginRequest{
			Email:    "shopper@example.com",
			Password: "wrong-horse",
		})
		typed := pkgerrors.As(err)
		require.NotNil(t, typed)
		assert.Equal(t, pkgerrors.CodeUnauthorized, typed.Code())
		assert.Equal(t, "invalid credentials", typed.Message())
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := svc.Login(context.Background(), LoginRequest{
			Email:    "nobody@example.com",
			Password: "correct-horse",
		})
		typed := pkgerrors.As(err)
		require.NotNil(t, typed)
		assert.Equal(t, pkgerrors.CodeUnauthorized, typed.Code())
		assert.Equal(t, "invalid credentials", typed.Message(),
			"unknown accounts and bad passwords must be indistinguishable")
	})
}

func TestAddressLifecycle(t *testing.T) {
	t.Parallel()

	conn := newUsersTestDB(t)
	svc := newUsersService(t, NewRepository(conn))
	userID := uuid.New()

	_, err := svc.AddAddress(context.Background(), userID, CreateAddressRequest{
		Label: "home",
		Line1: "12 Pier Way",
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())

	created, err := svc.AddAddress(context.Background(), userID, CreateAddressRequest{
		Label:     "home",
		Line1:     "12 Pier Way",
		City:      "Alameda",
		State:     "CA",
		Zip:       "94501",
		Country:   "US",
		IsDefault: true,
	})
	require.NoError(t, err)
	assert.True(t, created.IsDefault)
	assert.Equal(t, "Alameda", created.Address.City)

	listed, err := svc.ListAddresses(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	err = svc.DeleteAddress(context.Background(), userID, uuid.New())
	typed = pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())

	require.NoError(t, svc.DeleteAddress(context.Background(), userID, created.ID))
	listed, err = svc.ListAddresses(context.Background(), userID)
	require.NoError(t, err)
	assert.Empty(t, listed)
}
