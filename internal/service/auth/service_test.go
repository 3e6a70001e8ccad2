package auth_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"bhabhi-service/internal/config"
	"bhabhi-service/internal/model"
	"bhabhi-service/internal/service/auth"
	pkgAuth "bhabhi-service/pkg/auth"
	appErr "bhabhi-service/pkg/errors"
	"bhabhi-service/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	logger.Log = zap.NewNop()
	config.GlobalConfig = &config.Config{
		JWT: config.JWTConfig{Secret: "test-secret", Expire: 24},
	}
	os.Exit(m.Run())
}

func newService(t *testing.T) *auth.Service {
	t.Helper()

	// One shared in-memory DB per test so parallel pool connections see the
	// same tables without bleeding between tests.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&model.User{}); err != nil {
		t.Fatalf("failed to migrate users: %v", err)
	}
	return auth.NewService(db)
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	result, err := svc.Register(ctx, "ranjit", "Ranjit@Example.com", "secret123")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if result.Token == "" || result.User.ID == "" {
		t.Fatalf("expected token and user id, got %+v", result)
	}
	if result.User.Email != "ranjit@example.com" {
		t.Fatalf("expected lowercased email, got %s", result.User.Email)
	}

	claims, err := pkgAuth.ParseToken(result.Token)
	if err != nil {
		t.Fatalf("issued token does not parse: %v", err)
	}
	if claims.UserID != result.User.ID || claims.Username != "ranjit" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	login, err := svc.Login(ctx, "ranjit@example.com", "secret123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if login.User.ID != result.User.ID {
		t.Fatalf("login returned a different user: %s vs %s", login.User.ID, result.User.ID)
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	if _, err := svc.Register(ctx, "ranjit", "ranjit@example.com", "secret123"); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if _, err := svc.Register(ctx, "someone", "ranjit@example.com", "secret123"); !errors.Is(err, appErr.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	if _, err := svc.Register(ctx, "ranjit", "other@example.com", "secret123"); !errors.Is(err, appErr.ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestRegisterRejectsWeakInput(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	if _, err := svc.Register(ctx, "ranjit", "ranjit@example.com", "short"); !errors.Is(err, appErr.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for a short password, got %v", err)
	}
	if _, err := svc.Register(ctx, "  ", "blank@example.com", "secret123"); !errors.Is(err, appErr.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for a blank username, got %v", err)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	if _, err := svc.Register(ctx, "ranjit", "ranjit@example.com", "secret123"); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if _, err := svc.Login(ctx, "ranjit@example.com", "wrongpass"); !errors.Is(err, appErr.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Login(ctx, "nobody@example.com", "secret123"); !errors.Is(err, appErr.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}
