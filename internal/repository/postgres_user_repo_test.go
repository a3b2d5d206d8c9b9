package repository

import (
	"testing"
	"time"

	"github.com/hitoshi/taskdeck/internal/model"
)

// PostgresUserRepoがUserRepositoryインターフェースを満たすことを検証
func TestPostgresUserRepo_ImplementsInterface(t *testing.T) {
	var _ UserRepository = (*PostgresUserRepo)(nil)
}

// NewPostgresUserRepoが正しく初期化されることを検証
func TestNewPostgresUserRepo_Initializes(t *testing.T) {
	repo := NewPostgresUserRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// Userモデルのフィールドが正しく構築されることを検証
func TestPostgresUserRepo_UserModel_Fields(t *testing.T) {
	now := time.Now()
	user := &model.User{
		ID:           "user-id-1",
		Name:         "田中太郎",
		Email:        "tanaka@example.com",
		PasswordHash: "$2a$10$hash",
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if user.Email != "tanaka@example.com" {
		t.Errorf("user.Email = %q, want %q", user.Email, "tanaka@example.com")
	}
	if user.PasswordHash == "" {
		t.Error("user.PasswordHash should not be empty")
	}
}
