package store

import (
	"errors"
	"testing"

	"github.com/subhamsarangi/polymathscurse/internal/database"
)

func setupUserTestDB(t *testing.T) *UserStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewUserStore(db)
}

func TestUserCreateAndLookup(t *testing.T) {
	us := setupUserTestDB(t)

	user, err := us.Create("alice@example.com", "hash", "jti-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if user.Email != "alice@example.com" {
		t.Errorf("email = %q", user.Email)
	}

	byEmail, err := us.GetByEmail("alice@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if byEmail == nil || byEmail.ID != user.ID {
		t.Fatalf("by email = %+v, want id %d", byEmail, user.ID)
	}

	missing, err := us.GetByEmail("nobody@example.com")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for unknown email")
	}
}

func TestUserDuplicateEmail(t *testing.T) {
	us := setupUserTestDB(t)

	if _, err := us.Create("alice@example.com", "hash", "jti-1"); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := us.Create("alice@example.com", "hash2", "jti-2")
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestUserRefreshJTIRotation(t *testing.T) {
	us := setupUserTestDB(t)

	user, err := us.Create("alice@example.com", "hash", "jti-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := us.RotateRefreshJTI(user.ID, "jti-2"); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	got, err := us.GetByID(user.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.RefreshJTI == nil || *got.RefreshJTI != "jti-2" {
		t.Errorf("refresh_jti = %v, want jti-2", got.RefreshJTI)
	}

	if err := us.ClearRefreshJTI(user.ID); err != nil {
		t.Fatalf("clear: %v", err)
	}
	got, err = us.GetByID(user.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.RefreshJTI != nil {
		t.Errorf("refresh_jti = %v, want nil after logout", got.RefreshJTI)
	}
}
