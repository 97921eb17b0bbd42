package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/nahin/codetutor/internal/apperror"
	"github.com/nahin/codetutor/internal/model"
)

func TestUpsert_NewUser(t *testing.T) {
	db := newTestDB(t)

	user := &model.User{
		GitHubID:  424242,
		Login:     "learner",
		Email:     "learner@example.com",
		AvatarURL: "https://example.com/a.png",
	}

	if err := db.Upsert(context.Background(), user); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	if user.ID == "" {
		t.Error("Upsert() did not set user.ID for a new user")
	}
	if user.CreatedAt.IsZero() {
		t.Error("Upsert() did not set user.CreatedAt")
	}
}

func TestUpsert_ReturningUserKeepsInternalID(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	first := &model.User{GitHubID: 424242, Login: "learner"}
	if err := db.Upsert(ctx, first); err != nil {
		t.Fatalf("first Upsert() error = %v", err)
	}

	// Same GitHub account logs in again with a changed profile. The internal
	// ID must survive — programs and runs reference it.
	second := &model.User{GitHubID: 424242, Login: "renamed", Email: "new@example.com"}
	if err := db.Upsert(ctx, second); err != nil {
		t.Fatalf("second Upsert() error = %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("Upsert() changed internal ID: %q → %q", first.ID, second.ID)
	}

	found, err := db.GetUserByID(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if found.Login != "renamed" || found.Email != "new@example.com" {
		t.Errorf("Upsert() did not update profile: %+v", found)
	}
}

func TestGetUserByID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetUserByID(context.Background(), "nobody")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByID() error = %v, want ErrNotFound", err)
	}
}
