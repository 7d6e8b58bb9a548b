package repomanager

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chrishksang/sessionkeeper/internal/common"
	"github.com/chrishksang/sessionkeeper/internal/server/models"
)

func seedToken(t *testing.T, m *MemoryRepositoryManager, userID int64, series, hash string) *models.RememberToken {
	t.Helper()
	token := &models.RememberToken{
		UserID:    userID,
		Series:    series,
		TokenHash: hash,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := m.Tokens(nil).Create(context.Background(), token); err != nil {
		t.Fatalf("seed error: %v", err)
	}
	return token
}

func TestMemoryTokens_RotateIsConditional(t *testing.T) {
	m := NewMemoryRepositoryManager()
	ctx := context.Background()
	seedToken(t, m, 7, "s1", "hash-v1")
	repo := m.Tokens(nil)

	// Stale expected hash matches nothing.
	ok, err := repo.Rotate(ctx, "s1", "hash-v0", "hash-v2", nil, time.Now(), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("rotation with a stale hash must not match")
	}

	ok, err = repo.Rotate(ctx, "s1", "hash-v1", "hash-v2", []byte("blob"), time.Now(), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("rotation with the current hash must match")
	}

	got, err := repo.FindBySeries(ctx, "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.TokenHash != "hash-v2" || got.LastUsedAt == nil {
		t.Fatalf("unexpected record after rotation: %+v", got)
	}
}

func TestMemoryTokens_FindReturnsCopy(t *testing.T) {
	m := NewMemoryRepositoryManager()
	ctx := context.Background()
	seedToken(t, m, 7, "s1", "hash-v1")
	repo := m.Tokens(nil)

	got, err := repo.FindBySeries(ctx, "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got.TokenHash = "mutated"

	again, err := repo.FindBySeries(ctx, "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again.TokenHash != "hash-v1" {
		t.Fatal("callers must not be able to mutate stored state")
	}
}

func TestMemoryTokens_DeleteScopes(t *testing.T) {
	m := NewMemoryRepositoryManager()
	ctx := context.Background()
	seedToken(t, m, 7, "s1", "h1")
	seedToken(t, m, 7, "s2", "h2")
	seedToken(t, m, 8, "s3", "h3")
	repo := m.Tokens(nil)

	if err := repo.DeleteAllForUser(ctx, 7); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := repo.FindBySeries(ctx, "s1"); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want not-found for s1, got %v", err)
	}
	if _, err := repo.FindBySeries(ctx, "s3"); err != nil {
		t.Fatalf("other user's record must survive, got %v", err)
	}
}
