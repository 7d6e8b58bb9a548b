// Package repomanager also ships an in-memory RepositoryManager used by
// tests and single-process development runs. It honors the same contracts as
// the PostgreSQL implementation, including the conditional rotation update.
package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/chrishksang/sessionkeeper/internal/common"
	"github.com/chrishksang/sessionkeeper/internal/dbx"
	"github.com/chrishksang/sessionkeeper/internal/server/models"
	"github.com/chrishksang/sessionkeeper/internal/server/repositories/loginattempts"
	"github.com/chrishksang/sessionkeeper/internal/server/repositories/tokens"
	"github.com/chrishksang/sessionkeeper/internal/server/repositories/users"
)

// MemoryRepositoryManager vends process-local repository implementations.
// The DBTX argument of the vendor methods is ignored.
type MemoryRepositoryManager struct {
	users    *memoryUsers
	tokens   *memoryTokens
	attempts *memoryAttempts
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{
		users:    &memoryUsers{byEmail: make(map[string]*models.User)},
		tokens:   &memoryTokens{bySeries: make(map[string]*models.RememberToken)},
		attempts: &memoryAttempts{},
	}
}

func (m *MemoryRepositoryManager) Users(dbx.DBTX) users.Repository { return m.users }

func (m *MemoryRepositoryManager) Tokens(dbx.DBTX) tokens.Repository { return m.tokens }

func (m *MemoryRepositoryManager) LoginAttempts(dbx.DBTX) loginattempts.Repository {
	return m.attempts
}

func (m *MemoryRepositoryManager) RunMigrations(context.Context, *sql.DB) error { return nil }

// --- users ---

type memoryUsers struct {
	mu      sync.Mutex
	nextID  int64
	byEmail map[string]*models.User
}

func (r *memoryUsers) Create(_ context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEmail[user.Email]; ok {
		return nil, common.ErrEmailTaken
	}
	r.nextID++
	user.ID = r.nextID
	user.CreatedAt = time.Now()
	stored := *user
	r.byEmail[user.Email] = &stored
	return user, nil
}

func (r *memoryUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byEmail[email]
	if !ok {
		return nil, common.ErrorNotFound
	}
	u := *stored
	return &u, nil
}

func (r *memoryUsers) GetByID(_ context.Context, id int64) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, stored := range r.byEmail {
		if stored.ID == id {
			u := *stored
			return &u, nil
		}
	}
	return nil, common.ErrorNotFound
}

// --- remember tokens ---

type memoryTokens struct {
	mu       sync.Mutex
	nextID   int64
	bySeries map[string]*models.RememberToken
}

func (r *memoryTokens) Create(_ context.Context, token *models.RememberToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bySeries[token.Series]; ok {
		return errors.New("duplicate series")
	}
	r.nextID++
	token.ID = r.nextID
	stored := *token
	r.bySeries[token.Series] = &stored
	return nil
}

func (r *memoryTokens) FindBySeries(_ context.Context, series string) (*models.RememberToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.bySeries[series]
	if !ok {
		return nil, common.ErrorNotFound
	}
	t := *stored
	return &t, nil
}

func (r *memoryTokens) Rotate(_ context.Context, series, oldHash, newHash string, encryptedKey []byte, lastUsedAt, expiresAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.bySeries[series]
	if !ok || stored.TokenHash != oldHash {
		return false, nil
	}
	stored.TokenHash = newHash
	stored.EncryptedKey = encryptedKey
	used := lastUsedAt
	stored.LastUsedAt = &used
	stored.ExpiresAt = expiresAt
	return true, nil
}

func (r *memoryTokens) DeleteBySeries(_ context.Context, series string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.bySeries, series)
	return nil
}

func (r *memoryTokens) DeleteAllForUser(_ context.Context, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for series, stored := range r.bySeries {
		if stored.UserID == userID {
			delete(r.bySeries, series)
		}
	}
	return nil
}

func (r *memoryTokens) ListActiveForUser(_ context.Context, userID int64, now time.Time) ([]*models.RememberToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*models.RememberToken
	for _, stored := range r.bySeries {
		if stored.UserID == userID && stored.ExpiresAt.After(now) {
			t := *stored
			result = append(result, &t)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i].LastUsedAt, result[j].LastUsedAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
	return result, nil
}

func (r *memoryTokens) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for series, stored := range r.bySeries {
		if !stored.ExpiresAt.After(now) {
			delete(r.bySeries, series)
			n++
		}
	}
	return n, nil
}

// --- login attempts ---

type memoryAttempts struct {
	mu   sync.Mutex
	rows []models.LoginAttempt
}

func (r *memoryAttempts) Record(_ context.Context, email, ipAddress string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, models.LoginAttempt{Email: email, IPAddress: ipAddress, AttemptedAt: at})
	return nil
}

func (r *memoryAttempts) CountSince(_ context.Context, email, ipAddress string, since time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, row := range r.rows {
		if (row.Email == email || row.IPAddress == ipAddress) && row.AttemptedAt.After(since) {
			n++
		}
	}
	return n, nil
}

func (r *memoryAttempts) LatestSince(_ context.Context, email, ipAddress string, since time.Time) (time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest time.Time
	for _, row := range r.rows {
		if (row.Email == email || row.IPAddress == ipAddress) && row.AttemptedAt.After(since) && row.AttemptedAt.After(latest) {
			latest = row.AttemptedAt
		}
	}
	return latest, nil
}

func (r *memoryAttempts) ClearForEmail(_ context.Context, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.rows[:0]
	for _, row := range r.rows {
		if row.Email != email {
			kept = append(kept, row)
		}
	}
	r.rows = kept
	return nil
}

func (r *memoryAttempts) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	kept := r.rows[:0]
	for _, row := range r.rows {
		if row.AttemptedAt.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, row)
	}
	r.rows = kept
	return n, nil
}
