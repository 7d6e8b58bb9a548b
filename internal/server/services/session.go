// This file implements SessionService, the binder between the remember-me
// token protocol, the server-side session bag, and the auth cookies.
package services

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/chrishksang/sessionkeeper/internal/common"
	"github.com/chrishksang/sessionkeeper/internal/cryptox"
	"github.com/chrishksang/sessionkeeper/internal/dbx"
	"github.com/chrishksang/sessionkeeper/internal/logging"
	"github.com/chrishksang/sessionkeeper/internal/server/config"
	"github.com/chrishksang/sessionkeeper/internal/server/metrics"
	"github.com/chrishksang/sessionkeeper/internal/server/models"
	"github.com/chrishksang/sessionkeeper/internal/server/repositories/loginattempts"
	"github.com/chrishksang/sessionkeeper/internal/server/repositories/repomanager"
	"github.com/chrishksang/sessionkeeper/internal/server/repositories/users"
	"github.com/chrishksang/sessionkeeper/internal/server/sessions"
)

// Session keys owned by the binder.
const (
	sessKeyUserID     = "user_id"
	sessKeyAuthTime   = "auth_time"
	sessKeySeries     = "remember_series"
	sessKeyDerivedKey = "derived_key"
)

// dummyPasswordHash is verified against when a login targets an unknown
// email, so the request costs one bcrypt comparison either way and response
// timing does not reveal account existence.
var dummyPasswordHash = mustHash("sessionkeeper-no-such-user")

func mustHash(s string) []byte {
	h, err := bcrypt.GenerateFromPassword([]byte(s), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return h
}

// CookieJar is the narrow cookie access interface injected by the HTTP layer.
type CookieJar interface {
	// Get returns the value of the named request cookie.
	Get(name string) (string, bool)

	// Set adds a response cookie.
	Set(cookie *http.Cookie)
}

// LoginResult reports the outcome of a password login attempt. On lockout,
// LockoutSeconds tells the client how long to wait.
type LoginResult struct {
	User           *models.User
	LockoutSeconds int64
}

// SessionService bridges password login and remember-me re-authentication to
// the HTTP session and cookies.
type SessionService struct {
	db     dbx.DBTX
	repos  repomanager.RepositoryManager
	tokens *TokenService
	logger logging.Logger
	cfg    *config.Config

	// now is a seam for tests.
	now func() time.Time
}

// NewSessionService constructs a SessionService.
func NewSessionService(db dbx.DBTX, m repomanager.RepositoryManager, tokens *TokenService, cfg *config.Config, logger logging.Logger) *SessionService {
	return &SessionService{db: db, repos: m, tokens: tokens, logger: logger, cfg: cfg, now: time.Now}
}

// Register creates a new account with a bcrypt password hash.
func (s *SessionService) Register(ctx context.Context, email, password string) (*models.User, error) {
	if email == "" || len(password) < 8 {
		return nil, common.ErrorUnauthorized
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, common.ErrorInternal
	}
	user, err := s.users().Create(ctx, &models.User{Email: email, PasswordHash: string(hash)})
	if err != nil {
		if errors.Is(err, common.ErrEmailTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	return user, nil
}

// AttemptLogin verifies email/password under the lockout policy and, on
// success, establishes an authenticated session. The password check runs at
// constant cost whether or not the account exists. When rememberMe is set, a
// remember-me token carrying the password-derived escrow key is issued and
// the cookie written through jar.
func (s *SessionService) AttemptLogin(ctx context.Context, sess sessions.Session, jar CookieJar, email, password, ipAddress, userAgent string, rememberMe bool) (*LoginResult, error) {
	now := s.now()
	attempts := s.attempts()

	windowStart := now.Add(-s.cfg.LoginAttemptWindow)
	count, err := attempts.CountSince(ctx, email, ipAddress, windowStart)
	if err != nil {
		return nil, fmt.Errorf("error counting login attempts: %w", err)
	}
	if count >= s.cfg.LoginMaxAttempts {
		latest, err := attempts.LatestSince(ctx, email, ipAddress, windowStart)
		if err != nil {
			return nil, fmt.Errorf("error reading login attempts: %w", err)
		}
		remaining := int64(s.cfg.LockoutDuration.Seconds()) - int64(now.Sub(latest).Seconds())
		if remaining < 1 {
			remaining = 1
		}
		metrics.LoginTotal.WithLabelValues("locked_out").Inc()
		return &LoginResult{LockoutSeconds: remaining}, common.ErrRateLimited
	}

	user, err := s.users().GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("error loading user: %w", err)
	}

	storedHash := dummyPasswordHash
	if user != nil {
		storedHash = []byte(user.PasswordHash)
	}
	if bcrypt.CompareHashAndPassword(storedHash, []byte(password)) != nil || user == nil {
		if err := attempts.Record(ctx, email, ipAddress, now); err != nil {
			return nil, fmt.Errorf("error recording login attempt: %w", err)
		}
		metrics.LoginTotal.WithLabelValues("failure").Inc()
		return nil, common.ErrorUnauthorized
	}

	if err := attempts.ClearForEmail(ctx, email); err != nil {
		return nil, fmt.Errorf("error clearing login attempts: %w", err)
	}

	// The escrow key survives browser restarts only inside the remember-me
	// record; within the session it is cached directly.
	derivedKey := cryptox.DerivePasswordKey(password, []byte(strconv.FormatInt(user.ID, 10)))
	s.establish(sess, user.ID, now)
	sess.Set(sessKeyDerivedKey, hex.EncodeToString(derivedKey))

	if rememberMe {
		issued, err := s.tokens.Issue(ctx, user.ID, userAgent, ipAddress, derivedKey)
		if err != nil {
			return nil, fmt.Errorf("error issuing remember token: %w", err)
		}
		sess.Set(sessKeySeries, issued.Series)
		s.setRememberCookie(jar, s.tokens.FormatCookie(issued.Series, issued.RawToken), issued.ExpiresAt)
	}

	metrics.LoginTotal.WithLabelValues("success").Inc()
	return &LoginResult{User: user}, nil
}

// AttemptRememberMeLogin tries to authenticate the request from the
// remember-me cookie. It returns true when a session was established. All
// validation failures expire the cookie and return false without an error;
// only storage failures propagate.
func (s *SessionService) AttemptRememberMeLogin(ctx context.Context, sess sessions.Session, jar CookieJar, userAgent, ipAddress string) (bool, error) {
	value, ok := jar.Get(common.RememberCookieName)
	if !ok || value == "" {
		return false, nil
	}

	series, rawToken, err := s.tokens.ParseCookie(value)
	if err != nil {
		// Malformed cookie: clear it, no storage lookup.
		s.expireRememberCookie(jar)
		return false, nil
	}

	result, err := s.tokens.ValidateAndRotate(ctx, series, rawToken, userAgent, ipAddress)
	if err != nil {
		if errors.Is(err, common.ErrInvalidToken) || errors.Is(err, common.ErrTokenExpired) {
			s.expireRememberCookie(jar)
			return false, nil
		}
		return false, err
	}

	s.establish(sess, result.UserID, s.now())
	sess.Set(sessKeySeries, series)
	if result.EscrowKey != nil {
		sess.Set(sessKeyDerivedKey, hex.EncodeToString(result.EscrowKey))
	}
	s.setRememberCookie(jar, s.tokens.FormatCookie(series, result.NewRawToken), result.ExpiresAt)

	return true, nil
}

// Logout ends the current session. With everywhere set it revokes every
// remember-me token of the user; otherwise only the series bound to this
// session. The session is cleared and its identifier regenerated, and the
// remember-me cookie expired.
func (s *SessionService) Logout(ctx context.Context, sess sessions.Session, jar CookieJar, everywhere bool) error {
	userID, hasUser := s.sessionUserID(sess)
	series, hasSeries := sess.Get(sessKeySeries)

	if everywhere && hasUser {
		if err := s.tokens.RevokeAllForUser(ctx, userID); err != nil {
			return fmt.Errorf("error revoking tokens: %w", err)
		}
	} else if hasSeries {
		if err := s.tokens.RevokeBySeries(ctx, series); err != nil {
			return fmt.Errorf("error revoking token: %w", err)
		}
	}

	sess.Clear()
	sess.Regenerate()
	s.expireRememberCookie(jar)
	return nil
}

// CurrentUserID returns the authenticated user of the session, enforcing the
// local session age limit. An over-age session is cleared in place; the token
// store is not consulted.
func (s *SessionService) CurrentUserID(sess sessions.Session) (int64, bool) {
	userID, ok := s.sessionUserID(sess)
	if !ok {
		return 0, false
	}
	raw, ok := sess.Get(sessKeyAuthTime)
	if !ok {
		sess.Clear()
		return 0, false
	}
	authTime, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || s.now().Sub(time.Unix(authTime, 0)) > s.cfg.SessionMaxAge {
		sess.Clear()
		return 0, false
	}
	return userID, true
}

// DerivedKey returns the session-cached password-derived encryption key.
func (s *SessionService) DerivedKey(sess sessions.Session) ([]byte, bool) {
	raw, ok := sess.Get(sessKeyDerivedKey)
	if !ok {
		return nil, false
	}
	key, err := hex.DecodeString(raw)
	if err != nil {
		return nil, false
	}
	return key, true
}

// ListSessions returns the user's active remember-me records for display.
func (s *SessionService) ListSessions(ctx context.Context, userID int64) ([]*models.RememberToken, error) {
	return s.tokens.ListActiveForUser(ctx, userID)
}

// RevokeSession revokes one of the user's own remember-me records by series.
// Revoking a series the user does not own is refused.
func (s *SessionService) RevokeSession(ctx context.Context, userID int64, series string) error {
	token, err := s.tokens.repos.Tokens(s.tokens.db).FindBySeries(ctx, series)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		return fmt.Errorf("error loading token: %w", err)
	}
	if token.UserID != userID {
		return common.ErrorUnauthorized
	}
	return s.tokens.RevokeBySeries(ctx, series)
}

// PurgeStaleAttempts deletes login-attempt rows too old to affect any lockout
// decision.
func (s *SessionService) PurgeStaleAttempts(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-(s.cfg.LoginAttemptWindow + s.cfg.LockoutDuration))
	return s.attempts().DeleteBefore(ctx, cutoff)
}

// --- helpers below ---

// establish rehydrates the session for userID: regenerates the identifier
// (fixation defense) and stores the principal plus the auth timestamp.
func (s *SessionService) establish(sess sessions.Session, userID int64, now time.Time) {
	sess.Regenerate()
	sess.Set(sessKeyUserID, strconv.FormatInt(userID, 10))
	sess.Set(sessKeyAuthTime, strconv.FormatInt(now.Unix(), 10))
}

func (s *SessionService) sessionUserID(sess sessions.Session) (int64, bool) {
	raw, ok := sess.Get(sessKeyUserID)
	if !ok {
		return 0, false
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return userID, true
}

func (s *SessionService) setRememberCookie(jar CookieJar, value string, expiresAt time.Time) {
	jar.Set(&http.Cookie{
		Name:     common.RememberCookieName,
		Value:    value,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(time.Until(expiresAt).Seconds()),
		Secure:   s.cfg.CookieSecure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *SessionService) expireRememberCookie(jar CookieJar) {
	jar.Set(&http.Cookie{
		Name:     common.RememberCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   s.cfg.CookieSecure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *SessionService) users() users.Repository {
	return s.repos.Users(s.db)
}

func (s *SessionService) attempts() loginattempts.Repository {
	return s.repos.LoginAttempts(s.db)
}
