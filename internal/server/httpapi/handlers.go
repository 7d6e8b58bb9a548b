package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chrishksang/sessionkeeper/internal/common"
)

type registerRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type loginRequest struct {
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required"`
	RememberMe bool   `json:"remember_me"`
}

type logoutRequest struct {
	Everywhere bool `json:"everywhere"`
}

func (s *Server) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid_request"})
		return
	}

	user, err := s.svc.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, common.ErrEmailTaken) {
			c.JSON(http.StatusConflict, gin.H{"success": false, "error": "email_taken"})
			return
		}
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "user_id": user.ID})
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid_request"})
		return
	}

	result, err := s.svc.AttemptLogin(c.Request.Context(), s.session(c), ginJar{c},
		req.Email, req.Password, c.ClientIP(), c.Request.UserAgent(), req.RememberMe)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrRateLimited):
			c.JSON(http.StatusTooManyRequests, gin.H{
				"success":         false,
				"error":           "too_many_attempts",
				"lockout_seconds": result.LockoutSeconds,
			})
		case errors.Is(err, common.ErrorUnauthorized):
			// Same body for wrong password and unknown email.
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid_credentials"})
		default:
			s.fail(c, err)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "user_id": result.User.ID, "email": result.User.Email})
}

func (s *Server) logout(c *gin.Context) {
	var req logoutRequest
	_ = c.ShouldBindJSON(&req)

	if err := s.svc.Logout(c.Request.Context(), s.session(c), ginJar{c}, req.Everywhere); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// currentSession reports the authenticated user, first attempting a
// remember-me re-authentication when the session is anonymous.
func (s *Server) currentSession(c *gin.Context) {
	userID, ok := s.authenticate(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "unauthenticated"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user_id": userID})
}

func (s *Server) listSessions(c *gin.Context) {
	userID, ok := s.authenticate(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "unauthenticated"})
		return
	}

	records, err := s.svc.ListSessions(c.Request.Context(), userID)
	if err != nil {
		s.fail(c, err)
		return
	}

	type sessionInfo struct {
		Series     string     `json:"series"`
		CreatedAt  time.Time  `json:"created_at"`
		ExpiresAt  time.Time  `json:"expires_at"`
		LastUsedAt *time.Time `json:"last_used_at,omitempty"`
		UserAgent  string     `json:"user_agent,omitempty"`
		IPAddress  string     `json:"ip_address,omitempty"`
	}
	out := make([]sessionInfo, 0, len(records))
	for _, r := range records {
		out = append(out, sessionInfo{
			Series:     r.Series,
			CreatedAt:  r.CreatedAt,
			ExpiresAt:  r.ExpiresAt,
			LastUsedAt: r.LastUsedAt,
			UserAgent:  r.UserAgent,
			IPAddress:  r.IPAddress,
		})
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "sessions": out})
}

func (s *Server) revokeSession(c *gin.Context) {
	userID, ok := s.authenticate(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "unauthenticated"})
		return
	}

	if err := s.svc.RevokeSession(c.Request.Context(), userID, c.Param("series")); err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			c.JSON(http.StatusForbidden, gin.H{"success": false, "error": "forbidden"})
			return
		}
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// authenticate resolves the requesting user: a live session wins; otherwise a
// remember-me cookie is tried, which rotates the token as a side effect.
func (s *Server) authenticate(c *gin.Context) (int64, bool) {
	sess := s.session(c)
	if userID, ok := s.svc.CurrentUserID(sess); ok {
		return userID, true
	}

	ok, err := s.svc.AttemptRememberMeLogin(c.Request.Context(), sess, ginJar{c},
		c.Request.UserAgent(), c.ClientIP())
	if err != nil {
		s.logger.Error(c.Request.Context(), "remember-me login failed", "error", err.Error())
		return 0, false
	}
	if !ok {
		return 0, false
	}
	return s.svc.CurrentUserID(sess)
}

// fail answers a storage or internal failure with a generic 500; details go
// to the log only.
func (s *Server) fail(c *gin.Context, err error) {
	s.logger.Error(c.Request.Context(), "request failed", "error", err.Error(), "path", c.Request.URL.Path)
	c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal_error"})
}
