package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chrishksang/sessionkeeper/internal/common"
	"github.com/chrishksang/sessionkeeper/internal/server/sessions"
)

const ctxKeySession = "sessionkeeper.session"

// sessionWriter delays the response body until the session has been saved
// and its cookie set. Headers cannot be added once the body starts, and
// services may regenerate the session identifier at any point before that.
type sessionWriter struct {
	gin.ResponseWriter
	before func()
	done   bool
}

func (w *sessionWriter) emit() {
	if !w.done {
		w.done = true
		w.before()
	}
}

func (w *sessionWriter) WriteHeader(code int) {
	w.emit()
	w.ResponseWriter.WriteHeader(code)
}

func (w *sessionWriter) Write(b []byte) (int, error) {
	w.emit()
	return w.ResponseWriter.Write(b)
}

func (w *sessionWriter) WriteString(s string) (int, error) {
	w.emit()
	return w.ResponseWriter.WriteString(s)
}

// sessionMiddleware loads the session bag from the store before the handler
// runs and persists it just before the first response byte. The session
// cookie follows the session identifier, which services may regenerate
// mid-request.
func (s *Server) sessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		var id string
		if cookie, err := c.Request.Cookie(common.SessionCookieName); err == nil {
			id = cookie.Value
		}

		sess, err := s.sessions.Load(c.Request.Context(), id)
		if err != nil {
			s.logger.Error(c.Request.Context(), "session load failed", "error", err.Error())
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error":   "internal_error",
			})
			return
		}
		c.Set(ctxKeySession, sess)

		w := &sessionWriter{ResponseWriter: c.Writer, before: func() {
			if err := s.sessions.Save(c.Request.Context(), sess); err != nil {
				s.logger.Error(c.Request.Context(), "session save failed", "error", err.Error())
				return
			}
			if sess.ID() != id {
				http.SetCookie(c.Writer, &http.Cookie{
					Name:     common.SessionCookieName,
					Value:    sess.ID(),
					Path:     "/",
					Secure:   s.cfg.CookieSecure,
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}
		}}
		c.Writer = w

		c.Next()

		// Handlers that wrote nothing still need the session persisted.
		w.emit()
	}
}

// requestLogger logs one line per request in the structured-logging format.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info(c.Request.Context(), "http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", c.ClientIP(),
		)
	}
}

func (s *Server) session(c *gin.Context) sessions.Session {
	v, _ := c.Get(ctxKeySession)
	sess, _ := v.(sessions.Session)
	return sess
}

// ginJar adapts a gin context to the services.CookieJar interface.
type ginJar struct {
	c *gin.Context
}

func (j ginJar) Get(name string) (string, bool) {
	cookie, err := j.c.Request.Cookie(name)
	if err != nil {
		return "", false
	}
	return cookie.Value, true
}

func (j ginJar) Set(cookie *http.Cookie) {
	http.SetCookie(j.c.Writer, cookie)
}
