// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package web

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/internal/observability"
)

// Context keys set by requireSession for downstream handlers.
const (
	ctxKeyUser    = "gatehouse.user"
	ctxKeySession = "gatehouse.session"
)

// requestMetrics counts every request by matched route template and response
// status once the handler chain has run.
func requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		observability.RecordHTTPRequest(c.FullPath(), strconv.Itoa(c.Writer.Status()))
	}
}

// requireSession is the access gate for protected routes. Requests without a
// valid, unexpired session are redirected to the login page; the handler
// chain is aborted.
func (s *Server) requireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(s.cookie.Name)
		if err != nil || token == "" {
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
			return
		}

		user, session, err := s.authService.SessionUser(c.Request.Context(), token)
		if err != nil {
			s.clearSessionCookie(c)
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
			return
		}

		c.Set(ctxKeyUser, user)
		c.Set(ctxKeySession, session)
		c.Next()
	}
}

// redirectIfAuthenticated sends requests that already carry a valid session
// to target instead of rendering the public page. Invalid or absent tokens
// fall through to the handler.
func (s *Server) redirectIfAuthenticated(target string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(s.cookie.Name)
		if err != nil || token == "" {
			c.Next()
			return
		}

		if _, _, err := s.authService.SessionUser(c.Request.Context(), token); err != nil {
			c.Next()
			return
		}

		c.Redirect(http.StatusFound, target)
		c.Abort()
	}
}

// currentUser returns the user placed in the context by requireSession.
func currentUser(c *gin.Context) (*auth.User, bool) {
	v, ok := c.Get(ctxKeyUser)
	if !ok {
		return nil, false
	}
	user, ok := v.(*auth.User)
	return user, ok
}

// setSessionCookie attaches the session token to the response. The cookie is
// HTTP-only and scoped to the whole site; its lifetime matches the absolute
// session TTL.
func (s *Server) setSessionCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.cookie.Name, token, int(auth.SessionTTL.Seconds()), "/", "", s.cookie.Secure, true)
}

// clearSessionCookie expires the session cookie on the client.
func (s *Server) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.cookie.Name, "", -1, "/", "", s.cookie.Secure, true)
}
