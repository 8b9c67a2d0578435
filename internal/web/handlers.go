// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/oops"

	"github.com/gatehouse/gatehouse/internal/observability"
	"github.com/gatehouse/gatehouse/pkg/errutil"
)

// User-facing error strings. These are the only failure messages the
// credential endpoints disclose beyond validation messages.
const (
	msgInvalidCredentials = "Invalid email or password"
	msgEmailTaken         = "User with this email already exists"
	msgCreateFailed       = "Failed to create user"
)

const landingPage = `<!DOCTYPE html>
<html>
<head><title>Gatehouse</title></head>
<body>
<h1>Gatehouse</h1>
<p><a href="/login">Sign in</a> or <a href="/register">create an account</a>.</p>
</body>
</html>
`

const loginPage = `<!DOCTYPE html>
<html>
<head><title>Sign In</title></head>
<body>
<h1>Sign In</h1>
<form method="post" action="/login">
<label>Email <input type="email" name="email"></label>
<label>Password <input type="password" name="password"></label>
<button type="submit">Sign In</button>
</form>
<p>Don't have an account? <a href="/register">Sign up</a></p>
</body>
</html>
`

const registerPage = `<!DOCTYPE html>
<html>
<head><title>Sign Up</title></head>
<body>
<h1>Sign Up</h1>
<form method="post" action="/register">
<label>Name <input type="text" name="name"></label>
<label>Email <input type="email" name="email"></label>
<label>Password <input type="password" name="password"></label>
<button type="submit">Sign Up</button>
</form>
<p>Already have an account? <a href="/login">Sign in</a></p>
</body>
</html>
`

func (s *Server) handleLanding(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(landingPage))
}

func (s *Server) handleLoginPage(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(loginPage))
}

func (s *Server) handleRegisterPage(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(registerPage))
}

// handleLogin processes the sign-in form. On success it sets the session
// cookie and redirects to the dashboard. Every failure other than a
// validation error renders the same credential message, so the response
// never reveals whether the email exists.
func (s *Server) handleLogin(c *gin.Context) {
	email := c.PostForm("email")
	password := c.PostForm("password")

	session, token, err := s.authService.Login(c.Request.Context(), email, password, c.Request.UserAgent(), c.ClientIP())
	if err != nil {
		status, msg := loginError(err)
		if status == http.StatusInternalServerError {
			errutil.LogError(s.logger, "login failed", err)
		}
		observability.RecordAuthAttempt("login", authAttemptStatus(err))
		c.JSON(status, gin.H{"error": msg})
		return
	}

	observability.RecordAuthAttempt("login", "success")
	observability.RecordSessionIssued()
	s.setSessionCookie(c, token)
	s.logger.Info("user logged in", "user_id", session.UserID.String())
	c.Redirect(http.StatusSeeOther, "/dashboard")
}

// handleRegister processes the sign-up form. A created account is logged in
// immediately: the session cookie is set and the client is redirected to the
// dashboard with no intermediate sign-in step.
func (s *Server) handleRegister(c *gin.Context) {
	name := c.PostForm("name")
	email := c.PostForm("email")
	password := c.PostForm("password")

	user, session, token, err := s.authService.Register(c.Request.Context(), name, email, password, c.Request.UserAgent(), c.ClientIP())
	if err != nil {
		status, msg := registerError(err)
		if status == http.StatusInternalServerError {
			errutil.LogError(s.logger, "registration failed", err)
		}
		observability.RecordAuthAttempt("register", authAttemptStatus(err))
		c.JSON(status, gin.H{"error": msg})
		return
	}

	observability.RecordAuthAttempt("register", "success")
	observability.RecordSessionIssued()
	s.setSessionCookie(c, token)
	s.logger.Info("user registered", "user_id", user.ID.String(), "session_id", session.ID.String())
	c.Redirect(http.StatusSeeOther, "/dashboard")
}

// handleLogout revokes the current session and clears the cookie. Logout is
// idempotent from the client's view: a missing or already-revoked session
// still lands on the login page.
func (s *Server) handleLogout(c *gin.Context) {
	if token, err := c.Cookie(s.cookie.Name); err == nil && token != "" {
		if err := s.authService.Logout(c.Request.Context(), token); err != nil {
			s.logger.Debug("logout with invalid session", "error", err)
		}
	}
	s.clearSessionCookie(c)
	c.Redirect(http.StatusSeeOther, "/login")
}

// handleDashboard renders the protected page for the session's user.
func (s *Server) handleDashboard(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.Redirect(http.StatusFound, "/login")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"name":  user.Name,
		"email": user.Email,
	})
}

// loginError maps a login failure to an HTTP status and user-facing message.
// Validation messages pass through verbatim; everything else collapses to
// the generic credential message.
func loginError(err error) (int, string) {
	if oopsErr, ok := oops.AsOops(err); ok {
		switch oopsErr.Code() {
		case "AUTH_VALIDATION_FAILED":
			return http.StatusBadRequest, oopsErr.Error()
		case "AUTH_INVALID_CREDENTIALS":
			return http.StatusUnauthorized, msgInvalidCredentials
		}
	}
	return http.StatusInternalServerError, msgInvalidCredentials
}

// registerError maps a registration failure to an HTTP status and
// user-facing message. The duplicate-email conflict is disclosed here and
// only here.
func registerError(err error) (int, string) {
	if oopsErr, ok := oops.AsOops(err); ok {
		switch oopsErr.Code() {
		case "AUTH_VALIDATION_FAILED":
			return http.StatusBadRequest, oopsErr.Error()
		case "AUTH_EMAIL_TAKEN":
			return http.StatusConflict, msgEmailTaken
		}
	}
	return http.StatusInternalServerError, msgCreateFailed
}

// authAttemptStatus derives the metric label for a failed attempt.
func authAttemptStatus(err error) string {
	if oopsErr, ok := oops.AsOops(err); ok {
		switch oopsErr.Code() {
		case "AUTH_VALIDATION_FAILED":
			return "validation_failed"
		case "AUTH_INVALID_CREDENTIALS":
			return "invalid_credentials"
		case "AUTH_EMAIL_TAKEN":
			return "email_taken"
		}
	}
	return "error"
}
