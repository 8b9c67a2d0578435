// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

//go:build integration

package integration

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/gatehouse/gatehouse/internal/auth"
)

func postForm(path string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	env.Handler.ServeHTTP(rec, req)
	return rec
}

func get(path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	env.Handler.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == "gatehouse_session" {
			return c
		}
	}
	return nil
}

func registerForm() url.Values {
	return url.Values{
		"name":     {"Alice Example"},
		"email":    {"alice@example.com"},
		"password": {"s3cret-pass"},
	}
}

var _ = Describe("Authentication flow", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
		truncateAll(ctx, env.pool)
	})

	Describe("registration", func() {
		It("creates the account, issues a session and redirects to the dashboard", func() {
			rec := postForm("/register", registerForm())

			Expect(rec.Code).To(Equal(http.StatusSeeOther))
			Expect(rec.Header().Get("Location")).To(Equal("/dashboard"))

			cookie := sessionCookie(rec)
			Expect(cookie).NotTo(BeNil())
			Expect(cookie.Value).To(HaveLen(64))
			Expect(cookie.HttpOnly).To(BeTrue())

			user, err := env.Users.GetByEmail(ctx, "alice@example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(user.Name).To(Equal("Alice Example"))
			Expect(user.PasswordHash).NotTo(ContainSubstring("s3cret-pass"))
		})

		It("discloses a duplicate email with 409", func() {
			Expect(postForm("/register", registerForm()).Code).To(Equal(http.StatusSeeOther))

			rec := postForm("/register", registerForm())
			Expect(rec.Code).To(Equal(http.StatusConflict))
			Expect(rec.Body.String()).To(ContainSubstring("User with this email already exists"))
		})

		It("rejects an invalid email with the validation message", func() {
			form := registerForm()
			form.Set("email", "not-an-email")

			rec := postForm("/register", form)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(rec.Body.String()).To(ContainSubstring("Invalid email address"))
		})
	})

	Describe("login", func() {
		BeforeEach(func() {
			Expect(postForm("/register", registerForm()).Code).To(Equal(http.StatusSeeOther))
		})

		It("issues a fresh session for valid credentials", func() {
			rec := postForm("/login", url.Values{
				"email":    {"alice@example.com"},
				"password": {"s3cret-pass"},
			})

			Expect(rec.Code).To(Equal(http.StatusSeeOther))
			Expect(rec.Header().Get("Location")).To(Equal("/dashboard"))
			Expect(sessionCookie(rec)).NotTo(BeNil())
		})

		It("accepts a differently-cased email", func() {
			rec := postForm("/login", url.Values{
				"email":    {"Alice@Example.COM"},
				"password": {"s3cret-pass"},
			})
			Expect(rec.Code).To(Equal(http.StatusSeeOther))
		})

		It("returns the same error for a wrong password and an unknown email", func() {
			wrongPassword := postForm("/login", url.Values{
				"email":    {"alice@example.com"},
				"password": {"wrong-pass"},
			})
			unknownEmail := postForm("/login", url.Values{
				"email":    {"nobody@example.com"},
				"password": {"s3cret-pass"},
			})

			Expect(wrongPassword.Code).To(Equal(http.StatusUnauthorized))
			Expect(unknownEmail.Code).To(Equal(http.StatusUnauthorized))
			Expect(wrongPassword.Body.String()).To(Equal(unknownEmail.Body.String()))
		})
	})

	Describe("dashboard access", func() {
		It("redirects to /login without a session", func() {
			rec := get("/dashboard")
			Expect(rec.Code).To(Equal(http.StatusFound))
			Expect(rec.Header().Get("Location")).To(Equal("/login"))
		})

		It("serves the account details with a valid session", func() {
			cookie := sessionCookie(postForm("/register", registerForm()))
			Expect(cookie).NotTo(BeNil())

			rec := get("/dashboard", cookie)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring("Alice Example"))
			Expect(rec.Body.String()).To(ContainSubstring("alice@example.com"))
		})

		It("rejects a tampered token", func() {
			cookie := sessionCookie(postForm("/register", registerForm()))
			Expect(cookie).NotTo(BeNil())
			cookie.Value = strings.Repeat("0", 64)

			rec := get("/dashboard", cookie)
			Expect(rec.Code).To(Equal(http.StatusFound))
			Expect(rec.Header().Get("Location")).To(Equal("/login"))
		})
	})

	Describe("logout", func() {
		It("revokes the session server-side", func() {
			cookie := sessionCookie(postForm("/register", registerForm()))
			Expect(cookie).NotTo(BeNil())

			rec := postForm("/logout", url.Values{}, cookie)
			Expect(rec.Code).To(Equal(http.StatusSeeOther))
			Expect(rec.Header().Get("Location")).To(Equal("/login"))

			// The old token must no longer grant access
			after := get("/dashboard", cookie)
			Expect(after.Code).To(Equal(http.StatusFound))

			_, err := env.Sessions.GetByTokenHash(ctx, auth.HashSessionToken(cookie.Value))
			Expect(err).To(MatchError(auth.ErrNotFound))
		})
	})

	Describe("session expiry", func() {
		It("rejects an expired session and lets the sweep remove it", func() {
			cookie := sessionCookie(postForm("/register", registerForm()))
			Expect(cookie).NotTo(BeNil())

			// Force the session past its absolute expiry
			_, err := env.pool.Exec(ctx,
				"UPDATE sessions SET expires_at = NOW() - INTERVAL '1 hour' WHERE token_hash = $1",
				auth.HashSessionToken(cookie.Value))
			Expect(err).NotTo(HaveOccurred())

			rec := get("/dashboard", cookie)
			Expect(rec.Code).To(Equal(http.StatusFound))

			deleted, err := env.Service.SweepExpiredSessions(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(deleted).To(Equal(int64(1)))
		})
	})

	Describe("password hash upgrade", func() {
		It("re-hashes a bcrypt credential on successful login", func() {
			Expect(postForm("/register", registerForm()).Code).To(Equal(http.StatusSeeOther))

			user, err := env.Users.GetByEmail(ctx, "alice@example.com")
			Expect(err).NotTo(HaveOccurred())

			// Plant a legacy bcrypt hash for the same password
			legacy := "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy" // "password"
			Expect(env.Users.UpdatePasswordHash(ctx, user.ID, legacy)).To(Succeed())

			rec := postForm("/login", url.Values{
				"email":    {"alice@example.com"},
				"password": {"password"},
			})
			Expect(rec.Code).To(Equal(http.StatusSeeOther))

			upgraded, err := env.Users.GetByEmail(ctx, "alice@example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(upgraded.PasswordHash).To(HavePrefix("$argon2id$"))
		})
	})
})
