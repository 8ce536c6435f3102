package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/assignwork/assignwork/internal"
	"github.com/assignwork/assignwork/internal/oauth"
	"github.com/assignwork/assignwork/internal/user"
	"github.com/assignwork/assignwork/pkg/logger"
)

// tokenProvider fakes the authorization server's token and logout
// endpoints for refresh and terminate flows.
type tokenProvider struct {
	server      *httptest.Server
	tokenStatus int
	tokenCalls  atomic.Int64
	logoutCalls atomic.Int64
}

func newTokenProvider() *tokenProvider {
	p := &tokenProvider{tokenStatus: http.StatusOK}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		p.tokenCalls.Add(1)
		if p.tokenStatus != http.StatusOK {
			w.WriteHeader(p.tokenStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "refreshed-access",
			"token_type":    "Bearer",
			"expires_in":    3600,
			"refresh_token": "refreshed-refresh",
		})
	})
	mux.HandleFunc("/logout", func(w http.ResponseWriter, r *http.Request) {
		p.logoutCalls.Add(1)
		w.WriteHeader(http.StatusOK)
	})

	p.server = httptest.NewServer(mux)
	return p
}

func (p *tokenProvider) oauthClient() *oauth.Client {
	return oauth.NewClient(internal.SSOConfig{
		ClientID:      "client-id",
		AuthURL:       p.server.URL + "/authorize",
		TokenURL:      p.server.URL + "/token",
		UserInfoURL:   p.server.URL + "/userinfo",
		LogoutURL:     p.server.URL + "/logout",
		RedirectURL:   "http://localhost:8080/api/v1/auth/callback",
		LogoutTimeout: 2 * time.Second,
	}, logger.L())
}

// requestWith carries the cookies a prior response set.
func requestWith(rec *httptest.ResponseRecorder) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge >= 0 && c.Value != "" {
			req.AddCookie(c)
		}
	}
	return req
}

var _ = ginkgo.Describe("Manager", func() {
	var (
		provider *tokenProvider
		manager  *Manager
		ctx      context.Context
	)

	newManager := func(cfg internal.SessionConfig) *Manager {
		if cfg.Secret == "" {
			cfg.Secret = testSecret
		}
		m, err := NewManager(cfg, provider.oauthClient(), logger.L())
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		return m
	}

	testUser := user.User{ID: 5, Email: "u@example.com", Username: "u"}

	freshSession := func() *Session {
		return &Session{
			User:         testUser,
			AccessToken:  "access",
			RefreshToken: "refresh",
			ExpiresAt:    time.Now().Add(time.Hour).UnixMilli(),
		}
	}

	ginkgo.BeforeEach(func() {
		provider = newTokenProvider()
		manager = newManager(internal.SessionConfig{})
		ctx = context.Background()
	})

	ginkgo.AfterEach(func() {
		provider.server.Close()
	})

	ginkgo.Describe("Create and Current", func() {
		ginkgo.It("round-trips a session through the cookie", func() {
			rec := httptest.NewRecorder()
			gomega.Expect(manager.Create(rec, freshSession())).To(gomega.Succeed())

			sess := manager.Current(requestWith(rec))
			gomega.Expect(sess).NotTo(gomega.BeNil())
			gomega.Expect(sess.User.ID).To(gomega.Equal(int64(5)))
			gomega.Expect(sess.AccessToken).To(gomega.Equal("access"))
			gomega.Expect(sess.CreatedAt).NotTo(gomega.BeZero())
		})

		ginkgo.It("sets a hardened cookie", func() {
			rec := httptest.NewRecorder()
			gomega.Expect(manager.Create(rec, freshSession())).To(gomega.Succeed())

			cookies := rec.Result().Cookies()
			gomega.Expect(cookies).To(gomega.HaveLen(1))
			gomega.Expect(cookies[0].HttpOnly).To(gomega.BeTrue())
			gomega.Expect(cookies[0].SameSite).To(gomega.Equal(http.SameSiteLaxMode))
			gomega.Expect(cookies[0].Path).To(gomega.Equal("/"))
		})

		ginkgo.It("treats an absent cookie as no session", func() {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			gomega.Expect(manager.Current(req)).To(gomega.BeNil())
		})

		ginkgo.It("treats a tampered cookie as no session", func() {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.AddCookie(&http.Cookie{Name: "aw_session", Value: "bogus-value"})
			gomega.Expect(manager.Current(req)).To(gomega.BeNil())
		})
	})

	ginkgo.Describe("RefreshIfNeeded", func() {
		ginkgo.It("is a no-op success when the token is not near expiry", func() {
			rec := httptest.NewRecorder()
			gomega.Expect(manager.Create(rec, freshSession())).To(gomega.Succeed())

			out := httptest.NewRecorder()
			sess, ok := manager.RefreshIfNeeded(ctx, out, requestWith(rec))
			gomega.Expect(ok).To(gomega.BeTrue())
			gomega.Expect(sess.AccessToken).To(gomega.Equal("access"))
			gomega.Expect(provider.tokenCalls.Load()).To(gomega.BeZero())
			gomega.Expect(out.Result().Cookies()).To(gomega.BeEmpty())
		})

		ginkgo.It("refreshes once when inside the expiry buffer", func() {
			near := freshSession()
			near.ExpiresAt = time.Now().Add(30 * time.Second).UnixMilli()

			rec := httptest.NewRecorder()
			gomega.Expect(manager.Create(rec, near)).To(gomega.Succeed())

			out := httptest.NewRecorder()
			sess, ok := manager.RefreshIfNeeded(ctx, out, requestWith(rec))
			gomega.Expect(ok).To(gomega.BeTrue())
			gomega.Expect(sess.AccessToken).To(gomega.Equal("refreshed-access"))
			gomega.Expect(sess.RefreshToken).To(gomega.Equal("refreshed-refresh"))
			gomega.Expect(provider.tokenCalls.Load()).To(gomega.Equal(int64(1)))

			// the refreshed session is persisted back into the cookie
			updated := manager.Current(requestWith(out))
			gomega.Expect(updated).NotTo(gomega.BeNil())
			gomega.Expect(updated.AccessToken).To(gomega.Equal("refreshed-access"))
		})

		ginkgo.It("leaves the prior cookie untouched when refresh fails", func() {
			provider.tokenStatus = http.StatusUnauthorized
			near := freshSession()
			near.ExpiresAt = time.Now().Add(30 * time.Second).UnixMilli()

			rec := httptest.NewRecorder()
			gomega.Expect(manager.Create(rec, near)).To(gomega.Succeed())

			out := httptest.NewRecorder()
			_, ok := manager.RefreshIfNeeded(ctx, out, requestWith(rec))
			gomega.Expect(ok).To(gomega.BeFalse())
			gomega.Expect(out.Result().Cookies()).To(gomega.BeEmpty())
		})

		ginkgo.It("reports failure without a session", func() {
			out := httptest.NewRecorder()
			sess, ok := manager.RefreshIfNeeded(ctx, out, httptest.NewRequest(http.MethodGet, "/", nil))
			gomega.Expect(sess).To(gomega.BeNil())
			gomega.Expect(ok).To(gomega.BeFalse())
		})
	})

	ginkgo.Describe("ValidateAndUserID", func() {
		ginkgo.It("returns the user id for a valid session", func() {
			rec := httptest.NewRecorder()
			gomega.Expect(manager.Create(rec, freshSession())).To(gomega.Succeed())

			id, err := manager.ValidateAndUserID(ctx, httptest.NewRecorder(), requestWith(rec))
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(id).To(gomega.Equal(int64(5)))
		})

		ginkgo.It("is unauthorized without a cookie", func() {
			_, err := manager.ValidateAndUserID(ctx, httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
			gomega.Expect(err).To(gomega.MatchError(internal.ErrUnauthorized))
		})

		ginkgo.It("is token_expired when expired and refresh fails", func() {
			provider.tokenStatus = http.StatusUnauthorized
			expired := freshSession()
			expired.ExpiresAt = time.Now().Add(-time.Minute).UnixMilli()

			rec := httptest.NewRecorder()
			gomega.Expect(manager.Create(rec, expired)).To(gomega.Succeed())

			_, err := manager.ValidateAndUserID(ctx, httptest.NewRecorder(), requestWith(rec))
			gomega.Expect(err).To(gomega.MatchError(internal.ErrTokenExpired))
		})
	})

	ginkgo.Describe("Terminate", func() {
		ginkgo.It("clears local state before notifying the provider", func() {
			rec := httptest.NewRecorder()
			gomega.Expect(manager.Create(rec, freshSession())).To(gomega.Succeed())

			out := httptest.NewRecorder()
			gomega.Expect(manager.Terminate(ctx, out, requestWith(rec))).To(gomega.BeTrue())
			gomega.Expect(provider.logoutCalls.Load()).To(gomega.Equal(int64(1)))

			var cleared bool
			for _, c := range out.Result().Cookies() {
				if c.Name == "aw_session" && c.MaxAge < 0 {
					cleared = true
				}
			}
			gomega.Expect(cleared).To(gomega.BeTrue())
		})

		ginkgo.It("succeeds locally even without a session", func() {
			out := httptest.NewRecorder()
			gomega.Expect(manager.Terminate(ctx, out, httptest.NewRequest(http.MethodPost, "/", nil))).To(gomega.BeTrue())
			gomega.Expect(provider.logoutCalls.Load()).To(gomega.BeZero())
		})
	})

	ginkgo.Describe("Pending", func() {
		ginkgo.It("round-trips state and verifier", func() {
			rec := httptest.NewRecorder()
			gomega.Expect(manager.SetPending(rec, "state-1", "verifier-1")).To(gomega.Succeed())

			pending := manager.Pending(requestWith(rec))
			gomega.Expect(pending).NotTo(gomega.BeNil())
			gomega.Expect(pending.State).To(gomega.Equal("state-1"))
			gomega.Expect(pending.CodeVerifier).To(gomega.Equal("verifier-1"))
		})

		ginkgo.It("expires pending logins past their TTL", func() {
			short := newManager(internal.SessionConfig{PendingTTL: time.Nanosecond})

			rec := httptest.NewRecorder()
			gomega.Expect(short.SetPending(rec, "state-1", "verifier-1")).To(gomega.Succeed())

			time.Sleep(time.Millisecond)
			gomega.Expect(short.Pending(requestWith(rec))).To(gomega.BeNil())
		})

		ginkgo.It("returns nil for an absent pending cookie", func() {
			gomega.Expect(manager.Pending(httptest.NewRequest(http.MethodGet, "/", nil))).To(gomega.BeNil())
		})
	})
})
