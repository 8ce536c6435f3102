package oauth

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
	"github.com/assignwork/assignwork/pkg/logger"
)

// fakeProvider is an httptest-backed authorization server with call
// counters so tests can assert which endpoints were touched.
type fakeProvider struct {
	server *httptest.Server

	tokenCalls    atomic.Int64
	userinfoCalls atomic.Int64
	logoutCalls   atomic.Int64

	tokenStatus    int
	userinfoStatus int
	logoutStatus   int

	expiresIn    int64
	refreshToken string
}

func newFakeProvider() *fakeProvider {
	p := &fakeProvider{
		tokenStatus:    http.StatusOK,
		userinfoStatus: http.StatusOK,
		logoutStatus:   http.StatusOK,
		expiresIn:      3600,
		refreshToken:   "refresh-token-1",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		p.tokenCalls.Add(1)
		if p.tokenStatus != http.StatusOK {
			w.WriteHeader(p.tokenStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "access-token-1",
			"token_type":    "Bearer",
			"expires_in":    p.expiresIn,
			"refresh_token": p.refreshToken,
			"scope":         "openid email",
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		p.userinfoCalls.Add(1)
		if p.userinfoStatus != http.StatusOK {
			w.WriteHeader(p.userinfoStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"sub":      "ext-123",
			"email":    "alice@example.com",
			"username": "alice",
		})
	})
	mux.HandleFunc("/logout", func(w http.ResponseWriter, r *http.Request) {
		p.logoutCalls.Add(1)
		w.WriteHeader(p.logoutStatus)
	})

	p.server = httptest.NewServer(mux)
	return p
}

func (p *fakeProvider) config() internal.SSOConfig {
	return internal.SSOConfig{
		ClientID:      "client-id",
		ClientSecret:  "client-secret",
		AuthURL:       p.server.URL + "/authorize",
		TokenURL:      p.server.URL + "/token",
		UserInfoURL:   p.server.URL + "/userinfo",
		LogoutURL:     p.server.URL + "/logout",
		RedirectURL:   "http://localhost:8080/api/v1/auth/callback",
		Scopes:        []string{"openid", "email"},
		LogoutTimeout: 2 * time.Second,
	}
}

var _ = ginkgo.Describe("OAuth Client", func() {
	var (
		provider *fakeProvider
		client   *Client
		ctx      context.Context
	)

	ginkgo.BeforeEach(func() {
		provider = newFakeProvider()
		client = NewClient(provider.config(), logger.L())
		ctx = context.Background()
	})

	ginkgo.AfterEach(func() {
		provider.server.Close()
	})

	ginkgo.Describe("InitiateAuth", func() {
		ginkgo.It("embeds state and the S256 challenge in the authorize URL", func() {
			req, err := client.InitiateAuth()
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			gomega.Expect(req.AuthorizationURL).To(gomega.ContainSubstring("state=" + req.State))
			gomega.Expect(req.AuthorizationURL).To(gomega.ContainSubstring("code_challenge_method=S256"))
			gomega.Expect(req.AuthorizationURL).To(gomega.ContainSubstring(
				"code_challenge=" + GenerateCodeChallenge(req.CodeVerifier)))
		})
	})

	ginkgo.Describe("HandleCallback", func() {
		ginkgo.It("rejects a state mismatch before any provider call", func() {
			_, err := client.HandleCallback(ctx, CallbackParams{
				Code:          "code-1",
				State:         "attacker-state",
				ExpectedState: "issued-state",
				CodeVerifier:  "verifier",
			})
			gomega.Expect(err).To(gomega.MatchError(ErrInvalidState))
			gomega.Expect(provider.tokenCalls.Load()).To(gomega.BeZero())
			gomega.Expect(provider.userinfoCalls.Load()).To(gomega.BeZero())
		})

		ginkgo.It("rejects an empty expected state", func() {
			_, err := client.HandleCallback(ctx, CallbackParams{
				Code:  "code-1",
				State: "",
			})
			gomega.Expect(err).To(gomega.MatchError(ErrInvalidState))
		})

		ginkgo.It("returns tokens and identity on the happy path", func() {
			result, err := client.HandleCallback(ctx, CallbackParams{
				Code:          "code-1",
				State:         "issued-state",
				ExpectedState: "issued-state",
				CodeVerifier:  "verifier",
			})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(result.Tokens.AccessToken).To(gomega.Equal("access-token-1"))
			gomega.Expect(result.Tokens.ExpiresAt).To(gomega.BeNumerically(">", time.Now().UnixMilli()))
			gomega.Expect(result.Identity.Email).To(gomega.Equal("alice@example.com"))
			gomega.Expect(result.Identity.Username).To(gomega.Equal("alice"))
		})

		ginkgo.It("tags exchange failures with their own error", func() {
			provider.tokenStatus = http.StatusBadRequest

			_, err := client.HandleCallback(ctx, CallbackParams{
				Code:          "bad-code",
				State:         "s",
				ExpectedState: "s",
				CodeVerifier:  "verifier",
			})
			gomega.Expect(err).To(gomega.MatchError(ErrTokenExchangeFailed))
		})

		ginkgo.It("tags userinfo failures with their own error", func() {
			provider.userinfoStatus = http.StatusInternalServerError

			_, err := client.HandleCallback(ctx, CallbackParams{
				Code:          "code-1",
				State:         "s",
				ExpectedState: "s",
				CodeVerifier:  "verifier",
			})
			gomega.Expect(err).To(gomega.MatchError(ErrUserInfoFetchFailed))
		})
	})

	ginkgo.Describe("RefreshAccessToken", func() {
		ginkgo.It("returns a fresh token pair", func() {
			tokens := client.RefreshAccessToken(ctx, "old-refresh")
			gomega.Expect(tokens).NotTo(gomega.BeNil())
			gomega.Expect(tokens.AccessToken).To(gomega.Equal("access-token-1"))
			gomega.Expect(tokens.RefreshToken).To(gomega.Equal("refresh-token-1"))
		})

		ginkgo.It("keeps the old refresh token when rotation omits it", func() {
			provider.refreshToken = ""

			tokens := client.RefreshAccessToken(ctx, "old-refresh")
			gomega.Expect(tokens).NotTo(gomega.BeNil())
			gomega.Expect(tokens.RefreshToken).To(gomega.Equal("old-refresh"))
		})

		ginkgo.It("returns nil on provider failure", func() {
			provider.tokenStatus = http.StatusUnauthorized
			gomega.Expect(client.RefreshAccessToken(ctx, "old-refresh")).To(gomega.BeNil())
		})

		ginkgo.It("returns nil without a refresh token", func() {
			gomega.Expect(client.RefreshAccessToken(ctx, "")).To(gomega.BeNil())
			gomega.Expect(provider.tokenCalls.Load()).To(gomega.BeZero())
		})
	})

	ginkgo.Describe("FetchUserInfo", func() {
		ginkgo.It("falls back to email when username is missing", func() {
			mux := http.NewServeMux()
			mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(map[string]string{
					"sub":   "ext-9",
					"email": "noname@example.com",
				})
			})
			srv := httptest.NewServer(mux)
			defer srv.Close()

			cfg := provider.config()
			cfg.UserInfoURL = srv.URL + "/userinfo"
			c := NewClient(cfg, logger.L())

			identity := c.FetchUserInfo(ctx, "token")
			gomega.Expect(identity).NotTo(gomega.BeNil())
			gomega.Expect(identity.Username).To(gomega.Equal("noname@example.com"))
		})
	})

	ginkgo.Describe("Logout", func() {
		ginkgo.It("reports success when the provider accepts", func() {
			gomega.Expect(client.Logout(ctx, "token")).To(gomega.BeTrue())
			gomega.Expect(provider.logoutCalls.Load()).To(gomega.Equal(int64(1)))
		})

		ginkgo.It("reports failure without breaking on a rejecting provider", func() {
			provider.logoutStatus = http.StatusInternalServerError
			gomega.Expect(client.Logout(ctx, "token")).To(gomega.BeFalse())
		})

		ginkgo.It("treats a missing logout endpoint as success", func() {
			cfg := provider.config()
			cfg.LogoutURL = ""
			c := NewClient(cfg, logger.L())
			gomega.Expect(c.Logout(ctx, "token")).To(gomega.BeTrue())
		})
	})

	ginkgo.Describe("IsTokenExpired", func() {
		ginkgo.It("treats zero and negative expiry as expired", func() {
			gomega.Expect(IsTokenExpired(0, DefaultExpiryBuffer)).To(gomega.BeTrue())
			gomega.Expect(IsTokenExpired(-1, DefaultExpiryBuffer)).To(gomega.BeTrue())
		})

		ginkgo.It("reports expired inside the buffer window", func() {
			soon := time.Now().Add(30 * time.Second).UnixMilli()
			gomega.Expect(IsTokenExpired(soon, DefaultExpiryBuffer)).To(gomega.BeTrue())
		})

		ginkgo.It("reports valid outside the buffer window", func() {
			later := time.Now().Add(10 * time.Minute).UnixMilli()
			gomega.Expect(IsTokenExpired(later, DefaultExpiryBuffer)).To(gomega.BeFalse())
		})
	})

	ginkgo.Describe("CalculateExpiresAt", func() {
		ginkgo.It("converts relative seconds into absolute epoch milliseconds", func() {
			before := time.Now().Add(3600 * time.Second).UnixMilli()
			got := CalculateExpiresAt(3600)
			after := time.Now().Add(3600 * time.Second).UnixMilli()

			gomega.Expect(got).To(gomega.BeNumerically(">=", before))
			gomega.Expect(got).To(gomega.BeNumerically("<=", after))
		})
	})
})
