package identity_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cyberpolicy/cracklab/internal/identity"
	"github.com/gin-gonic/gin"
)

func newTestIssuer(t *testing.T, ttl time.Duration) *identity.AdminTokenIssuer {
	t.Helper()
	ti, err := identity.NewAdminTokenIssuer([]byte("test-signing-key"), "cracklab-test", ttl)
	if err != nil {
		t.Fatal(err)
	}
	return ti
}

func TestAdminTokenIssuer_roundTrip(t *testing.T) {
	ti := newTestIssuer(t, time.Hour)

	token, err := ti.Issue()
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}
	if parts := strings.Split(token, "."); len(parts) != 3 {
		t.Errorf("expected 3-part JWT, got %d parts", len(parts))
	}

	claims, err := ti.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error: %v", err)
	}
	if claims.Role != "admin" || claims.Subject != "admin" {
		t.Errorf("unexpected claims: %+v", claims)
	}
	if claims.ID == "" {
		t.Error("expected a jti")
	}
}

func TestAdminTokenIssuer_defaultTTL(t *testing.T) {
	ti := newTestIssuer(t, 0)
	if ti.TTL() != identity.DefaultAdminTTL {
		t.Errorf("TTL: got %v, want %v", ti.TTL(), identity.DefaultAdminTTL)
	}
}

func TestAdminTokenIssuer_expired(t *testing.T) {
	ti := newTestIssuer(t, time.Nanosecond)
	token, err := ti.Issue()
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(time.Millisecond)

	if _, err := ti.Verify(token); err == nil {
		t.Error("expected expired token to fail verification")
	}
}

func TestAdminTokenIssuer_wrongKey(t *testing.T) {
	a := newTestIssuer(t, time.Hour)
	b, err := identity.NewAdminTokenIssuer([]byte("another-key"), "cracklab-test", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	token, _ := a.Issue()
	if _, err := b.Verify(token); err == nil {
		t.Error("expected token signed with a different key to be rejected")
	}
}

func TestAdminTokenIssuer_wrongIssuer(t *testing.T) {
	a := newTestIssuer(t, time.Hour)
	b, _ := identity.NewAdminTokenIssuer([]byte("test-signing-key"), "someone-else", time.Hour)
	token, _ := a.Issue()
	if _, err := b.Verify(token); err == nil {
		t.Error("expected issuer mismatch to be rejected")
	}
}

func TestNewAdminTokenIssuer_emptyKey(t *testing.T) {
	if _, err := identity.NewAdminTokenIssuer(nil, "x", time.Hour); err == nil {
		t.Error("expected an error for an empty key")
	}
}

func TestRandomAdminTokenIssuer(t *testing.T) {
	a, err := identity.NewRandomAdminTokenIssuer("cracklab-test", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := identity.NewRandomAdminTokenIssuer("cracklab-test", time.Hour)
	token, _ := a.Issue()
	if _, err := a.Verify(token); err != nil {
		t.Errorf("own token rejected: %v", err)
	}
	if _, err := b.Verify(token); err == nil {
		t.Error("random issuers must not share keys")
	}
}

func TestSecretMatches(t *testing.T) {
	if !identity.SecretMatches("s3cret", "s3cret") {
		t.Error("equal secrets must match")
	}
	for _, given := range []string{"", "s3cre", "s3cret!", "S3CRET"} {
		if identity.SecretMatches(given, "s3cret") {
			t.Errorf("%q must not match", given)
		}
	}
}

// ── Middleware ───────────────────────────────────────────────────────────

func adminRouter(ti *identity.AdminTokenIssuer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/admin", identity.RequireAdmin(ti), func(c *gin.Context) {
		if identity.AdminClaimsFromCtx(c) == nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusOK)
	})
	return r
}

func TestRequireAdmin(t *testing.T) {
	ti := newTestIssuer(t, time.Hour)
	router := adminRouter(ti)
	token, _ := ti.Issue()

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid", "Bearer " + token, http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", "Basic " + token, http.StatusUnauthorized},
		{"garbage", "Bearer not.a.jwt", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("got %d, want %d: %s", w.Code, tt.want, w.Body.String())
			}
		})
	}
}
