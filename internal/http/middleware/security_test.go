package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

// secRouter builds a minimal engine with SecurityHeaders and a stand-in
// moderation endpoint. pre runs before the middleware, like RequestID does
// in the real chain.
func secRouter(opt SecurityOptions, pre gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if pre != nil {
		r.Use(pre)
	}
	r.Use(SecurityHeaders(opt))
	r.GET("/interactions", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"interactions": []string{}})
	})
	return r
}

func TestSecurityHeaders_Baseline_And_ExposeHeader(t *testing.T) {
	t.Run("baseline headers + expose X-Request-ID", func(t *testing.T) {
		r := secRouter(SecurityOptions{}, func(c *gin.Context) {
			c.Header("X-Request-ID", "rid-123")
			c.Next()
		})

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/interactions", nil))

		h := w.Header()
		if h.Get("X-Content-Type-Options") != "nosniff" ||
			h.Get("X-Frame-Options") != "DENY" ||
			h.Get("Referrer-Policy") != "no-referrer" {
			t.Fatalf("baseline headers missing: %#v", h)
		}
		// optional groups stay off by default
		if h.Get("Permissions-Policy") != "" || h.Get("Cache-Control") != "" ||
			h.Get("Strict-Transport-Security") != "" {
			t.Fatalf("unexpected optional headers: %#v", h)
		}
		if h.Get("Access-Control-Expose-Headers") != "X-Request-ID" {
			t.Fatalf("expose header = %q", h.Get("Access-Control-Expose-Headers"))
		}
	})

	t.Run("append to an existing expose header", func(t *testing.T) {
		r := secRouter(SecurityOptions{}, func(c *gin.Context) {
			c.Header("X-Request-ID", "rid-abc")
			c.Header("Access-Control-Expose-Headers", "ETag")
			c.Next()
		})

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/interactions", nil))

		if got := w.Header().Get("Access-Control-Expose-Headers"); got != "ETag, X-Request-ID" {
			t.Fatalf("expose header = %q", got)
		}
	})

	t.Run("never duplicate X-Request-ID", func(t *testing.T) {
		r := secRouter(SecurityOptions{}, func(c *gin.Context) {
			c.Header("X-Request-ID", "rid-xyz")
			c.Header("Access-Control-Expose-Headers", "X-Request-ID, ETag")
			c.Next()
		})

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/interactions", nil))

		if got := w.Header().Get("Access-Control-Expose-Headers"); got != "X-Request-ID, ETag" {
			t.Fatalf("expose header changed: %q", got)
		}
	})
}

func TestSecurityHeaders_WithPolicy_NoStore_HSTS_TLS(t *testing.T) {
	r := secRouter(SecurityOptions{
		EnableHSTS:   true,
		HSTSMaxAge:   24 * time.Hour, // 86400
		NoStore:      true,
		EnablePolicy: true,
	}, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/interactions", nil)
	req.TLS = &tls.ConnectionState{}
	r.ServeHTTP(w, req)

	h := w.Header()
	if h.Get("Permissions-Policy") == "" || h.Get("X-Permitted-Cross-Domain-Policies") != "none" {
		t.Fatalf("missing policy headers: %#v", h)
	}
	if h.Get("Cache-Control") != "no-store" || h.Get("Pragma") != "no-cache" || h.Get("Expires") != "0" {
		t.Fatalf("missing cache headers: %#v", h)
	}
	wantHSTS := "max-age=86400; includeSubDomains; preload"
	if h.Get("Strict-Transport-Security") != wantHSTS {
		t.Fatalf("HSTS = %q, want %q", h.Get("Strict-Transport-Security"), wantHSTS)
	}
}

func TestSecurityHeaders_HSTS_XForwardedProto(t *testing.T) {
	r := secRouter(SecurityOptions{EnableHSTS: true, HSTSMaxAge: time.Hour}, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/interactions", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	r.ServeHTTP(w, req)

	if got := w.Header().Get("Strict-Transport-Security"); !strings.HasPrefix(got, "max-age=") {
		t.Fatalf("expected HSTS header, got %q", got)
	}
}

func Test_isHTTPS(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if isHTTPS(req) {
		t.Fatal("plain HTTP should not be https")
	}

	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.TLS = &tls.ConnectionState{}
	if !isHTTPS(req2) {
		t.Fatal("TLS request should be https")
	}

	req3 := httptest.NewRequest(http.MethodGet, "/", nil)
	req3.Header.Set("X-Forwarded-Proto", "https")
	if !isHTTPS(req3) {
		t.Fatal("X-Forwarded-Proto=https should be https")
	}
}
