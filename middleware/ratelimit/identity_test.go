package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDefaultIdentityFunc_ContextUserWins(t *testing.T) {
	fn := DefaultIdentityFunc("X-User", true)

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	r.Header.Set("X-User", "do-header")
	r = r.WithContext(WithUserID(r.Context(), "42"))

	if got := fn(r); got != "user:42" {
		t.Fatalf("expected context subject to win, got %q", got)
	}
}

func TestDefaultIdentityFunc_HeaderWhenNoContext(t *testing.T) {
	fn := DefaultIdentityFunc("X-User", false)

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	r.Header.Set("X-User", " maria ")

	if got := fn(r); got != "user:maria" {
		t.Fatalf("expected header subject, got %q", got)
	}
}

func TestDefaultIdentityFunc_TrustXForwardedForUsesFirstIP(t *testing.T) {
	fn := DefaultIdentityFunc("", true)

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.9:5555"
	r.Header.Set("X-Forwarded-For", "1.2.3.4, 5.6.7.8")

	if got := fn(r); got != "ip:1.2.3.4" {
		t.Fatalf("expected first XFF ip, got %q", got)
	}
}

func TestDefaultIdentityFunc_IgnoresXFFWhenNotTrusted(t *testing.T) {
	fn := DefaultIdentityFunc("", false)

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.9:5555"
	r.Header.Set("X-Forwarded-For", "1.2.3.4")

	if got := fn(r); got != "ip:10.0.0.9" {
		t.Fatalf("expected remote host when XFF is untrusted, got %q", got)
	}
}

func TestDefaultIdentityFunc_FallbacksToRemoteAddrHost(t *testing.T) {
	fn := DefaultIdentityFunc("", false)

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.9:5555"

	if got := fn(r); got != "ip:10.0.0.9" {
		t.Fatalf("expected remote host, got %q", got)
	}
}

func TestUserIDFromContext_EmptyIsAbsent(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	if _, ok := UserIDFromContext(r.Context()); ok {
		t.Fatalf("expected no subject in fresh context")
	}

	ctx := WithUserID(r.Context(), "  ")
	if _, ok := UserIDFromContext(ctx); ok {
		t.Fatalf("expected blank subject to be treated as absent")
	}
}
