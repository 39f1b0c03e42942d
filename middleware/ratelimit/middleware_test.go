package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"quota-gateway/middleware/ratelimit/domain"
	"quota-gateway/middleware/ratelimit/infra"
)

// relógio fixo no meio das janelas de minuto e hora, para os cenários não
// atravessarem uma fronteira no meio do teste
var fixedNow = time.Unix(1_700_000_000, 0)

func fixedClock() time.Time { return fixedNow }

type failingStore struct{}

func (failingStore) Incr(context.Context, string, time.Duration) (int64, time.Duration, error) {
	return 0, 0, fmt.Errorf("%w: connection refused", domain.ErrStoreUnavailable)
}

func (failingStore) Healthy(context.Context) bool { return false }

func countingHandler(calls *int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

func doRequest(h http.Handler, method, target, remoteAddr string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, target, nil)
	r.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestMiddleware_LoginScenarioFiveThenDeny(t *testing.T) {
	calls := 0
	h := Middleware(Options{
		Store: infra.NewMemoryStore(),
		Table: DefaultPolicyTable(),
		Clock: fixedClock,
	})(countingHandler(&calls))

	// cinco primeiras passam, com headers refletindo o saldo
	for i := 1; i <= 5; i++ {
		w := doRequest(h, http.MethodPost, "http://example/api/auth/login", "10.0.0.1:1234")
		if w.Code != http.StatusOK {
			t.Fatalf("expected request %d to pass, got %d", i, w.Code)
		}
		if got := w.Header().Get(HeaderLimitMinute); got != "5" {
			t.Fatalf("expected minute limit header 5, got %q", got)
		}
		if want := strconv.Itoa(5 - i); w.Header().Get(HeaderRemainingMinute) != want {
			t.Fatalf("expected minute remaining %s on request %d, got %q", want, i, w.Header().Get(HeaderRemainingMinute))
		}
	}

	// a sexta é negada, mas ainda custou uma unidade
	w := doRequest(h, http.MethodPost, "http://example/api/auth/login", "10.0.0.1:1234")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on sixth request, got %d", w.Code)
	}
	if got := w.Header().Get(HeaderRemainingMinute); got != "0" {
		t.Fatalf("expected minute remaining 0 on denial, got %q", got)
	}

	retryAfter, err := strconv.Atoi(w.Header().Get(HeaderRetryAfter))
	if err != nil {
		t.Fatalf("expected numeric Retry-After, got %q", w.Header().Get(HeaderRetryAfter))
	}
	if retryAfter < 1 || retryAfter > 60 {
		t.Fatalf("expected Retry-After within (0,60], got %d", retryAfter)
	}

	var body struct {
		Error      string `json:"error"`
		Message    string `json:"message"`
		RetryAfter int    `json:"retry_after"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected JSON body, got %q: %v", w.Body.String(), err)
	}
	if body.Error != KindRateLimitExceeded {
		t.Fatalf("expected kind %q, got %q", KindRateLimitExceeded, body.Error)
	}
	if body.RetryAfter != retryAfter {
		t.Fatalf("expected body retry_after %d to match header, got %d", retryAfter, body.RetryAfter)
	}

	if calls != 5 {
		t.Fatalf("expected downstream handler called 5 times, got %d", calls)
	}
}

func TestMiddleware_DefaultPolicyAppliesToUnknownPath(t *testing.T) {
	calls := 0
	h := Middleware(Options{
		Store: infra.NewMemoryStore(),
		Table: DefaultPolicyTable(), // default 60/min
		Clock: fixedClock,
	})(countingHandler(&calls))

	for i := 1; i <= 60; i++ {
		w := doRequest(h, http.MethodGet, "http://example/qualquer/rota", "10.0.0.2:1234")
		if w.Code != http.StatusOK {
			t.Fatalf("expected request %d to pass under default policy, got %d", i, w.Code)
		}
	}

	w := doRequest(h, http.MethodGet, "http://example/qualquer/rota", "10.0.0.2:1234")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 61st request denied under default policy, got %d", w.Code)
	}
	if calls != 60 {
		t.Fatalf("expected 60 downstream calls, got %d", calls)
	}
}

func TestMiddleware_SkipPathsBypassQuota(t *testing.T) {
	calls := 0
	h := Middleware(Options{
		Store: infra.NewMemoryStore(),
		Table: domain.PolicyTable{Default: domain.Policy{PerMinute: 1, PerHour: 1}},
		Clock: fixedClock,
	})(countingHandler(&calls))

	for i := 0; i < 10; i++ {
		w := doRequest(h, http.MethodGet, "http://example/health", "10.0.0.3:1234")
		if w.Code != http.StatusOK {
			t.Fatalf("expected health probe to bypass quota, got %d", w.Code)
		}
		if w.Header().Get(HeaderLimitMinute) != "" {
			t.Fatalf("expected no rate limit headers on skipped path")
		}
	}
	if calls != 10 {
		t.Fatalf("expected 10 downstream calls, got %d", calls)
	}
}

func TestMiddleware_FailOpenAdmitsWithoutHeaders(t *testing.T) {
	calls := 0
	h := Middleware(Options{
		Store:    failingStore{},
		Table:    DefaultPolicyTable(),
		FailMode: FailOpen,
		Clock:    fixedClock,
	})(countingHandler(&calls))

	for i := 0; i < 5; i++ {
		w := doRequest(h, http.MethodGet, "http://example/api/users/", "10.0.0.4:1234")
		if w.Code != http.StatusOK {
			t.Fatalf("expected fail-open to admit, got %d", w.Code)
		}
		// nenhuma contagem é conhecida: headers não podem alegar saldo
		if w.Header().Get(HeaderRemainingMinute) != "" || w.Header().Get(HeaderRemainingHour) != "" {
			t.Fatalf("expected no rate limit headers in fail-open degradation")
		}
	}
	if calls != 5 {
		t.Fatalf("expected all requests to reach downstream, got %d", calls)
	}
}

func TestMiddleware_FailClosedRejectsWithDistinctKind(t *testing.T) {
	calls := 0
	h := Middleware(Options{
		Store:    failingStore{},
		Table:    DefaultPolicyTable(),
		FailMode: FailClosed,
		Clock:    fixedClock,
	})(countingHandler(&calls))

	w := doRequest(h, http.MethodGet, "http://example/api/users/", "10.0.0.5:1234")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 in fail-closed degradation, got %d", w.Code)
	}

	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected JSON body, got %q: %v", w.Body.String(), err)
	}
	// degradação não pode se confundir com estouro de cota
	if body.Error != KindStoreUnavailable {
		t.Fatalf("expected kind %q, got %q", KindStoreUnavailable, body.Error)
	}
	if body.Error == KindRateLimitExceeded {
		t.Fatalf("degraded response must be distinct from a quota denial")
	}
	if calls != 0 {
		t.Fatalf("expected downstream not to run in fail-closed, got %d calls", calls)
	}
}

func TestMiddleware_AuthenticatedUserHasOwnQuota(t *testing.T) {
	calls := 0
	h := Middleware(Options{
		Store: infra.NewMemoryStore(),
		Table: DefaultPolicyTable(), // login: 5/min
		Clock: fixedClock,
	})(countingHandler(&calls))

	// esgota a cota do IP anônimo
	for i := 0; i < 6; i++ {
		doRequest(h, http.MethodPost, "http://example/api/auth/login", "10.0.0.6:1234")
	}

	// mesmo IP, mas sujeito autenticado: identidade própria, cota própria
	r := httptest.NewRequest(http.MethodPost, "http://example/api/auth/login", nil)
	r.RemoteAddr = "10.0.0.6:1234"
	r = r.WithContext(WithUserID(r.Context(), "42"))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("expected authenticated user to have separate quota, got %d", w.Code)
	}
}

func TestMiddleware_NilStoreIsPassthrough(t *testing.T) {
	calls := 0
	h := Middleware(Options{Table: DefaultPolicyTable()})(countingHandler(&calls))

	w := doRequest(h, http.MethodGet, "http://example/api/users/", "10.0.0.7:1234")
	if w.Code != http.StatusOK {
		t.Fatalf("expected passthrough without store, got %d", w.Code)
	}
	if w.Header().Get(HeaderLimitMinute) != "" {
		t.Fatalf("expected no headers without store")
	}
}

func TestMiddleware_RecordsStats(t *testing.T) {
	stats := infra.NewMemoryStatsStore()
	calls := 0
	h := Middleware(Options{
		Store: infra.NewMemoryStore(),
		Table: DefaultPolicyTable(),
		Stats: stats,
		Clock: fixedClock,
	})(countingHandler(&calls))

	for i := 0; i < 6; i++ {
		doRequest(h, http.MethodPost, "http://example/api/auth/login", "10.0.0.8:1234")
	}

	total := stats.Total()
	if total.Allowed != 5 || total.Denied != 1 {
		t.Fatalf("expected 5 allowed / 1 denied recorded, got %+v", total)
	}
	if c := stats.ByEndpoint()["/api/auth/login"]; c.Allowed != 5 || c.Denied != 1 {
		t.Fatalf("expected stats keyed by matched pattern, got %+v", c)
	}
}

func TestCombineStats_FansOutAndSkipsNil(t *testing.T) {
	a := infra.NewMemoryStatsStore()
	b := infra.NewMemoryStatsStore()

	combined := CombineStats(a, nil, b)
	if combined == nil {
		t.Fatalf("expected combined store")
	}
	_ = combined.Record(context.Background(), domain.StatsEvent{Allowed: true})

	if a.Total().Allowed != 1 || b.Total().Allowed != 1 {
		t.Fatalf("expected event recorded in both stores")
	}

	if CombineStats(nil, nil) != nil {
		t.Fatalf("expected nil when no stores given")
	}
}
