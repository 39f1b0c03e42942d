package ratelimit

import (
	"encoding/json"
	"net/http"

	"quota-gateway/middleware/ratelimit/domain"
)

// Nomes de header do contrato: limit/remaining/reset por granularidade.
const (
	HeaderLimitMinute     = "X-RateLimit-Limit-Minute"
	HeaderRemainingMinute = "X-RateLimit-Remaining-Minute"
	HeaderResetMinute     = "X-RateLimit-Reset-Minute"
	HeaderLimitHour       = "X-RateLimit-Limit-Hour"
	HeaderRemainingHour   = "X-RateLimit-Remaining-Hour"
	HeaderResetHour       = "X-RateLimit-Reset-Hour"
	HeaderRetryAfter      = "Retry-After"
)

// Kinds de erro no corpo JSON. O kind de degradação é deliberadamente
// distinto do de cota: "você estourou o orçamento" não pode se confundir com
// "o throttle está quebrado".
const (
	KindRateLimitExceeded = "rate_limit_exceeded"
	KindStoreUnavailable  = "quota_store_unavailable"
)

type rejectionBody struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after,omitempty"`
}

// annotate escreve os headers informativos de uma decisão. Granularidade sem
// teto (limite 0) não emite headers — não há contagem com significado.
func annotate(h http.Header, dec domain.Decision) {
	if dec.Minute.Limit > 0 {
		h.Set(HeaderLimitMinute, formatInt(dec.Minute.Limit))
		h.Set(HeaderRemainingMinute, formatInt(dec.Minute.Remaining))
		h.Set(HeaderResetMinute, formatInt64(dec.Minute.ResetAt))
	}
	if dec.Hour.Limit > 0 {
		h.Set(HeaderLimitHour, formatInt(dec.Hour.Limit))
		h.Set(HeaderRemainingHour, formatInt(dec.Hour.Remaining))
		h.Set(HeaderResetHour, formatInt64(dec.Hour.ResetAt))
	}
}

func writeRejection(w http.ResponseWriter, dec domain.Decision) {
	annotate(w.Header(), dec)
	w.Header().Set(HeaderRetryAfter, formatInt(dec.RetryAfter))
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(rejectionBody{
		Error:      KindRateLimitExceeded,
		Message:    "Too many requests. Please try again later.",
		RetryAfter: dec.RetryAfter,
	})
}

func writeDegraded(w http.ResponseWriter) {
	// sem headers X-RateLimit: nenhuma contagem é conhecida
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusServiceUnavailable)
	_ = json.NewEncoder(w).Encode(rejectionBody{
		Error:   KindStoreUnavailable,
		Message: "Request throttling is temporarily degraded. Please try again shortly.",
	})
}
