package ratelimit

import (
	"context"
	"net"
	"net/http"
	"strings"

	"quota-gateway/middleware/ratelimit/domain"
)

// IdentityFunc extrai a identidade de cota de uma requisição.
type IdentityFunc func(r *http.Request) domain.Identity

type ctxKey int

const userIDKey ctxKey = iota

// WithUserID anota o contexto com o sujeito autenticado. É o gancho para o
// middleware de autenticação (colaborador externo) informar quem é o cliente;
// a cota então passa a ser por usuário em vez de por IP.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// UserIDFromContext devolve o sujeito anotado por WithUserID, se houver.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	if !ok || strings.TrimSpace(id) == "" {
		return "", false
	}
	return id, true
}

// DefaultIdentityFunc resolve a identidade na ordem:
//
//  1. sujeito autenticado no contexto (WithUserID) -> "user:<id>"
//  2. header de identidade confiável, se configurado -> "user:<valor>"
//  3. IP do cliente -> "ip:<addr>" (primeiro hop do X-Forwarded-For quando
//     confiável, senão o host do RemoteAddr)
func DefaultIdentityFunc(identityHeader string, trustXFF bool) IdentityFunc {
	return func(r *http.Request) domain.Identity {
		if id, ok := UserIDFromContext(r.Context()); ok {
			return domain.Identity("user:" + id)
		}

		if identityHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(identityHeader)); v != "" {
				return domain.Identity("user:" + v)
			}
		}

		return domain.Identity("ip:" + clientIP(r, trustXFF))
	}
}

func clientIP(r *http.Request, trustXFF bool) string {
	if trustXFF {
		// pega o primeiro IP do X-Forwarded-For (cliente original)
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			parts := strings.Split(xff, ",")
			if len(parts) > 0 {
				ip := strings.TrimSpace(parts[0])
				if ip != "" {
					return ip
				}
			}
		}
	}

	// fallback: RemoteAddr
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
