package ratelimit

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"quota-gateway/middleware/ratelimit/application"
	"quota-gateway/middleware/ratelimit/domain"

	"golang.org/x/time/rate"
)

// FailMode escolhe o comportamento quando o store de contadores está
// indisponível. Os dois modos têm trade-offs opostos — disponibilidade versus
// proteção — então a escolha é configuração explícita, nunca hardcoded.
type FailMode string

const (
	// FailOpen admite a requisição sem cobrar nem checar cota, registrando a
	// degradação. Headers X-RateLimit são omitidos (nenhuma contagem é
	// conhecida).
	FailOpen FailMode = "open"
	// FailClosed rejeita com 503 e kind próprio, distinto de uma negação de
	// cota.
	FailClosed FailMode = "closed"
)

func ParseFailMode(s string) (FailMode, bool) {
	switch FailMode(strings.ToLower(strings.TrimSpace(s))) {
	case FailOpen:
		return FailOpen, true
	case FailClosed:
		return FailClosed, true
	}
	return "", false
}

type Options struct {
	// Store é o contador compartilhado. Nil desativa a cota (passthrough).
	Store domain.CounterStore
	// Table é a tabela de políticas; valide no startup com Table.Validate.
	Table domain.PolicyTable
	// Stats recebe cada decisão, best-effort. Use CombineStats para mais de
	// um destino.
	Stats domain.StatsStore

	IdentityFn IdentityFunc
	// IdentityHeader, se definido, é lido como sujeito autenticado quando o
	// contexto não tem um (ex: header injetado por um proxy de auth).
	IdentityHeader     string
	TrustXForwardedFor bool

	// Namespace prefixa as chaves no store (padrão "ratelimit").
	Namespace string

	// FailMode em branco equivale a FailOpen, o comportamento histórico.
	FailMode FailMode

	// SkipPaths são prefixos isentos de cota. Nil usa DefaultSkipPaths();
	// lista vazia não isenta nada.
	SkipPaths []string

	// Clock permite relógio determinístico em testes. Nil usa time.Now.
	Clock func() time.Time
}

// DefaultSkipPaths lista os prefixos que não consomem cota: sondas de saúde,
// métricas e documentação.
func DefaultSkipPaths() []string {
	return []string{"/health", "/metrics", "/docs", "/redoc", "/openapi.json", "/static"}
}

// Middleware monta o gate de admissão: identifica o cliente, resolve a
// política do endpoint, consulta o Accountant e ou admite (anotando a
// resposta) ou rejeita sem executar o handler seguinte.
//
// Uma passada por requisição, sem retries — re-tentar aqui só adicionaria
// latência durante uma degradação do store.
func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.IdentityFn == nil {
		opts.IdentityFn = DefaultIdentityFunc(opts.IdentityHeader, opts.TrustXForwardedFor)
	}
	if opts.FailMode == "" {
		opts.FailMode = FailOpen
	}
	if opts.SkipPaths == nil {
		opts.SkipPaths = DefaultSkipPaths()
	}

	acct := application.Accountant{
		Store:     opts.Store,
		Namespace: opts.Namespace,
		Now:       opts.Clock,
	}

	// estrangula o log de degradação: uma indisponibilidade do Redis não
	// pode virar uma linha de log por requisição
	degradeLog := rate.NewLimiter(rate.Every(10*time.Second), 1)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if opts.Store == nil || skipPath(opts.SkipPaths, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			id := opts.IdentityFn(r)
			endpoint := domain.EndpointKey(r.URL.Path)
			pol, matched := opts.Table.Resolve(endpoint)

			dec, err := acct.Check(r.Context(), id, endpoint, pol)
			if err != nil {
				if degradeLog.Allow() {
					log.Printf("ratelimit: counter store degraded, failing %s: %v", opts.FailMode, err)
				}
				record(opts.Stats, r, domain.StatsEvent{
					Identity: id,
					Endpoint: matched,
					Allowed:  opts.FailMode == FailOpen,
					Degraded: true,
				})
				if opts.FailMode == FailClosed {
					writeDegraded(w)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			record(opts.Stats, r, domain.StatsEvent{
				Identity: id,
				Endpoint: matched,
				Allowed:  dec.Allowed,
			})

			if !dec.Allowed {
				writeRejection(w, dec)
				return
			}

			annotate(w.Header(), dec)
			next.ServeHTTP(w, r)
		})
	}
}

func skipPath(prefixes []string, path string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func record(stats domain.StatsStore, r *http.Request, ev domain.StatsEvent) {
	if stats == nil {
		return
	}
	ev.Method = r.Method
	ev.Path = r.URL.Path
	ev.At = time.Now()
	_ = stats.Record(r.Context(), ev)
}

type multiStats []domain.StatsStore

func (m multiStats) Record(ctx context.Context, ev domain.StatsEvent) error {
	var firstErr error
	for _, s := range m {
		if err := s.Record(ctx, ev); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// CombineStats agrega vários destinos de estatística em um só. Nils são
// ignorados; zero destinos vira nil (sem estatística).
func CombineStats(stores ...domain.StatsStore) domain.StatsStore {
	out := make(multiStats, 0, len(stores))
	for _, s := range stores {
		if s != nil {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
