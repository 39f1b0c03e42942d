package domain

import (
	"context"
	"time"
)

// StatsEvent representa um evento de decisão da cota.
//
// Endpoint é o padrão da tabela de políticas que casou (vazio = default),
// então tem cardinalidade limitada pela configuração — diferente de Path, que
// é o caminho bruto da requisição e não deve virar label/chave sem cuidado.
type StatsEvent struct {
	Identity Identity
	Endpoint EndpointKey
	Allowed  bool

	// Degraded marca decisões tomadas com o store indisponível
	// (admitidas em fail-open, rejeitadas em fail-closed).
	Degraded bool

	Method string
	Path   string

	At time.Time
}

// StatsStore é a estratégia de persistência para estatísticas de decisão.
//
// Implementações podem armazenar em Redis, memória, Prometheus, etc.
// O middleware trata erro como best-effort (não derruba a requisição).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
