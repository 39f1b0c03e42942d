package infra

import (
	"context"

	"quota-gateway/middleware/ratelimit/domain"

	"github.com/prometheus/client_golang/prometheus"
)

// PromStats expõe as decisões da cota como métricas Prometheus.
//
// O label endpoint é o padrão casado na tabela de políticas ("default" quando
// nenhum casa), não o path bruto — cardinalidade limitada pela configuração.
type PromStats struct {
	decisions     *prometheus.CounterVec
	storeFailures prometheus.Counter
}

var _ domain.StatsStore = (*PromStats)(nil)

// NewPromStats registra as métricas no Registerer informado (nil usa o
// default do processo).
func NewPromStats(reg prometheus.Registerer) *PromStats {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	s := &PromStats{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quota_decisions_total",
			Help: "Decisões de admissão da cota por resultado e endpoint.",
		}, []string{"decision", "endpoint"}),
		storeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quota_store_failures_total",
			Help: "Checagens de cota que encontraram o store indisponível.",
		}),
	}
	reg.MustRegister(s.decisions, s.storeFailures)
	return s
}

func (s *PromStats) Record(_ context.Context, ev domain.StatsEvent) error {
	if ev.Degraded {
		s.storeFailures.Inc()
		return nil
	}

	decision := "denied"
	if ev.Allowed {
		decision = "allowed"
	}
	endpoint := string(ev.Endpoint)
	if endpoint == "" {
		endpoint = "default"
	}
	s.decisions.WithLabelValues(decision, endpoint).Inc()
	return nil
}
