package domain

import (
	"fmt"
	"strings"
)

// PolicyTable é a tabela de políticas por endpoint com fallback explícito.
//
// A resolução é: match exato, depois o prefixo mais longo que casar, depois
// Default. Tabela plana carregada uma vez no startup; imutável durante a vida
// do processo (hot-reload fora de escopo).
type PolicyTable struct {
	Default   Policy
	Endpoints map[EndpointKey]Policy
}

// Resolve retorna a política aplicável ao endpoint e o padrão que casou
// (vazio quando caiu no Default). Função pura sobre a tabela; não falha.
func (t PolicyTable) Resolve(key EndpointKey) (Policy, EndpointKey) {
	if pol, ok := t.Endpoints[key]; ok {
		return pol, key
	}

	// prefixo mais longo vence; desempate determinístico por comprimento
	var matched EndpointKey
	var best Policy
	for pattern, pol := range t.Endpoints {
		if strings.HasPrefix(string(key), string(pattern)) && len(pattern) > len(matched) {
			matched = pattern
			best = pol
		}
	}
	if matched != "" {
		return best, matched
	}

	return t.Default, ""
}

// Validate verifica a tabela no startup. Qualquer erro aqui é fatal antes do
// processo começar a servir — nunca em tempo de requisição.
func (t PolicyTable) Validate() error {
	if err := validatePolicy(t.Default); err != nil {
		return fmt.Errorf("%w: default policy: %v", ErrInvalidConfig, err)
	}
	for pattern, pol := range t.Endpoints {
		if strings.TrimSpace(string(pattern)) == "" {
			return fmt.Errorf("%w: empty endpoint pattern", ErrInvalidConfig)
		}
		if err := validatePolicy(pol); err != nil {
			return fmt.Errorf("%w: endpoint %q: %v", ErrInvalidConfig, pattern, err)
		}
	}
	return nil
}

func validatePolicy(p Policy) error {
	if p.PerMinute < 0 {
		return fmt.Errorf("per_minute must be >= 0, got %d", p.PerMinute)
	}
	if p.PerHour < 0 {
		return fmt.Errorf("per_hour must be >= 0, got %d", p.PerHour)
	}
	return nil
}
