package ratelimit

import (
	"fmt"
	"os"

	"quota-gateway/middleware/ratelimit/domain"

	"gopkg.in/yaml.v3"
)

// Formato do arquivo de políticas:
//
//	default: {per_minute: 60, per_hour: 1000}
//	endpoints:
//	  /api/auth/login: {per_minute: 5, per_hour: 20}
//	  /api/users/:     {per_minute: 30, per_hour: 1000}
type policyFile struct {
	Default   policyEntry            `yaml:"default"`
	Endpoints map[string]policyEntry `yaml:"endpoints"`
}

type policyEntry struct {
	PerMinute int `yaml:"per_minute"`
	PerHour   int `yaml:"per_hour"`
}

// LoadPolicyFile carrega e valida a tabela de políticas de um arquivo YAML.
// Qualquer erro aqui embrulha domain.ErrInvalidConfig e deve ser fatal no
// startup — nunca rodar com tabela parcialmente válida.
func LoadPolicyFile(path string) (domain.PolicyTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.PolicyTable{}, fmt.Errorf("%w: read %q: %v", domain.ErrInvalidConfig, path, err)
	}

	var f policyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return domain.PolicyTable{}, fmt.Errorf("%w: parse %q: %v", domain.ErrInvalidConfig, path, err)
	}

	table := domain.PolicyTable{
		Default:   domain.Policy{PerMinute: f.Default.PerMinute, PerHour: f.Default.PerHour},
		Endpoints: make(map[domain.EndpointKey]domain.Policy, len(f.Endpoints)),
	}
	for pattern, entry := range f.Endpoints {
		table.Endpoints[domain.EndpointKey(pattern)] = domain.Policy{
			PerMinute: entry.PerMinute,
			PerHour:   entry.PerHour,
		}
	}

	if err := table.Validate(); err != nil {
		return domain.PolicyTable{}, err
	}
	return table, nil
}

// DefaultPolicyTable é a tabela embutida usada quando nenhum arquivo é
// fornecido: limites agressivos nas rotas de autenticação, moderados em
// /api/users/ e o default genérico de 60/min e 1000/h.
func DefaultPolicyTable() domain.PolicyTable {
	return domain.PolicyTable{
		Default: domain.Policy{PerMinute: 60, PerHour: 1000},
		Endpoints: map[domain.EndpointKey]domain.Policy{
			"/api/auth/login":           {PerMinute: 5, PerHour: 20},
			"/api/auth/register":        {PerMinute: 3, PerHour: 10},
			"/api/auth/forgot-password": {PerMinute: 2, PerHour: 5},
			"/api/users/":               {PerMinute: 30, PerHour: 1000},
		},
	}
}
