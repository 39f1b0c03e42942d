package application

import (
	"context"
	"fmt"
	"time"

	"quota-gateway/middleware/ratelimit/domain"
)

const (
	minuteSeconds = 60
	hourSeconds   = 3600

	// DefaultNamespace prefixa toda chave de contador no store.
	DefaultNamespace = "ratelimit"
)

// Accountant aplica o algoritmo de janela fixa contra o store compartilhado.
//
// São janelas fixas (contador zera em fronteiras discretas), não deslizantes:
// o cliente consegue até 2x a taxa configurada atravessando uma fronteira.
// É uma troca deliberada de exatidão por custo (um INCR por granularidade) e
// faz parte do contrato — não trocar por token bucket ou suavização.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
type Accountant struct {
	Store     domain.CounterStore
	Namespace string

	// Now permite injetar o relógio em testes. Nil usa time.Now.
	Now func() time.Time
}

// Check incrementa os contadores de minuto e hora da (identidade, endpoint) e
// decide admitir ou negar segundo a política.
//
// Os dois contadores são incrementados ANTES do veredito: uma requisição
// negada também consome uma unidade de cota (count-on-deny). Isso é contrato
// observável — mudar altera a aritmética que os clientes enxergam.
func (a Accountant) Check(ctx context.Context, id domain.Identity, endpoint domain.EndpointKey, pol domain.Policy) (domain.Decision, error) {
	now := time.Now()
	if a.Now != nil {
		now = a.Now()
	}
	unix := now.Unix()

	minuteID := unix / minuteSeconds
	hourID := unix / hourSeconds

	ns := a.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}

	minuteKey := fmt.Sprintf("%s:%s:%s:minute:%d", ns, id, endpoint, minuteID)
	hourKey := fmt.Sprintf("%s:%s:%s:hour:%d", ns, id, endpoint, hourID)

	minuteCount, _, err := a.Store.Incr(ctx, minuteKey, minuteSeconds*time.Second)
	if err != nil {
		return domain.Decision{}, err
	}
	hourCount, _, err := a.Store.Incr(ctx, hourKey, hourSeconds*time.Second)
	if err != nil {
		return domain.Decision{}, err
	}

	minuteReset := (minuteID + 1) * minuteSeconds
	hourReset := (hourID + 1) * hourSeconds

	// limite 0 = granularidade sem teto; a checagem é pulada
	minuteExceeded := pol.PerMinute > 0 && minuteCount > int64(pol.PerMinute)
	hourExceeded := pol.PerHour > 0 && hourCount > int64(pol.PerHour)

	dec := domain.Decision{
		Allowed: !minuteExceeded && !hourExceeded,
		Minute:  windowState(pol.PerMinute, minuteCount, minuteReset),
		Hour:    windowState(pol.PerHour, hourCount, hourReset),
	}

	if !dec.Allowed {
		// o reset informado é o que de fato relaxa o limite violado:
		// se a hora estourou, esperar só a virada do minuto não resolve.
		reset := minuteReset
		if hourExceeded {
			reset = hourReset
		}
		// unix está truncado para baixo, então o valor arredonda para cima
		// e nunca é negativo (reset > unix por construção).
		dec.RetryAfter = int(reset - unix)
	}

	return dec, nil
}

func windowState(limit int, count int64, resetAt int64) domain.WindowState {
	remaining := 0
	if limit > 0 {
		remaining = limit - int(count)
		if remaining < 0 {
			remaining = 0
		}
	}
	return domain.WindowState{
		Limit:     limit,
		Count:     count,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}
