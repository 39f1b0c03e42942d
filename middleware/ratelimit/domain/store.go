package domain

import (
	"context"
	"time"
)

// CounterStore é o contrato mínimo sobre o armazenamento compartilhado de
// contadores. É a única coordenação entre instâncias do gateway: o incremento
// precisa ser atômico no store (nunca read-modify-write no cliente).
//
// Semântica de Incr:
//   - incrementa o contador da chave e retorna o novo valor;
//   - o TTL é atribuído apenas na criação da chave (primeiro incremento);
//     incrementos seguintes NÃO estendem o TTL, para a janela ter fronteira
//     exata em vez de deslizante;
//   - remaining é o TTL restante da chave após o incremento;
//   - em falha de rede/protocolo o erro embrulha ErrStoreUnavailable e
//     nenhuma contagem é inventada.
type CounterStore interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (count int64, remaining time.Duration, err error)
	Healthy(ctx context.Context) bool
}
