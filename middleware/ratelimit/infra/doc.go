// Package infra contém implementações concretas (infraestrutura) para os
// contratos definidos no pacote domain.
//
// Exemplos:
//   - RedisStore: contadores de janela fixa em Redis (INCR + EXPIRE NX)
//   - MemoryStore: mesma semântica em memória, para dev e testes
//   - RedisStatsStore / MemoryStatsStore / PromStats: destinos de estatística
//   - ChanPool: semáforo simples para limite de concorrência
package infra
