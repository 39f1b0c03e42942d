package infra

import (
	"context"
	"sync"
	"time"

	"quota-gateway/middleware/ratelimit/domain"
)

// MemoryStore é a implementação em memória de domain.CounterStore, com a
// mesma semântica de janela fixa do RedisStore (TTL fixado na criação da
// chave) e limpeza periódica de chaves expiradas.
//
// Útil para desenvolvimento e testes. Não coordena entre processos — em
// produção com mais de uma instância, use o RedisStore.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memEntry

	cleanupEvery time.Duration
}

type memEntry struct {
	count     int64
	expiresAt time.Time
}

var _ domain.CounterStore = (*MemoryStore)(nil)

type MemoryStoreOption func(*MemoryStore)

func WithCleanupEvery(d time.Duration) MemoryStoreOption {
	return func(s *MemoryStore) { s.cleanupEvery = d }
}

func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		entries:      make(map[string]*memEntry),
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Incr(_ context.Context, key string, ttl time.Duration) (int64, time.Duration, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.entries[key]
	if !ok || !ent.expiresAt.After(now) {
		// chave nova (ou expirada): o TTL é fixado aqui e não é estendido
		// por incrementos seguintes
		ent = &memEntry{expiresAt: now.Add(ttl)}
		s.entries[key] = ent
	}
	ent.count++

	return ent.count, ent.expiresAt.Sub(now), nil
}

func (s *MemoryStore) Healthy(context.Context) bool { return true }

func (s *MemoryStore) Cleanup() {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if !ent.expiresAt.After(now) {
			delete(s.entries, k)
		}
	}
}

// StartJanitor inicia uma goroutine que remove chaves expiradas
// periodicamente. Pare cancelando o contexto.
func (s *MemoryStore) StartJanitor(ctx context.Context) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}
