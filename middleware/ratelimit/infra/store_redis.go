package infra

import (
	"context"
	"fmt"
	"time"

	"quota-gateway/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
)

// RedisStore implementa domain.CounterStore sobre um Redis compartilhado.
//
// É o que permite o limite valer entre várias instâncias do gateway sem
// memória compartilhada: toda a coordenação é o INCR atômico do Redis.
// Cada Incr é um TxPipeline com INCR + EXPIRE NX + TTL — o EXPIRE NX garante
// que o TTL só é atribuído quando a chave nasce, então incrementos seguintes
// não deslizam a fronteira da janela.
type RedisStore struct {
	rdb *redis.Client

	// timeout por operação; deve ser bem menor que o timeout da requisição
	// para um Redis degradado não travar o serviço inteiro.
	timeout time.Duration
}

var _ domain.CounterStore = (*RedisStore)(nil)

type RedisStoreOption func(*RedisStore)

func WithOpTimeout(d time.Duration) RedisStoreOption {
	return func(s *RedisStore) { s.timeout = d }
}

func NewRedisStore(rdb *redis.Client, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{
		rdb:     rdb,
		timeout: 150 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, time.Duration, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	pipe := s.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, ttl)
	remaining := pipe.TTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, fmt.Errorf("%w: incr %q: %v", domain.ErrStoreUnavailable, key, err)
	}

	return incr.Val(), remaining.Val(), nil
}

func (s *RedisStore) Healthy(ctx context.Context) bool {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.rdb.Ping(ctx).Err() == nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
