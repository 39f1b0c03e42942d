package domain

import "errors"

var (
	// ErrStoreUnavailable indica falha de rede/timeout/protocolo ao falar com
	// o store de contadores. É recuperado por política fail-open/fail-closed
	// na camada HTTP, nunca re-tentado em loop durante a requisição.
	ErrStoreUnavailable = errors.New("counter store unavailable")

	// ErrInvalidConfig indica tabela de políticas malformada. Fatal no
	// startup.
	ErrInvalidConfig = errors.New("invalid rate limit configuration")
)

func IsStoreUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

func IsInvalidConfig(err error) bool {
	return errors.Is(err, ErrInvalidConfig)
}
