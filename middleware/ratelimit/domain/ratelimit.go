package domain

// Camada de domínio do rate limit distribuído.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

// Identity atribui requisições a um cliente para fins de cota.
// Formato usual: "user:<id>" quando autenticado, senão "ip:<addr>".
type Identity string

// EndpointKey identifica a rota lógica acessada (baseada em path).
// É usada tanto para resolver a política quanto como componente da chave
// do contador no store.
type EndpointKey string

// Policy define os tetos de uma rota: requisições por minuto e por hora.
//
// Valor 0 em uma granularidade significa "sem limite" naquela granularidade —
// a checagem é pulada, não tratada como teto zero.
type Policy struct {
	PerMinute int
	PerHour   int
}

// WindowState é o estado de uma janela (minuto ou hora) após o incremento.
type WindowState struct {
	Limit     int
	Count     int64
	Remaining int
	// ResetAt é o instante absoluto (epoch segundos) em que a janela atual
	// termina e o contador volta a zero.
	ResetAt int64
}

// Decision é o resultado de uma checagem de cota. Efêmera, nunca persistida.
type Decision struct {
	Allowed bool
	Minute  WindowState
	Hour    WindowState
	// RetryAfter (segundos) só tem significado quando Allowed=false: é o
	// tempo até o reset que de fato relaxa o limite violado.
	RetryAfter int
}
