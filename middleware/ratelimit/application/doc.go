// Package application contém os casos de uso (regras de aplicação) para a
// cota distribuída e para o limite de concorrência.
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: Accountant.Check(...) retorna uma Decision (allow/deny + contadores,
// resets e retry-after por granularidade).
package application
