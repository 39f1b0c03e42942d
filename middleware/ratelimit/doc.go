// Package ratelimit fornece adapters HTTP (net/http) para cota distribuída
// (janela fixa por minuto/hora sobre um store compartilhado) e limite de
// concorrência.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (Accountant de janela fixa, acquire/timeout)
//     sem net/http
//   - infra: implementações concretas (Redis, memória, Prometheus, semáforo)
//   - ratelimit (este pacote): middlewares HTTP + resolução de identidade +
//     tradução da decisão para headers/status/JSON + carga da tabela de
//     políticas
//
// Fluxo no gateway, por requisição:
//
//  1. Paths isentos (health, metrics, docs) passam direto
//  2. Resolve a identidade do cliente (user autenticado ou IP/XFF)
//  3. Resolve a política do endpoint (exato > prefixo mais longo > default)
//  4. Accountant incrementa os contadores no store e decide
//  5. Admitido: headers X-RateLimit-* e segue para o próximo handler;
//     negado: 429 com JSON e Retry-After, sem executar o handler
//  6. Store indisponível: admite (fail-open) ou responde 503 distinto de
//     uma negação de cota (fail-closed), conforme configuração explícita
//
// Variáveis de ambiente do binário gateway (cmd/gateway) controlam o
// comportamento, como REDIS_ADDR, QUOTA_FAIL_MODE, QUOTA_POLICY_FILE,
// CONCURRENCY_MAX e METRICS_ENABLED.
package ratelimit
