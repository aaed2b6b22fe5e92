// Package server implements the HTTP server using Echo framework.
//
// Routes: WebSocket endpoint (/ws), buffered event drain and connection
// listing (/api), backend publish endpoint (/internal/notify), health and
// metrics. Handlers split by concern: handlers_ws.go, handlers_api.go,
// handlers_health.go.
package server
