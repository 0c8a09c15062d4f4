// Package server is the HTTP and WebSocket edge: the broadcaster and
// listener gateways, the catalog JSON API, recording downloads, and the
// observability endpoints. Handlers translate wire traffic into session
// machine transitions and relay hub commands; they hold no broadcast state
// of their own.
package server
