// Package server runs the optional HTTP status API of the backup daemon.
//
// NewApp wires the middleware chain (ray id, request logging, API key) and
// loads the registered features. GET /health stays public. Serve blocks
// until its context is cancelled and then shuts the server down.
package server
