// Package middleware contains HTTP middleware for the status API.
//
// # Components
//
//   - auth: API key validation on the X-API-Key header.
//   - rayid: a unique Request ID (RayID) for every incoming request, stored
//     in the context and echoed in the response headers for tracing.
//
// Both are registered globally by core/server.
package middleware
