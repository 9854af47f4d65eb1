// Package status exposes the backup scheduler over the HTTP status API.
//
// # HTTP Endpoints
//
//   - GET /status : scheduler snapshot (running, next run, last run).
//   - GET /plan : dry run against the remote, nothing is written.
//   - POST /backup : runs a pass now and returns its record. A request made
//     while a pass is running waits for that pass instead of starting another.
package status
