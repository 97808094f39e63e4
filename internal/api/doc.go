// Package api implements the admin HTTP API and WebSocket stream.
//
// This package provides:
//   - session inspection and execute triggers
//   - reporting profile CRUD with live reconciliation on update
//   - a WebSocket hub carrying uplink reports and session changes
//   - middleware (request ID, logging, recovery, CORS, body limit)
//
// # Routes
//
//	GET  /api/v1/health                         no auth
//	GET  /api/v1/ws?ticket=...                  ticket auth
//	POST /api/v1/ws/ticket                      single-use WebSocket ticket
//	GET  /api/v1/sessions                       session summaries
//	GET  /api/v1/sessions/{regID}               one session with resources
//	POST /api/v1/sessions/{regID}/execute       {"path":"/3/0/4","args":""}
//	GET  /api/v1/profiles                       stored profiles
//	GET  /api/v1/profiles/{id}                  one profile
//	PUT  /api/v1/profiles/{id}                  persist and reconcile
//
// # Security
//
// Every route except health and the WebSocket upgrade requires an HS256
// bearer token signed with security.jwt.secret. Tokens are minted by the
// backend; this service only verifies them. WebSocket clients trade their
// token for a single-use ticket so it never appears in a URL.
//
// Errors are returned as {"error":{"code":"...","message":"..."}}.
package api
