// Package internal holds helpers private to the module: random session IDs
// and single-use reset tokens.
//
// Sub-packages:
//
//   - audit: async event dispatch
//   - flows: orchestrators behind every Engine operation
//   - limiters: failed-login counter and lock flag
//   - rate: fixed-window throttles
//   - config, httpapi, observability: the service binary's wiring
package internal
