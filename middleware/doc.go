// Package middleware exposes the HTTP guard that enforces a valid access token
// and a live session on top of sessionguard.Engine.
//
// # Guard
//
// [Guard] reads the Authorization header, checks that the session store is
// reachable, calls Engine.Validate, and injects the validated
// [sessionguard.AuthResult] into the request context. Validate slides the
// session TTL, so every authenticated request keeps the session alive.
//
//   - Store not ready: 503.
//   - Missing, malformed or rejected token: 401.
//
// [ClientContext] copies the caller's IP and User-Agent into the context so the
// engine can attribute logins and reset requests without touching HTTP types.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT parse
// tokens or talk to Redis itself.
package middleware
