// Package sessionguard coordinates sessions, refresh tokens, devices and
// failed-login lockout on top of Redis.
//
// Every user holds at most one active session. A successful [Engine.Login]
// tears down the previous session and its refresh tokens before issuing new
// ones, and reports the device that was signed out. Five failed logins from
// one email and IP pair lock that pair for the lockout window.
//
// # Architecture boundaries
//
// sessionguard is the public surface: [Engine], [Builder], [Config] and the
// result types. Flow orchestration, lockout counters, rate limits and audit
// dispatch live under internal/. The session, refresh, device, jwt, password
// and kvstore packages are usable on their own.
//
// # Failure model
//
// Read-class store failures fail open (a lock check reads as unlocked, a
// session lookup as absent) and are logged at Warn. Write-class failures on
// the login path abort with an error matching [ErrDependencyUnavailable], so
// a login never returns tokens for a session that was not stored.
//
// # Concurrency
//
// Engine methods are safe for concurrent use after [Builder.Build]. The only
// in-process state is the Redis pool, the audit queue and atomic counters;
// concurrent logins for one user race last-write-wins on the session pointer.
package sessionguard
