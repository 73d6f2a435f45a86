// Package session provides Redis-backed session persistence and compact binary session
// encoding for authentication hot paths.
//
// # Keys
//
//   - session:<id>             encoded [Session], sliding TTL
//   - active_session:<userID>  the user's current session ID, same TTL as the session
//   - session_refresh:<id>     throttle marker written by [Store.Refresh]
//
// The pointer is authoritative: a record is the user's session only while the
// pointer names it. Readers resolve the pointer and then the record; pointer
// presence alone never means a session is valid.
//
// # Failure semantics
//
// Reads and refreshes fail open (nil, zero, false) and log through the
// kvstore logger. [Store.Create] is the one write that reports store failure,
// since the login flow must not hand out tokens for a session that was never
// written.
//
// # What this package must NOT do
//
//   - Import sessionguard, jwt, or device (no upward imports).
//   - Decide when a user must be logged out; the Engine does.
package session
