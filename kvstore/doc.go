// Package kvstore is the thin adapter between sessionguard and Redis.
//
// # Contract
//
// Every operation returns an explicit error. Transport failures are wrapped
// with [ErrUnavailable]; a missing key is never an error. Callers that are
// allowed to fail open resolve the error at the call site with [Or], naming
// the fallback value explicitly. Write paths that must not fail open simply
// propagate the error.
//
// [Store.Pipeline] batches independent operations into one network round
// trip. It gives no cross-operation atomicity.
//
// # Readiness
//
// [Store.IsReady] is a cheap probe for the HTTP layer; [Store.EnsureConnection]
// retries a PING a bounded number of times before giving up.
//
// # What this package must NOT do
//
//   - Own a process-wide client. The client is built by the composition root
//     and injected through [New].
//   - Interpret keys or values. Business rules live in the stores above it.
package kvstore
