// Package limiters holds the failed-login tracker.
//
// [FailedAttemptTracker] keeps two keys per email/IP identifier: a counter
// with a TTL set on its first increment, and a lock flag with the same window.
// It only counts and flags. The login flow decides when the threshold is
// reached and what the caller sees.
//
// # What this package must NOT do
//
//   - Import the root package or internal/flows.
//   - Fail closed: an unreachable store reads as zero attempts and no lock.
package limiters
