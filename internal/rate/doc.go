// Package rate provides the fixed-window throttle used for refresh-token
// exchange and password-reset requests.
//
// # Window semantics
//
// Fixed-window counters: INCR + EXPIRE on the first hit of a window. Key prefixes:
//   - throttle:refresh:   per session
//   - throttle:reset:     per email
//   - throttle:reset_ip:  per source IP
//
// Counting fails open: when the store is unreachable [Limiter.Allow] lets the
// request through and logs the failure through the store logger.
//
// # What this package must NOT do
//
//   - Implement the failed-login lockout (that lives in internal/limiters).
//   - Be imported outside the sessionguard module.
package rate
