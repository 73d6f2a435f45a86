// Package device keeps the bounded per-user device history embedded in the
// durable user record.
//
// A device ID is a coarse fingerprint over browser family, OS family, device
// type and vendor. Versions and IP are excluded, so upgrades keep the same
// entry and two similar machines share one.
//
// [Registry] mutates the slice it wraps in place; the caller persists the
// owning user afterwards. It never talks to Redis.
package device
