// Package userstore is a gorm-backed implementation of sessionguard.UserStore.
//
// Users live in a single table keyed by a UUID string. The device list is
// stored as a JSON column; the engine owns its contents and the store persists
// it unchanged. Open supports the "sqlite" and "postgres" drivers.
package userstore
