// Package refresh stores issued refresh tokens and indexes them per user for
// bulk revocation.
//
// # Keys
//
//   - refresh_token:<token>        JSON [Record], long TTL
//   - user_refresh_tokens:<userID> set of the user's outstanding tokens
//
// The per-user set's TTL is re-armed to the token TTL on every [Store.Store],
// so it lives at least as long as its newest member.
//
// # Architecture boundaries
//
// Tokens are stored as issued; signing and verification belong to the jwt
// package. Bulk revocation ([Store.DeleteAllForUser]) costs one SMEMBERS and
// one pipelined round trip regardless of how many tokens the user holds.
//
// # What this package must NOT do
//
//   - Import sessionguard, jwt, or session.
//   - Decide whether a token may be exchanged; the Engine does.
package refresh
