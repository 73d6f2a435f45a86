// Package jwt issues and verifies the access and refresh tokens handed out at
// login. Both kinds carry the user ID and session ID; a typ claim keeps one
// from being accepted as the other.
package jwt
