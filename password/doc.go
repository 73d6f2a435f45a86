// Package password hashes and verifies user passwords.
//
// # Output format
//
// New hashes are Argon2id in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Records imported from older deployments may still carry bcrypt hashes
// ($2a$, $2b$, $2y$). [Hasher] verifies both and reports bcrypt hashes as
// needing an upgrade, so the caller re-hashes on the next successful login.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords; callers supply plaintext and receive hashes.
//   - Import any other sessionguard package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
