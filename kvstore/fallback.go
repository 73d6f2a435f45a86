package kvstore

// Or resolves a store result against an explicit fail-open default.
// When err is nil value is returned unchanged; otherwise the error is logged
// through s (which may be nil) under op and fallback is returned.
func Or[T any](s *Store, op string, value T, err error, fallback T) T {
	if err == nil {
		return value
	}
	s.FailOpen(op, err)
	return fallback
}

// FailOpen records a swallowed store error for op.
func (s *Store) FailOpen(op string, err error) {
	if s == nil || s.logger == nil || err == nil {
		return
	}
	s.logger.Warn("kv store call failed open",
		"component", "kvstore",
		"op", op,
		"error", err,
	)
}
