package session

// Session is the server-side record behind one authenticated device's login.
type Session struct {
	SessionID string
	UserID    string

	// Denormalized so request handling does not need the durable store.
	Email string
	Name  string

	CreatedAt int64
}

// Fields are the user fields copied into a new session.
type Fields struct {
	Email string
	Name  string
}
