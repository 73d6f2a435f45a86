package flows

// Deps groups flow dependency sets. The engine builds this once at Build and
// delegates each request method to the matching flow.
type Deps struct {
	Login    LoginDeps
	Refresh  RefreshDeps
	Validate ValidateDeps
	Logout   LogoutDeps
	Password PasswordDeps
}
