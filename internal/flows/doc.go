// Package flows holds the orchestrators behind every Engine operation.
//
// Each Run* function takes a dependency struct of function hooks and host
// sentinel errors, so the flows never import the root package and can be
// driven with plain fakes in tests. Flows own no resources and keep no state
// between calls.
package flows
