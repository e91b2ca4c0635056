// Package auth verifies AUTHINFO credentials against a user store.
package auth

// Authenticator validates a username/password pair. Implementations must
// be safe for concurrent use by every connection handler.
type Authenticator interface {
	IsValidUser(username, password string) (bool, error)
}
