// Package common contains shared constants and sentinel errors used across
// sessionkeeper components.
package common

// SessionCookieName is the cookie carrying the server-side session identifier.
const SessionCookieName = "session_id"

// RememberCookieName is the persistent remember-me cookie. Its value is
// base64(series ":" raw_token).
const RememberCookieName = "remember_me"
