// Package common contains shared constants and small helpers used across
// offlinekit components.
package common

const (
	// AuthorizationHeader carries the bearer credential on outbound REST calls.
	AuthorizationHeader = "Authorization"

	// BearerPrefix precedes the access token in AuthorizationHeader.
	BearerPrefix = "Bearer "

	// UserAgentHeader identifies the client on outbound calls and in audit logs.
	UserAgentHeader = "User-Agent"
)
