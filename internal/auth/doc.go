// Package auth implements JWT access-token generation and validation
// for the HTTP API.
//
// Tokens are HS256-signed with the shared secret from the security
// section of config.yaml and validated by signature and expiry only;
// there is no user database. Operators mint tokens out of band and
// hand them to API consumers.
package auth
