package auth

import "errors"

// ErrTokenInvalid is returned when a JWT fails signature, expiry or
// claim validation.
var ErrTokenInvalid = errors.New("auth: token invalid")
