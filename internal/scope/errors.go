package scope

import "errors"

// ErrInvalidScope indicates a malformed scope, such as a branch supplied
// without its organization.
var ErrInvalidScope = errors.New("invalid scope")
