package domain

import "errors"

// ErrNotFound is wrapped by stores when a record does not exist.
var ErrNotFound = errors.New("not found")
