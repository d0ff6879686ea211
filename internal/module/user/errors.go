package user

import "errors"

// Account errors.
var (
	ErrAccountNotFound = errors.New("account not found")
)
