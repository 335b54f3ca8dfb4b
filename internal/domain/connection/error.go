package connection

import "errors"

var (
	ErrNotFound      = errors.New("connection not found")
	ErrAlreadyLinked = errors.New("institution already linked for this user")
)
