package triageerr

import "errors"

var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidInput     = errors.New("invalid input")
	ErrAdminRoleMissing = errors.New("admin role not found")
	ErrUnknownCommand   = errors.New("unknown command")
)
