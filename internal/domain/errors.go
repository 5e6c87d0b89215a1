package domain

import "errors"

var (
	ErrBedNotFound   = errors.New("bed not found")
	ErrAlertNotFound = errors.New("alert not found")
	ErrNotConfigured = errors.New("not configured")
)
