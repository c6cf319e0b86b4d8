package storage

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyExists   = errors.New("already exists")
	ErrAlreadyConsumed = errors.New("invitation already consumed")
	ErrExpired         = errors.New("invitation expired")
	ErrInactive        = errors.New("invitation inactive")
	ErrCorrupted       = errors.New("document corrupted")
	ErrIO              = errors.New("storage i/o failure")
	ErrInvalidArgument = errors.New("invalid argument")
)
