package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrQueueEmpty      = errors.New("queue empty")
	ErrHandlerNotFound = errors.New("handler not registered")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrAlreadyExists   = errors.New("entity already exists")
	ErrReadDatabaseRow = errors.New("failed to read database row")
)
