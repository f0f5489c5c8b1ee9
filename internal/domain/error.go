package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrAlreadySent     = errors.New("post already sent")
	ErrOperatorBusy    = errors.New("operator has an event in progress")
	ErrPostBusy        = errors.New("post is being published")
	ErrNotAuthorized   = errors.New("operator is not authorized")

	// Error taxonomy of the publishing flow.
	ErrValidation  = errors.New("validation failed")
	ErrRewrite     = errors.New("rewrite failed")
	ErrDelivery    = errors.New("delivery failed")
	ErrPersistence = errors.New("persistence failed")

	// Storage plumbing
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid database execution context")
)
