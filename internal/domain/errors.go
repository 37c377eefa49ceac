package domain

import "errors"

var (
	// ErrClaimNotFound is returned when a claim does not exist in the session or has expired.
	ErrClaimNotFound = errors.New("claim not found")

	// ErrInvalidInput marks request validation failures.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNoImages is returned by the damage summarizer when no photos were given.
	ErrNoImages = errors.New("no photos provided for analysis")

	// ErrCollaboratorUnavailable is returned when no AI backend is configured.
	ErrCollaboratorUnavailable = errors.New("ai collaborator unavailable")
)
