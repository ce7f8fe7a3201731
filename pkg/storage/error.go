package storage

import "errors"

var (
	// ErrInvalidFeedback is returned when a required feedback answer is missing.
	ErrInvalidFeedback = errors.New("all feedback fields are required")

	// ErrInvalidQueryLog is returned when a query log lacks its query or response.
	ErrInvalidQueryLog = errors.New("query and response are required")
)
