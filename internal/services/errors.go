package services

import "errors"

// Service errors
var (
	// ErrUnsupportedFile is returned for uploads that are neither xlsx nor csv.
	ErrUnsupportedFile = errors.New("unsupported file type")
	// ErrEmptyInput is returned when an analysis request carries no rows.
	ErrEmptyInput = errors.New("no rows to analyze")
)
