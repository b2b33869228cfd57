package services

import "errors"

// Service errors
var (
	ErrRunNotFound = errors.New("simulation run not found")
	ErrInvalidRun  = errors.New("invalid run request")
)
