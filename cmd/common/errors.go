package common

import "errors"

var (
	// ErrLoggerRequired is returned when a command has no logger.
	ErrLoggerRequired = errors.New("logger is required")
	// ErrConfigRequired is returned when a command has no configuration.
	ErrConfigRequired = errors.New("config is required")
)
