package model

import "errors"

var (
	// ErrConfiguration reports missing or invalid run configuration.
	ErrConfiguration = errors.New("configuration error")
	// ErrInvalidRange reports a coefficient range with max <= min.
	ErrInvalidRange = errors.New("invalid range")
	// ErrDivisionByZero reports an all-zero fitness sum or an empty sample set.
	ErrDivisionByZero = errors.New("division by zero")
	// ErrEmptyPopulation reports an operation that needs a seeded population.
	ErrEmptyPopulation = errors.New("empty population")
	// ErrRunExists reports a run id that is already registered.
	ErrRunExists = errors.New("run already exists")
)
