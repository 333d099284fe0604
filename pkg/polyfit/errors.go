package polyfit

import (
	"errors"

	"polyfit/internal/model"
)

var (
	ErrConfiguration   = model.ErrConfiguration
	ErrInvalidRange    = model.ErrInvalidRange
	ErrDivisionByZero  = model.ErrDivisionByZero
	ErrEmptyPopulation = model.ErrEmptyPopulation
	ErrRunExists       = model.ErrRunExists
	// ErrRunInFlight is returned when a second operation is started on a run
	// handle while another one is still executing.
	ErrRunInFlight = errors.New("run operation already in flight")
	ErrNoTarget    = errors.New("run has no target coefficients")
)
