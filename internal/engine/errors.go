package engine

import "errors"

var (
	ErrDestroyed          = errors.New("engine: system destroyed")
	ErrFactoryDestroyed   = errors.New("engine: factory destroyed")
	ErrTypesNotRegistered = errors.New("engine: built-in types not registered")
	ErrUnknownType        = errors.New("engine: unknown type")
	ErrDuplicateType      = errors.New("engine: type already registered")
	ErrInvalidSettings    = errors.New("engine: invalid settings")
	ErrTooManyBodies      = errors.New("engine: body capacity exhausted")
	ErrInvalidBody        = errors.New("engine: unknown body")
	ErrInvalidLayer       = errors.New("engine: invalid object layer")
	ErrInvalidConstraint  = errors.New("engine: unknown constraint")
	ErrInvalidStepCount   = errors.New("engine: collision steps and integration sub steps must be at least 1")
	ErrInvalidTimeStep    = errors.New("engine: time step must be finite")
)
