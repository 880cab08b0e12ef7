package domain

import "errors"

// -----------------------------------------------------------------------------
// Domain Errors
// These errors are shared by the catalog, progress and session layers.
// -----------------------------------------------------------------------------

// Mission errors
var (
	ErrMissionNotFound = errors.New("mission not found")
	ErrModuleNotFound  = errors.New("module not found")
	ErrInvalidMission  = errors.New("invalid mission")
)

// Progress errors
var (
	ErrInvalidScore = errors.New("score must be between 1 and 3")
)

