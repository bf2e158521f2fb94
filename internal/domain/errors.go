package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrResultNotFound is returned when no verification result exists for a key
	ErrResultNotFound = errors.New("verification result not found")

	// ErrRateLimited is returned when the generation backend rejects a call for throughput
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrRunActive is returned when a verification run is requested while one is in progress
	ErrRunActive = errors.New("verification run already in progress")

	// ErrNoRunActive is returned when pause is requested with no run in progress
	ErrNoRunActive = errors.New("no verification run in progress")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrCatalogAPIFailure is returned when a catalog service request fails
	ErrCatalogAPIFailure = errors.New("catalog API request failed")

	// ErrGenerationFailure is returned when the AI generation backend request fails
	ErrGenerationFailure = errors.New("generation backend request failed")

	// ErrSyncFailure is returned when a remote sync submission fails
	ErrSyncFailure = errors.New("sync submission failed")

	// ErrPropertyNotInSchema is returned when the attribute under verification
	// is absent from the schema fetched for a site/productType pair
	ErrPropertyNotInSchema = errors.New("property not present in schema")
)

// ReferenceError reports a schema $ref pointer that could not be traversed.
type ReferenceError struct {
	Ref string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("unresolvable schema reference %q", e.Ref)
}

// ValidationError describes a single violated schema constraint.
// Path is a dotted/indexed location inside the candidate value and
// Keyword names the constraint (required, type, enum, maxLength, ...).
type ValidationError struct {
	Path    string `json:"path"`
	Keyword string `json:"keyword"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %s", e.Keyword, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Path, e.Keyword, e.Message)
}
