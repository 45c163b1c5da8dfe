package knowledge

import (
	"errors"
	"fmt"
)

// Common errors for knowledge operations.
var (
	ErrConceptNotFound  = errors.New("concept not found")
	ErrEmptyConcept     = errors.New("concept cannot be empty")
	ErrEmptyExplanation = errors.New("explanation cannot be empty")
	ErrPersistence      = errors.New("knowledge persistence failed")
	ErrCorruptStore     = errors.New("persisted knowledge store is corrupt")
	ErrStoreMissing     = errors.New("persisted knowledge store does not exist")
)

// PersistenceError reports a failed load or save. The in-memory map stays
// authoritative; the next successful save reconciles the durable copy.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s knowledge map: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrPersistence) match any PersistenceError.
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}
