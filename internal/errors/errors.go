// internal/errors/errors.go
package errors

import "fmt"

// ErrInvalidCategory is returned when a configured category name is empty
// or otherwise unusable as a fetch partition.
type ErrInvalidCategory struct {
	Category string
}

func (e *ErrInvalidCategory) Error() string {
	return fmt.Sprintf("invalid category: %q, expected a non-empty language or topic name", e.Category)
}

// ErrCategoryFailed wraps the cause of a whole-category collection failure.
type ErrCategoryFailed struct {
	Category string
	Cause    error
}

func (e *ErrCategoryFailed) Error() string {
	return fmt.Sprintf("category %q failed: %v", e.Category, e.Cause)
}

func (e *ErrCategoryFailed) Unwrap() error {
	return e.Cause
}
