package database

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinels matched through errors.Is
var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate")
)

// NotFoundError is returned when an operation references a missing item id
type NotFoundError struct {
	Collection string
	ID         int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Collection, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// DuplicateError is returned when a vocabulary term already exists
type DuplicateError struct {
	Term string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("word %q already exists", e.Term)
}

func (e *DuplicateError) Is(target error) bool { return target == ErrDuplicate }

// isUniqueConstraintErr returns true when the error indicates a unique/constraint violation
func isUniqueConstraintErr(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "unique") || strings.Contains(s, "duplicate key")
}
