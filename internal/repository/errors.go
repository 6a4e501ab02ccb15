package repository

import "errors"

// ErrNotFound indicates an entity was not located.
var ErrNotFound = errors.New("repository: not found")

// ErrConflict indicates a uniqueness constraint was violated. Stores enforce
// this atomically at insert time; callers must not check-then-insert.
var ErrConflict = errors.New("repository: conflict")
