// Package storage defines shared persistence errors for the snapshot and run
// stores.
package storage

import "errors"

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")
