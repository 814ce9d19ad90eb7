// Package common defines shared constants and sentinel errors used across
// the Tandem storage and sync layers. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Validation errors. An unknown table or filter column reaching the
	// store is a programming error, not user input.
	ErrUnknownTable  = errors.New("unknown table")
	ErrUnknownColumn = errors.New("unknown column")

	// Secure-storage errors.
	ErrItemTooLarge = errors.New("item exceeds secure storage size limit")

	// Session errors.
	ErrNoSession = errors.New("no stored session")
)
