// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested file or cache entry does not exist.
var ErrNotFound = errors.New("not found")

// ErrCompilerUnavailable indicates the external compiler could not be reached.
var ErrCompilerUnavailable = errors.New("compiler unavailable")

// ErrInvalidPosition indicates a line/character pair outside the document.
var ErrInvalidPosition = errors.New("invalid position")
