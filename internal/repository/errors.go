// Package repository defines error types that are reused across multiple
// repositories.  These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios without
// inspecting driver-specific errors.
package repository

import "errors"

// ErrNotFound is returned when a lookup matches no row.  Handlers should
// translate this into an HTTP 404 response; the verification service
// translates it into a non-error {exists:false} answer.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert violates a uniqueness
// constraint, such as registering an already-taken username or email.
// Handlers should translate this into an HTTP 409 response.
var ErrDuplicate = errors.New("duplicate")
