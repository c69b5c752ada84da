// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios without
// inspecting SQL errors. For example, ErrNotFound is the org-scoped
// translation of sql.ErrNoRows, while ErrConflict signals that an
// operation cannot proceed given the record's current state (e.g.
// cancelling an invoice twice, or editing a confirmed itinerary).
package repository

import "errors"

// ErrNotFound is returned when a record does not exist within the caller's
// organization. Handlers should translate this into an HTTP 404 response.
// A record belonging to another organization is indistinguishable from a
// missing one by design.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an update cannot be performed because of
// conflicting state, such as recording an edit on a confirmed itinerary or
// re-sending a cancelled invoice. Handlers should translate this into an
// HTTP 409 response.
var ErrConflict = errors.New("conflict")
