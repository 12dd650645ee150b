// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios. For
// example, ErrExperienceNotFound signals that a lookup referenced an
// experience that does not exist (or no longer exists, since no
// foreign key spans the two stores).
package repository

import "errors"

// ErrExperienceNotFound is returned when an experience lookup by id
// matches no row. Handlers should translate this into an HTTP 404
// response.
var ErrExperienceNotFound = errors.New("experience not found")

// ErrRatingNotFound is returned when a rating lookup by id matches
// no row.
var ErrRatingNotFound = errors.New("rating not found")
