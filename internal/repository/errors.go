// Package repository holds the storage engines for categories and
// reservations.  Every engine exposes the same method set so the service
// layer can run unchanged against MySQL, PostgreSQL or process memory.
//
// The sentinel values below let higher layers distinguish a missing row
// from an infrastructure failure without inspecting driver errors.
package repository

import "errors"

// ErrCategoryNotFound is returned when no category has the requested name.
var ErrCategoryNotFound = errors.New("category not found")

// ErrReservationNotFound is returned when no reservation has the requested
// id.  Malformed ids are reported the same way.
var ErrReservationNotFound = errors.New("reservation not found")
