package model

import "time"

// ReservationStatus is the payment state of a reservation.  The only
// allowed transition is PENDING → PAID.
type ReservationStatus string

const (
	StatusPending ReservationStatus = "PENDING"
	StatusPaid    ReservationStatus = "PAID"
)

// CapacityHoldingStatuses lists the statuses that consume category
// capacity.  Unpaid reservations count from the moment they are created.
var CapacityHoldingStatuses = []ReservationStatus{StatusPending, StatusPaid}

// Reservation records a guest's claim on Quantity units of a category
// over the half-open interval [StartDate, EndDate).
//
// Fields:
//  ID         – opaque unique identifier (UUID).
//  Email      – contact address the ticket is delivered to.
//  CategoryID – reference to the category (not owned).
//  Category   – category name, populated on reads.
//  StartDate  – first instant of the stay (inclusive).
//  EndDate    – end of the stay (exclusive).
//  Quantity   – number of units, at least one.
//  Total      – price × quantity, fixed at creation.
//  Status     – PENDING or PAID.
//  CreatedAt  – creation timestamp.
//  PaidAt     – set once when the reservation is paid.
type Reservation struct {
	ID         string            `json:"id"`                 // reservations.id
	Email      string            `json:"email"`              // reservations.email
	CategoryID int64             `json:"categoryId"`         // reservations.category_id
	Category   string            `json:"category,omitempty"` // categories.name
	StartDate  time.Time         `json:"startDate"`          // reservations.start_date
	EndDate    time.Time         `json:"endDate"`            // reservations.end_date
	Quantity   int               `json:"quantity"`           // reservations.quantity
	Total      Money             `json:"total"`              // reservations.total_cents
	Status     ReservationStatus `json:"status"`             // reservations.status
	CreatedAt  time.Time         `json:"createdAt"`          // reservations.created_at
	PaidAt     *time.Time        `json:"paidAt,omitempty"`   // reservations.paid_at (nullable)
}

// Overlaps reports whether the reservation's interval intersects
// [start, end).  Endpoints are exclusive: a stay ending on day D does not
// overlap one starting on day D.
func (r Reservation) Overlaps(start, end time.Time) bool {
	return r.StartDate.Before(end) && r.EndDate.After(start)
}

// HoldsCapacity reports whether the reservation's status is one of
// statuses.
func (r Reservation) HoldsCapacity(statuses []ReservationStatus) bool {
	for _, s := range statuses {
		if r.Status == s {
			return true
		}
	}
	return false
}
