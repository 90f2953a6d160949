package service

import "errors"

// Kind classifies a service error for transport mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalidInput
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	}
	return "internal"
}

// Error is a classified business error.  Code is a stable machine-readable
// identifier returned to API clients.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

var (
	ErrInvalidQuantity      = &Error{Kind: KindInvalidInput, Code: "INVALID_QUANTITY", Message: "quantity must be greater than zero"}
	ErrInvalidDateRange     = &Error{Kind: KindInvalidInput, Code: "INVALID_DATE_RANGE", Message: "invalid date range"}
	ErrInvalidCategory      = &Error{Kind: KindInvalidInput, Code: "INVALID_CATEGORY", Message: "invalid category"}
	ErrInsufficientCapacity = &Error{Kind: KindConflict, Code: "INSUFFICIENT_CAPACITY", Message: "not enough availability"}
	ErrReservationNotFound  = &Error{Kind: KindNotFound, Code: "RESERVATION_NOT_FOUND", Message: "reservation not found"}
	ErrAlreadyPaid          = &Error{Kind: KindConflict, Code: "ALREADY_PAID", Message: "reservation already paid"}
	ErrInvalidCard          = &Error{Kind: KindInvalidInput, Code: "INVALID_CARD", Message: "invalid card number"}
)

// KindOf returns the kind of the first *Error in err's chain, or
// KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the code of the first *Error in err's chain, or
// "INTERNAL".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "INTERNAL"
}
