// Package tasks runs the post-payment work that checkout hands off: render
// the ticket, then deliver it by email with bounded retries.  Failures are
// logged and counted, never returned to the request that triggered them.
package tasks

import (
	"github.com/iliyamo/express-reservations/internal/model"
	"github.com/iliyamo/express-reservations/internal/ticket"
	"github.com/iliyamo/express-reservations/internal/utils"
)

// PostPaymentTask carries everything needed to render and deliver a
// ticket without reading the database again.  It is also the JSON body of
// the reservation.paid queue message.
type PostPaymentTask struct {
	ReservationID string      `json:"reservationId"`
	Email         string      `json:"email"`
	Category      string      `json:"category"`
	Quantity      int         `json:"quantity"`
	Total         model.Money `json:"total"`
	StartDate     string      `json:"startDate"`
	EndDate       string      `json:"endDate"`
}

// NewPostPaymentTask snapshots a reservation.
func NewPostPaymentTask(res model.Reservation) PostPaymentTask {
	return PostPaymentTask{
		ReservationID: res.ID,
		Email:         res.Email,
		Category:      res.Category,
		Quantity:      res.Quantity,
		Total:         res.Total,
		StartDate:     utils.FormatDate(res.StartDate),
		EndDate:       utils.FormatDate(res.EndDate),
	}
}

// TicketFields returns the fields printed on the ticket.
func (t PostPaymentTask) TicketFields() ticket.Fields {
	return ticket.Fields{
		ReservationID: t.ReservationID,
		Email:         t.Email,
		Category:      t.Category,
		Quantity:      t.Quantity,
		Total:         t.Total,
		StartDate:     t.StartDate,
		EndDate:       t.EndDate,
	}
}

// Outcome is the terminal state of one task execution.
type Outcome int

const (
	OutcomeDelivered Outcome = iota
	OutcomeDeliveryFailed
	OutcomeRenderFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDelivered:
		return "delivered"
	case OutcomeDeliveryFailed:
		return "delivery_failed"
	case OutcomeRenderFailed:
		return "render_failed"
	}
	return "unknown"
}
