// Package queue moves post-payment tasks through RabbitMQ so ticket
// delivery survives process restarts and can run on separate workers.
package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/iliyamo/express-reservations/internal/tasks"
)

// ReservationPaidEvent is the body of a reservation.paid message.
type ReservationPaidEvent struct {
	Task   tasks.PostPaymentTask `json:"task"`
	PaidAt string                `json:"paidAt"` // RFC3339, UTC
}

func newReservationPaidEvent(task tasks.PostPaymentTask, paidAt time.Time) ReservationPaidEvent {
	return ReservationPaidEvent{Task: task, PaidAt: paidAt.UTC().Format(time.RFC3339)}
}

func decodeReservationPaidEvent(body []byte) (ReservationPaidEvent, error) {
	var ev ReservationPaidEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return ReservationPaidEvent{}, fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Task.ReservationID == "" || ev.Task.Email == "" {
		return ReservationPaidEvent{}, fmt.Errorf("event missing reservation id or email")
	}
	return ev, nil
}
