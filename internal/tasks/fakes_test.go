package tasks

import (
	"context"
	"errors"
	"sync"

	"github.com/iliyamo/express-reservations/internal/mail"
	"github.com/iliyamo/express-reservations/internal/ticket"
)

type stubRenderer struct {
	err   error
	calls int
	mu    sync.Mutex
}

func (s *stubRenderer) Render(f ticket.Fields) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return []byte("%PDF-" + f.ReservationID), nil
}

// flakyNotifier fails the first failures calls.
type flakyNotifier struct {
	mu       sync.Mutex
	failures int
	sent     []mail.Message
	attempts int
	block    bool
}

var errRelayDown = errors.New("relay down")

func (n *flakyNotifier) Send(ctx context.Context, msg mail.Message) error {
	n.mu.Lock()
	n.attempts++
	attempt := n.attempts
	block := n.block
	n.mu.Unlock()

	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	if attempt <= n.failures {
		return errRelayDown
	}
	n.mu.Lock()
	n.sent = append(n.sent, msg)
	n.mu.Unlock()
	return nil
}

func (n *flakyNotifier) Attempts() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.attempts
}

func (n *flakyNotifier) Sent() []mail.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]mail.Message, len(n.sent))
	copy(out, n.sent)
	return out
}
