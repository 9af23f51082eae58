// Package events publishes domain events ("a donor registered", "a match was
// created") to NATS so other systems can react without polling the database.
//
// Publishing is fire-and-forget from the caller's point of view: a broker
// outage must never fail a registration or a match. The circuit breaker stops
// us from waiting on a dead broker for every request while it is down.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sony/gobreaker"
)

// Subjects. Every subject starts with "blood." so one wildcard subscription
// ("blood.>") sees the whole stream.
const (
	SubjectDonorRegistered      = "blood.donor.registered"
	SubjectPatientRegistered    = "blood.patient.registered"
	SubjectPartnerSubmitted     = "blood.partner.submitted"
	SubjectPartnerStatusChanged = "blood.partner.status_changed"
	SubjectMatchCreated         = "blood.match.created"
)

// Publisher sends one event.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload any) error
}

// Envelope is the JSON shape put on the wire.
type Envelope struct {
	Subject    string    `json:"subject"`
	OccurredAt time.Time `json:"occurredAt"`
	Data       any       `json:"data"`
}

// conn is the part of *nats.Conn we use. Tests substitute a fake.
type conn interface {
	Publish(subject string, data []byte) error
}

var _ Publisher = (*NATSPublisher)(nil)

// NATSPublisher publishes JSON envelopes through a circuit breaker.
type NATSPublisher struct {
	conn    conn
	nc      *nats.Conn
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// Connect dials NATS and returns a publisher. The connection reconnects on its
// own; the breaker covers the window while it is down.
func Connect(url string, logger *slog.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("blood-connect"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("events: connecting to NATS: %w", err)
	}

	logger.Info("connected to NATS", slog.String("url", nc.ConnectedUrl()))

	p := newPublisher(nc, logger)
	p.nc = nc
	return p, nil
}

func newPublisher(c conn, logger *slog.Logger) *NATSPublisher {
	p := &NATSPublisher{conn: c, logger: logger}
	p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "nats-publish",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
	return p
}

// Publish encodes payload in an Envelope and sends it.
// When the breaker is open the event is dropped and gobreaker.ErrOpenState returned.
func (p *NATSPublisher) Publish(ctx context.Context, subject string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(Envelope{
		Subject:    subject,
		OccurredAt: time.Now().UTC(),
		Data:       payload,
	})
	if err != nil {
		return fmt.Errorf("events: encoding %s: %w", subject, err)
	}

	_, err = p.breaker.Execute(func() (interface{}, error) {
		return nil, p.conn.Publish(subject, data)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("events: dropping %s: %w", subject, err)
		}
		return fmt.Errorf("events: publishing %s: %w", subject, err)
	}
	return nil
}

// Close flushes buffered messages and closes the connection.
func (p *NATSPublisher) Close() {
	if p.nc == nil {
		return
	}
	if err := p.nc.Drain(); err != nil {
		p.logger.Warn("draining NATS connection", slog.String("error", err.Error()))
	}
}

// Noop discards every event. Used when no broker is configured and in tests.
type Noop struct{}

func (Noop) Publish(context.Context, string, any) error { return nil }
