package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	subject string
	data    []byte
}

// fakeConn records every message and can be told to fail.
type fakeConn struct {
	msgs  []published
	calls int
	err   error
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, published{subject: subject, data: data})
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPublish_WritesEnvelope(t *testing.T) {
	fc := &fakeConn{}
	p := newPublisher(fc, discardLogger())

	err := p.Publish(context.Background(), SubjectDonorRegistered, map[string]string{"donorId": "d1"})
	require.NoError(t, err)
	require.Len(t, fc.msgs, 1)
	assert.Equal(t, SubjectDonorRegistered, fc.msgs[0].subject)

	var env struct {
		Subject string            `json:"subject"`
		Data    map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(fc.msgs[0].data, &env))
	assert.Equal(t, SubjectDonorRegistered, env.Subject)
	assert.Equal(t, "d1", env.Data["donorId"])
}

func TestPublish_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	fc := &fakeConn{err: errors.New("nats: connection closed")}
	p := newPublisher(fc, discardLogger())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.Error(t, p.Publish(ctx, SubjectMatchCreated, nil))
	}
	assert.Equal(t, 3, fc.calls)

	// The breaker is open now: the broker is not even tried.
	err := p.Publish(ctx, SubjectMatchCreated, nil)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, fc.calls)
}

func TestPublish_CanceledContext(t *testing.T) {
	fc := &fakeConn{}
	p := newPublisher(fc, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, p.Publish(ctx, SubjectMatchCreated, nil), context.Canceled)
	assert.Zero(t, fc.calls)
}

func TestNoop(t *testing.T) {
	var p Publisher = Noop{}
	assert.NoError(t, p.Publish(context.Background(), SubjectPartnerSubmitted, "anything"))
}
