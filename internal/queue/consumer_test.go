package queue

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingMailer struct {
	requests []ApplicationSubmittedEvent
	updates  []StatusChangedEvent
	err      error
}

func (m *recordingMailer) SendApprovalRequest(_ context.Context, ev ApplicationSubmittedEvent) error {
	m.requests = append(m.requests, ev)
	return m.err
}

func (m *recordingMailer) SendStatusUpdate(_ context.Context, ev StatusChangedEvent) error {
	m.updates = append(m.updates, ev)
	return m.err
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestHandleSubmitted(t *testing.T) {
	m := &recordingMailer{}
	c := NewConsumer("amqp://unused", m, quietLogger())

	body, err := json.Marshal(ApplicationSubmittedEvent{
		ApplicationID:    "app-1",
		CentreAdminEmail: "admin@centre.test",
		ApproveToken:     "a",
		RejectToken:      "r",
		ExpiresAt:        time.Now().Add(7 * 24 * time.Hour),
	})
	require.NoError(t, err)

	require.NoError(t, c.Handle(context.Background(), QueueApplicationSubmitted, body))
	require.Len(t, m.requests, 1)
	assert.Equal(t, "app-1", m.requests[0].ApplicationID)
	assert.Empty(t, m.updates)
}

func TestHandleStatusChanged(t *testing.T) {
	m := &recordingMailer{}
	c := NewConsumer("amqp://unused", m, quietLogger())

	body, _ := json.Marshal(StatusChangedEvent{ApplicationID: "app-1", Email: "f@x.test", Status: "approved", Via: "link"})
	require.NoError(t, c.Handle(context.Background(), QueueStatusChanged, body))
	require.Len(t, m.updates, 1)
	assert.Equal(t, "approved", m.updates[0].Status)
}

func TestHandleRejectsBadMessages(t *testing.T) {
	m := &recordingMailer{}
	c := NewConsumer("amqp://unused", m, quietLogger())
	ctx := context.Background()

	assert.Error(t, c.Handle(ctx, QueueStatusChanged, []byte("{not json")))
	assert.Error(t, c.Handle(ctx, QueueStatusChanged, []byte(`{"application_id":"x"}`)), "no recipient")
	assert.Error(t, c.Handle(ctx, "other.queue", []byte(`{}`)))
	assert.Empty(t, m.updates)
}

func TestHandlePropagatesMailerError(t *testing.T) {
	m := &recordingMailer{err: errors.New("smtp down")}
	c := NewConsumer("amqp://unused", m, quietLogger())

	body, _ := json.Marshal(StatusChangedEvent{ApplicationID: "app-1", Email: "f@x.test", Status: "rejected"})
	assert.EqualError(t, c.Handle(context.Background(), QueueStatusChanged, body), "smtp down")
}

func TestRunStopsOnCancel(t *testing.T) {
	c := NewConsumer("amqp://127.0.0.1:1/", &recordingMailer{}, quietLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := c.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
