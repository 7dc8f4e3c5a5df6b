package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mathsprint-service/internal/domain"
)

type published struct {
	exchange string
	key      string
	msg      amqp091.Publishing
}

type fakeChannel struct {
	sent   []published
	err    error
	closed bool
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp091.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestPublishResult(t *testing.T) {
	ch := &fakeChannel{}
	p := newPublisher(ch, "mathsprint.events", nil)
	date := time.Date(2024, 11, 22, 10, 2, 0, 0, time.UTC)

	err := p.PublishResult(context.Background(), "u1", "Ada", domain.SessionResult{Score: 17, Timestamp: date})
	require.NoError(t, err)
	require.Len(t, ch.sent, 1)

	sent := ch.sent[0]
	assert.Equal(t, "mathsprint.events", sent.exchange)
	assert.Equal(t, RoutingKeySessionFinished, sent.key)
	assert.Equal(t, "application/json", sent.msg.ContentType)
	assert.Equal(t, amqp091.Persistent, sent.msg.DeliveryMode)

	var event SessionFinished
	require.NoError(t, json.Unmarshal(sent.msg.Body, &event))
	assert.Equal(t, "u1", event.UserID)
	assert.Equal(t, "Ada", event.DisplayName)
	assert.Equal(t, 17, event.Score)
	assert.True(t, date.Equal(event.Date))
	assert.Equal(t, event.EventID, sent.msg.MessageId)

	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
}

func TestPublishResultWrapsChannelError(t *testing.T) {
	boom := errors.New("channel closed")
	p := newPublisher(&fakeChannel{err: boom}, "mathsprint.events", nil)

	err := p.PublishResult(context.Background(), "u1", "Ada", domain.SessionResult{Score: 1})
	assert.ErrorIs(t, err, boom)
}
