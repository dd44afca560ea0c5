package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type channelMock struct {
	mock.Mock
}

func (m *channelMock) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	args := m.Called(exchange, key, msg)
	return args.Error(0)
}

func (m *channelMock) Close() error {
	return m.Called().Error(0)
}

func TestRabbitPublisher_Publish(t *testing.T) {
	ch := new(channelMock)
	p := newRabbitPublisherWithChannel(ch, "storefront.events", zap.NewNop())

	ev := Event{Type: OrderPlaced, OrderID: 7, OrderCode: "ORD-X", UserID: 3, Amount: 1800, OccurredAt: time.Unix(100, 0)}

	ch.On("PublishWithContext", "storefront.events", OrderPlaced, mock.MatchedBy(func(msg amqp.Publishing) bool {
		var got Event
		if err := json.Unmarshal(msg.Body, &got); err != nil {
			return false
		}
		return msg.ContentType == "application/json" &&
			msg.DeliveryMode == amqp.Persistent &&
			msg.MessageId != "" &&
			got.OrderID == 7 && got.Amount == 1800
	})).Return(nil)

	require.NoError(t, p.Publish(context.Background(), ev))
	ch.AssertExpectations(t)
}

func TestRabbitPublisher_PublishError(t *testing.T) {
	ch := new(channelMock)
	p := newRabbitPublisherWithChannel(ch, "x", zap.NewNop())
	ch.On("PublishWithContext", "x", OrderPaid, mock.Anything).Return(errors.New("channel closed"))

	err := p.Publish(context.Background(), Event{Type: OrderPaid})

	assert.ErrorContains(t, err, "publish order.paid")
}

func TestNopPublisher(t *testing.T) {
	assert.NoError(t, NopPublisher{}.Publish(context.Background(), Event{Type: OrderPaid}))
}
