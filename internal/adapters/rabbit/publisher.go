package rabbit

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange receives every studio booking event, routed by event type.
const Exchange = "studio.events"

// Publisher sends persistent messages on a confirm-mode channel and waits for
// the broker to acknowledge each one, so the outbox only marks what the
// broker actually took.
type Publisher struct {
	mu sync.Mutex
	ch *amqp.Channel
}

func NewPublisher(conn *amqp.Connection) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, errors.Wrap(err, "open channel")
	}
	if err := ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, errors.Wrapf(err, "declare exchange %s", Exchange)
	}
	if err := ch.Confirm(false); err != nil {
		ch.Close()
		return nil, errors.Wrap(err, "enable publisher confirms")
	}
	return &Publisher{ch: ch}, nil
}

func (p *Publisher) Publish(ctx context.Context, key string, msg amqp.Publishing) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	msg.DeliveryMode = amqp.Persistent
	if msg.AppId == "" {
		msg.AppId = "studio-cart"
	}
	confirm, err := p.ch.PublishWithDeferredConfirmWithContext(ctx, Exchange, key, false, false, msg)
	if err != nil {
		return errors.Wrapf(err, "publish %s", key)
	}
	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return errors.Wrapf(err, "confirm %s", key)
	}
	if !acked {
		return errors.Newf("broker rejected %s %s", key, msg.MessageId)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.ch.Close()
}
