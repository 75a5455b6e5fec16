package rabbitmq

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	DefaultExchange = "city.events"
	AppID           = "delivery-service"

	// Wait window for Return / Confirm
	publishWait = 2 * time.Second
)

var (
	ErrMissingRoutingKey = errors.New("missing routingKey")
	ErrMissingMessageID  = errors.New("missing messageID")
	ErrChannelNotReady   = errors.New("publisher channel not ready")
)

// channel is the slice of *amqp.Channel the publisher uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type Publisher struct {
	url      string
	exchange string

	mu sync.Mutex

	conn *amqp.Connection
	ch   channel

	confirmCh <-chan amqp.Confirmation
	returnCh  <-chan amqp.Return
}

func NewPublisher(url, exchange string) (*Publisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}

	p := &Publisher{
		url:      url,
		exchange: exchange,
	}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Publisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return err
	}

	if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}

	// enable publisher confirms
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}

	p.conn = conn
	p.ch = ch
	p.confirmCh = ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	p.returnCh = ch.NotifyReturn(make(chan amqp.Return, 1))
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
	return nil
}

// PublishEvent publishes a JSON envelope to the topic exchange with mandatory + confirms.
// messageID MUST be the outbox message_id so consumers can dedupe redeliveries.
func (p *Publisher) PublishEvent(ctx context.Context, routingKey, messageID string, body []byte) error {
	if strings.TrimSpace(routingKey) == "" {
		return ErrMissingRoutingKey
	}
	if strings.TrimSpace(messageID) == "" {
		return ErrMissingMessageID
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil {
		return ErrChannelNotReady
	}

	err := p.ch.PublishWithContext(
		ctx,
		p.exchange,
		routingKey,
		true,  // mandatory
		false, // immediate
		amqp.Publishing{
			MessageId:    messageID,
			AppId:        AppID,
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
	if err != nil {
		return err
	}

	return p.awaitConfirm(ctx)
}

// awaitConfirm waits for a Return (NO_ROUTE) or the broker confirm.
// A Return always precedes the Ack for the same publish.
func (p *Publisher) awaitConfirm(ctx context.Context) error {
	timer := time.NewTimer(publishWait)
	defer timer.Stop()

	select {
	case ret := <-p.returnCh:
		// drain the matching confirm so it is not read by the next publish
		select {
		case <-p.confirmCh:
		case <-timer.C:
		}
		return errors.New("NO_ROUTE: " + ret.RoutingKey)
	case conf, ok := <-p.confirmCh:
		if !ok {
			return ErrChannelNotReady
		}
		if !conf.Ack {
			return errors.New("publish nack")
		}
		return nil
	case <-timer.C:
		// unconfirmed: the outbox row stays pending and is retried
		return errors.New("publish confirm timeout")
	case <-ctx.Done():
		return ctx.Err()
	}
}
