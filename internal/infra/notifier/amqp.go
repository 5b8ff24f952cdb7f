package notifier

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/Ayflow350/Ice-empire/internal/domain/model"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
)

const (
	RoutingLowStock  = "inventory.low_stock"
	RoutingOrderPaid = "order.paid"
)

type Message struct {
	Pattern string      `json:"pattern"`
	Data    interface{} `json:"data"`
}

// topic exchange へJSONで流す
type AMQPPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	log      logrus.FieldLogger
}

func NewAMQPPublisher(amqpURL, exchange string, log logrus.FieldLogger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, errors.Wrap(err, "connect to rabbitmq")
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "open channel")
	}

	err = channel.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, errors.Wrap(err, "declare exchange")
	}

	return &AMQPPublisher{
		conn:     conn,
		channel:  channel,
		exchange: exchange,
		log:      log,
	}, nil
}

func (p *AMQPPublisher) LowStock(ctx context.Context, alert model.LowStockAlert) error {
	return p.publish(ctx, RoutingLowStock, alert)
}

func (p *AMQPPublisher) OrderPaid(ctx context.Context, ev model.OrderPaidEvent) error {
	return p.publish(ctx, RoutingOrderPaid, ev)
}

func (p *AMQPPublisher) publish(ctx context.Context, pattern string, data interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := json.Marshal(Message{Pattern: pattern, Data: data})
	if err != nil {
		return errors.Wrap(err, "marshal message")
	}

	//amqp.Channel は並行Publish非対応
	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.Publish(
		p.exchange,
		pattern,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
	if err != nil {
		return errors.Wrapf(err, "publish %s", pattern)
	}

	p.log.WithFields(logrus.Fields{"exchange": p.exchange, "pattern": pattern}).Debug("published")
	return nil
}

func (p *AMQPPublisher) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
