package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

var _ AlertPublisher = (*RabbitMQAlertPublisher)(nil)

type RabbitMQAlertPublisher struct {
	client *RabbitMQ
}

func NewRabbitMQAlertPublisher(client *RabbitMQ) *RabbitMQAlertPublisher {
	return &RabbitMQAlertPublisher{client: client}
}

func (p *RabbitMQAlertPublisher) Publish(ctx context.Context, msg AlertMessage) error {
	if p == nil || p.client == nil {
		return fmt.Errorf("alert publisher is not initialized")
	}
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("invalid alert message: %w", err)
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal alert message: %w", err)
	}

	ch, err := p.client.channel(ctx)
	if err != nil {
		return err
	}
	defer ch.Close()

	publishing := amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		Timestamp:     time.Now().UTC(),
		Type:          msg.Kind.String(),
		MessageId:     msg.BatchID,
		CorrelationId: msg.CorrelationID,
		Body:          payload,
	}

	if err := ch.PublishWithContext(ctx, "", AlertQueueName, false, false, publishing); err != nil {
		return fmt.Errorf("failed to publish alert for batch %q: %w", msg.BatchID, err)
	}

	return nil
}

func (p *RabbitMQAlertPublisher) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}
