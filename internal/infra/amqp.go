package infra

import (
	"context"
	"encoding/json"
	"time"

	"parkingcash/internal/dto"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// QueueSesionCerrada receives one message per closed cash session.
const QueueSesionCerrada = "caja.sesion.cerrada"

// amqpDialTimeout bounds the TCP connect and the AMQP handshake.
const amqpDialTimeout = 5 * time.Second

// AMQPPublisher publishes closing events to RabbitMQ. It dials per message:
// closes happen a few times a day, so there is no connection to keep warm.
type AMQPPublisher struct {
	url         string
	dialTimeout time.Duration
}

func NewAMQPPublisher(url string) *AMQPPublisher {
	return &AMQPPublisher{url: url, dialTimeout: amqpDialTimeout}
}

// PublishSessionClosed sends ev as a persistent JSON message to QueueSesionCerrada.
func (p *AMQPPublisher) PublishSessionClosed(ctx context.Context, ev dto.SessionClosedEvent) error {
	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Dial:      amqp.DefaultDial(p.dialTimeout),
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
	})
	if err != nil {
		log.Error().Err(err).Msg("rabbitmq: dial failed")
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Error().Err(err).Msg("rabbitmq: channel open failed")
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(QueueSesionCerrada, true, false, false, false, nil); err != nil {
		log.Error().Err(err).Str("queue", QueueSesionCerrada).Msg("rabbitmq: queue declare failed")
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		MessageId:    ev.SessionID,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", QueueSesionCerrada, false, false, pub); err != nil {
		log.Error().Err(err).Str("session_id", ev.SessionID).Msg("rabbitmq: publish failed")
		return err
	}
	return nil
}
