package smpp

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"
)

// AMQP bus deployment: every worker publishes receipts to one fanout
// exchange and consumes them from its own exclusive queue bound to that
// exchange. Selected instead of the TCP bus by RECEIPT_BUS_AMQP_URL.
const amqpExchange = "smpp.receipts"

const (
	amqpReconnectDelay = 5 * time.Second
	amqpReInitDelay    = 2 * time.Second
)

// AMQPBus is a reconnecting AMQP client acting as both the publishing and
// the subscribing end of the receipt bus.
type AMQPBus struct {
	m       *sync.Mutex
	addr    string
	handler func(payload []byte)

	connection      *amqp.Connection
	channel         *amqp.Channel
	done            chan bool
	notifyConnClose chan *amqp.Error
	notifyChanClose chan *amqp.Error
	isReady         bool
	closed          bool
}

// NewAMQPBus connects to the broker at addr and starts delivering every
// bus payload to handler. The connection is re-established for as long as
// the bus is not closed.
func NewAMQPBus(addr string, handler func(payload []byte)) *AMQPBus {
	bus := &AMQPBus{
		m:       &sync.Mutex{},
		addr:    addr,
		handler: handler,
		done:    make(chan bool),
	}
	go bus.handleReconnect()
	return bus
}

func (bus *AMQPBus) handleReconnect() {
	for {
		bus.m.Lock()
		bus.isReady = false
		bus.m.Unlock()

		log.Info("Connecting to the AMQP receipt bus")
		conn, err := amqp.Dial(bus.addr)
		if err != nil {
			log.WithFields(log.Fields{"error": err}).Warn("Failed to connect to AMQP. Retrying...")
			select {
			case <-bus.done:
				return
			case <-time.After(amqpReconnectDelay):
			}
			continue
		}

		bus.m.Lock()
		bus.connection = conn
		bus.notifyConnClose = make(chan *amqp.Error, 1)
		conn.NotifyClose(bus.notifyConnClose)
		bus.m.Unlock()

		if done := bus.handleReInit(conn); done {
			return
		}
	}
}

func (bus *AMQPBus) handleReInit(conn *amqp.Connection) bool {
	for {
		err := bus.init(conn)
		if err != nil {
			log.WithFields(log.Fields{"error": err}).Warn("Failed to initialize AMQP channel. Retrying...")
			select {
			case <-bus.done:
				return true
			case <-bus.notifyConnClose:
				return false
			case <-time.After(amqpReInitDelay):
			}
			continue
		}

		select {
		case <-bus.done:
			return true
		case <-bus.notifyConnClose:
			log.Warn("AMQP connection closed. Reconnecting...")
			return false
		case <-bus.notifyChanClose:
			log.Warn("AMQP channel closed. Re-initializing...")
		}
	}
}

// init declares the fanout exchange, binds an exclusive queue to it and
// starts the consumer.
func (bus *AMQPBus) init(conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return err
	}

	if err := ch.ExchangeDeclare(amqpExchange, "fanout", false, false, false, false, nil); err != nil {
		return fmt.Errorf("declaring exchange %s: %w", amqpExchange, err)
	}

	q, err := ch.QueueDeclare(
		"",    // broker-named
		false, // Durable
		true,  // Delete when unused
		true,  // Exclusive
		false, // No-wait
		nil,   // Arguments
	)
	if err != nil {
		return fmt.Errorf("declaring subscriber queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, "", amqpExchange, false, nil); err != nil {
		return fmt.Errorf("binding queue %s: %w", q.Name, err)
	}

	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("starting consumer on %s: %w", q.Name, err)
	}
	go bus.consume(deliveries)

	bus.m.Lock()
	bus.channel = ch
	bus.notifyChanClose = make(chan *amqp.Error, 1)
	ch.NotifyClose(bus.notifyChanClose)
	bus.isReady = true
	bus.m.Unlock()

	log.WithFields(log.Fields{"queue": q.Name}).Info("AMQP receipt bus ready")
	return nil
}

func (bus *AMQPBus) consume(deliveries <-chan amqp.Delivery) {
	for d := range deliveries {
		metricBusDelivered.Inc()
		bus.handler(d.Body)
	}
}

// Publish sends one bus payload to the fanout exchange.
func (bus *AMQPBus) Publish(payload []byte) error {
	bus.m.Lock()
	ch := bus.channel
	ready := bus.isReady
	bus.m.Unlock()

	if !ready || ch == nil {
		return fmt.Errorf("amqp bus is not connected")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := ch.PublishWithContext(ctx, amqpExchange, "", false, false, amqp.Publishing{
		ContentType: "application/octet-stream",
		Body:        payload,
	})
	if err != nil {
		return err
	}
	metricBusPublished.Inc()
	return nil
}

// Close shuts the connection down and stops the reconnect loop.
func (bus *AMQPBus) Close() error {
	bus.m.Lock()
	defer bus.m.Unlock()

	if bus.closed {
		return fmt.Errorf("bus already closed")
	}
	bus.closed = true
	close(bus.done)

	if !bus.isReady {
		return nil
	}
	if err := bus.channel.Close(); err != nil {
		return err
	}
	if err := bus.connection.Close(); err != nil {
		return err
	}
	bus.isReady = false
	return nil
}
