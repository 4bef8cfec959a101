package services

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const dispatchQueueName = "campaign_dispatch"

// dispatchMessage is the payload carried on the dispatch queue
type dispatchMessage struct {
	CampaignID uint      `json:"campaign_id"`
	QueuedAt   time.Time `json:"queued_at"`
}

// RabbitMQService decouples campaign launch from execution: Launch publishes
// to the dispatch queue, the consumer drives the execution engine.
type RabbitMQService struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

func NewRabbitMQService() (*RabbitMQService, error) {
	host := getEnv("RABBITMQ_HOST", "localhost")
	port := getEnv("RABBITMQ_PORT", "5672")
	user := getEnv("RABBITMQ_USER", "guest")
	pass := getEnv("RABBITMQ_PASS", "guest")

	url := fmt.Sprintf("amqp://%s:%s@%s:%s/", user, pass, host, port)

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	_, err = channel.QueueDeclare(
		dispatchQueueName, // name
		true,              // durable
		false,             // delete when unused
		false,             // exclusive
		false,             // no-wait
		nil,               // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	logrus.Info("RabbitMQ service initialized successfully")
	return &RabbitMQService{conn: conn, channel: channel}, nil
}

// PublishCampaignDispatch enqueues one campaign for execution
func (s *RabbitMQService) PublishCampaignDispatch(campaignID uint) error {
	body, err := json.Marshal(dispatchMessage{CampaignID: campaignID, QueuedAt: time.Now()})
	if err != nil {
		return fmt.Errorf("failed to marshal dispatch message: %w", err)
	}

	err = s.channel.Publish(
		"",                // exchange
		dispatchQueueName, // routing key
		false,             // mandatory
		false,             // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    time.Now(),
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish dispatch message: %w", err)
	}

	logrus.Infof("Campaign %d published to dispatch queue", campaignID)
	return nil
}

// StartDispatchConsumer consumes dispatch messages and hands each campaign id
// to the handler. Malformed messages are dropped.
func (s *RabbitMQService) StartDispatchConsumer(handler func(campaignID uint)) error {
	deliveries, err := s.channel.Consume(
		dispatchQueueName, // queue
		"",                // consumer
		false,             // auto-ack
		false,             // exclusive
		false,             // no-local
		false,             // no-wait
		nil,               // args
	)
	if err != nil {
		return fmt.Errorf("failed to start consumer: %w", err)
	}

	go consumeDispatches(deliveries, handler)

	logrus.Infof("Dispatch consumer started on queue %s", dispatchQueueName)
	return nil
}

// consumeDispatches runs each campaign in its own goroutine so one long run
// never delays another owner's campaigns. Dispatches are acked on receipt:
// a campaign run lasts recipients x delay, far beyond the broker's consumer
// ack timeout, and a failed run is recorded in the database and must not be
// replayed anyway.
func consumeDispatches(deliveries <-chan amqp.Delivery, handler func(campaignID uint)) {
	for delivery := range deliveries {
		var msg dispatchMessage
		if err := json.Unmarshal(delivery.Body, &msg); err != nil {
			logrus.Errorf("Dropping malformed dispatch message: %v", err)
			delivery.Nack(false, false)
			continue
		}
		delivery.Ack(false)
		go handler(msg.CampaignID)
	}
	logrus.Warn("Dispatch consumer channel closed")
}

// Close closes the RabbitMQ connection
func (s *RabbitMQService) Close() error {
	if s.channel != nil {
		if err := s.channel.Close(); err != nil {
			logrus.Errorf("Error closing channel: %v", err)
		}
	}
	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			logrus.Errorf("Error closing connection: %v", err)
		}
	}
	return nil
}

// getEnv gets environment variable with fallback default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
