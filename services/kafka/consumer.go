package kafka

import (
	"coaching-module/config"
	"coaching-module/logger"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

var (
	consumer        *kafka.Reader
	consumerMutex   sync.Mutex
	consumerRunning bool
	stopConsumer    chan bool
	// emailProcessor delivers email.send events over SMTP. Registered from
	// main to keep this package free of the mail dependency.
	emailProcessor func(map[string]interface{}) error
)

// InitConsumer initializes a Kafka reader on the emails topic. The payments
// topic is produce-only here; downstream systems own its consumption.
func InitConsumer() error {
	consumerMutex.Lock()
	defer consumerMutex.Unlock()

	if config.AppConfig.KafkaBrokers == "" {
		logger.Info("Kafka consumer is disabled (KAFKA_BROKERS is empty)")
		return nil
	}

	brokers := brokerList()
	if len(brokers) == 0 {
		logger.Warn("No valid Kafka brokers configured for consumer")
		return nil
	}

	consumer = kafka.NewReader(kafka.ReaderConfig{
		Brokers:          brokers,
		Topic:            TopicEmails,
		GroupID:          "coaching-module-consumer-group",
		StartOffset:      -1,
		CommitInterval:   time.Second,
		MaxBytes:         10e6,
		SessionTimeout:   20 * time.Second,
		ReadBackoffMin:   100 * time.Millisecond,
		ReadBackoffMax:   1 * time.Second,
		QueueCapacity:    100,
		RebalanceTimeout: 60 * time.Second,
	})

	stopConsumer = make(chan bool)
	logger.Info("Kafka consumer initialized. Topic=%s", TopicEmails)
	return nil
}

// RegisterEmailProcessor registers the callback that handles email.send
// events.
func RegisterEmailProcessor(fn func(map[string]interface{}) error) {
	consumerMutex.Lock()
	defer consumerMutex.Unlock()
	emailProcessor = fn
}

// StartConsumer starts consuming messages in a background goroutine.
func StartConsumer() {
	consumerMutex.Lock()
	if consumer == nil {
		consumerMutex.Unlock()
		logger.Warn("Consumer not initialized, cannot start")
		return
	}
	if consumerRunning {
		consumerMutex.Unlock()
		logger.Warn("Consumer already running")
		return
	}
	consumerRunning = true
	consumerMutex.Unlock()

	go consumeMessages()
	logger.Info("Kafka consumer started")
}

func consumeMessages() {
	defer func() {
		consumerMutex.Lock()
		consumerRunning = false
		consumerMutex.Unlock()
	}()

	// Allow time for the broker to stabilize after startup.
	time.Sleep(2 * time.Second)

	for {
		select {
		case <-stopConsumer:
			logger.Info("Consumer stop signal received")
			return
		default:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			msg, err := consumer.ReadMessage(ctx)
			cancel()

			if err != nil {
				if err == context.DeadlineExceeded || err.Error() == "EOF" {
					continue
				}
				if strings.Contains(err.Error(), "Group Coordinator Not Available") {
					time.Sleep(500 * time.Millisecond)
					continue
				}
				time.Sleep(1 * time.Second)
				continue
			}

			_ = HandleKafkaMessageForRetry(msg)
		}
	}
}

// HandleKafkaMessageForRetry processes one message and reports success.
// Failed messages go to the DLQ and return false so retry bookkeeping can
// distinguish outcomes.
func HandleKafkaMessageForRetry(msg kafka.Message) bool {
	var eventData map[string]interface{}
	if err := json.Unmarshal(msg.Value, &eventData); err != nil {
		logger.Error("Error unmarshaling message: %v", err)
		_ = SendToDLQ(msg.Topic, string(msg.Key), msg.Value, "Failed to unmarshal JSON: "+err.Error())
		return false
	}

	eventType, ok := eventData["event"].(string)
	if !ok {
		logger.Warn("Message does not contain event type")
		_ = SendToDLQ(msg.Topic, string(msg.Key), msg.Value, "Message does not contain valid event type")
		return false
	}

	var handlerErr error
	switch eventType {
	case "email.send":
		handlerErr = handleEmailSend(eventData)
	case "payment.completed", "payment.failed", "payment.refunded":
		// Published for downstream consumers; acknowledged here so replayed
		// DLQ entries do not loop forever.
		handlerErr = nil
	default:
		logger.Warn("Unknown event type: %s", eventType)
		_ = SendToDLQ(msg.Topic, string(msg.Key), msg.Value, "Unknown event type: "+eventType)
		return false
	}

	if handlerErr != nil {
		logger.Error("Error handling event type %s: %v", eventType, handlerErr)
		_ = SendToDLQ(msg.Topic, string(msg.Key), msg.Value, "Handler error: "+handlerErr.Error())
		return false
	}

	return true
}

func handleEmailSend(event map[string]interface{}) error {
	recipient, ok := event["recipient"].(string)
	if !ok || recipient == "" {
		return fmt.Errorf("invalid recipient in email event")
	}
	subject, ok := event["subject"].(string)
	if !ok || subject == "" {
		return fmt.Errorf("invalid subject in email event")
	}
	if body, ok := event["body"].(string); !ok || body == "" {
		return fmt.Errorf("invalid body in email event")
	}

	logger.Info("Delivering email - Recipient: %s, Subject: %s", recipient, subject)

	consumerMutex.Lock()
	processor := emailProcessor
	consumerMutex.Unlock()

	if processor != nil {
		return processor(event)
	}
	return fmt.Errorf("email processor not registered")
}

// StopConsumer stops the consumer gracefully.
func StopConsumer() error {
	consumerMutex.Lock()
	defer consumerMutex.Unlock()

	if !consumerRunning || consumer == nil {
		return nil
	}

	close(stopConsumer)

	if err := consumer.Close(); err != nil {
		logger.Error("Error closing consumer: %v", err)
		return err
	}

	logger.Info("Kafka consumer stopped")
	return nil
}

// IsConsumerRunning reports whether the consume loop is active.
func IsConsumerRunning() bool {
	consumerMutex.Lock()
	defer consumerMutex.Unlock()
	return consumerRunning && consumer != nil
}
