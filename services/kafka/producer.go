package kafka

import (
	"coaching-module/config"
	"coaching-module/logger"
	"context"
	"encoding/json"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// Topics published by the payment service. The emails topic is also consumed
// by this process; payments is for downstream consumers.
const (
	TopicPayments = "payments"
	TopicEmails   = "emails"
)

var (
	producer      *kafka.Writer
	producerMutex sync.Mutex
	isConnected   bool
)

// brokerList parses the configured broker string, dropping empty entries.
func brokerList() []string {
	var brokers []string
	for _, b := range strings.Split(config.AppConfig.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// InitProducer initializes a Kafka writer using brokers from the config.
// With no brokers configured Kafka stays disabled and publishes become
// no-ops.
func InitProducer() {
	producerMutex.Lock()
	defer producerMutex.Unlock()

	if config.AppConfig.KafkaBrokers == "" {
		logger.Info("Kafka is disabled (KAFKA_BROKERS is empty)")
		return
	}

	brokers := brokerList()
	if len(brokers) == 0 {
		logger.Warn("No valid Kafka brokers configured")
		return
	}

	ensureTopicsExist(brokers)

	producer = newWriter(brokers)

	logger.Info("Kafka producer initialized. Brokers=%v", brokers)
	isConnected = true
}

func newWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.LeastBytes{},
		Async:        false,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireAll,
	}
}

// ensureTopicsExist creates the required topics in the background so a fresh
// broker does not need manual setup. Failures here only mean the broker must
// have the topics pre-created.
func ensureTopicsExist(brokers []string) {
	go func() {
		required := []string{TopicPayments, TopicEmails}
		if t := strings.TrimSpace(config.AppConfig.KafkaDLQTopic); t != "" && t != TopicPayments && t != TopicEmails {
			required = append(required, t)
		}

		const maxRetries = 5
		for attempt := 0; attempt < maxRetries; attempt++ {
			if attempt > 0 {
				time.Sleep(time.Duration(math.Pow(2, float64(attempt))) * time.Second)
			} else {
				time.Sleep(1 * time.Second)
			}

			conn, err := kafka.Dial("tcp", brokers[0])
			if err != nil {
				if attempt == maxRetries-1 {
					logger.Warn("Could not reach Kafka for topic creation after %d attempts: %v", maxRetries, err)
				}
				continue
			}

			created := 0
			for _, topic := range required {
				err := conn.CreateTopics(kafka.TopicConfig{
					Topic:             topic,
					NumPartitions:     1,
					ReplicationFactor: 1,
				})
				if err == nil || strings.Contains(err.Error(), "already exists") {
					created++
				}
			}
			conn.Close()

			if created >= len(required) {
				return
			}
		}
	}()
}

// Publish marshals value to JSON and publishes it to the given topic with
// key, retrying with exponential backoff. After the final failure the message
// lands in the DLQ table so nothing is silently lost.
func Publish(topic, key string, value interface{}) error {
	producerMutex.Lock()
	if producer == nil && config.AppConfig.KafkaBrokers != "" {
		producerMutex.Unlock()
		InitProducer()
		producerMutex.Lock()
	}
	defer producerMutex.Unlock()

	if producer == nil || config.AppConfig.KafkaBrokers == "" {
		return nil
	}

	payload, err := json.Marshal(value)
	if err != nil {
		logger.Error("Error marshaling Kafka message: %v", err)
		return err
	}

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: payload,
	}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := producer.WriteMessages(ctx, msg)
		cancel()

		if err == nil {
			isConnected = true
			return nil
		}

		lastErr = err
		logger.Warn("Kafka publish attempt %d failed for topic %s: %v", attempt+1, topic, err)

		if attempt < 2 {
			time.Sleep(time.Duration(math.Pow(2, float64(attempt))) * time.Second)
		}
		isConnected = false

		// Recreate the writer once mid-way to shake off stale broker
		// metadata. Built inline: the producer mutex is already held here,
		// so re-entering InitProducer would deadlock.
		if attempt == 1 {
			producer.Close()
			producer = newWriter(brokerList())
		}
	}

	logger.Info("Storing failed message in DLQ. Topic: %s, Key: %s", topic, key)
	if dlqErr := StoreDLQMessage(topic, key, payload, lastErr.Error()); dlqErr != nil {
		logger.Error("Failed to store message in DLQ: %v", dlqErr)
	}

	return lastErr
}

// IsConnected reports whether the producer reached the brokers on its last
// write.
func IsConnected() bool {
	producerMutex.Lock()
	defer producerMutex.Unlock()
	return isConnected && producer != nil
}

// Close gracefully closes the Kafka producer.
func Close() error {
	producerMutex.Lock()
	defer producerMutex.Unlock()

	if producer != nil {
		return producer.Close()
	}
	return nil
}
