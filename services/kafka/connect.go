package kafka

import (
	"coaching-module/config"
	"coaching-module/db"
	"coaching-module/logger"
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

var (
	dlqProducer    *kafka.Writer
	dlqMutex       sync.Mutex
	dlqRetryTicker *time.Ticker
	stopDLQRetry   chan bool
)

// InitDLQProducer initializes a Kafka writer for the DLQ topic.
func InitDLQProducer() {
	dlqMutex.Lock()
	defer dlqMutex.Unlock()

	if config.AppConfig.KafkaBrokers == "" {
		logger.Info("Kafka DLQ is disabled (KAFKA_BROKERS is empty)")
		return
	}

	brokers := brokerList()
	if len(brokers) == 0 {
		logger.Warn("No valid Kafka brokers configured for DLQ")
		return
	}

	dlqProducer = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        config.AppConfig.KafkaDLQTopic,
		Balancer:     &kafka.LeastBytes{},
		Async:        false,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireAll,
	}

	logger.Info("Kafka DLQ producer initialized. DLQ Topic=%s", config.AppConfig.KafkaDLQTopic)
}

// SendToDLQ publishes a failed message to the dead letter queue. The message
// always lands in the database; the Kafka DLQ topic is best-effort on top.
func SendToDLQ(topic, key string, value []byte, errorMsg string) error {
	dlqMutex.Lock()
	if dlqProducer == nil && config.AppConfig.KafkaBrokers != "" {
		dlqMutex.Unlock()
		InitDLQProducer()
		dlqMutex.Lock()
	}
	defer dlqMutex.Unlock()

	if dlqProducer != nil && config.AppConfig.KafkaDLQTopic != "" {
		dlqMessage := map[string]interface{}{
			"original_topic": topic,
			"original_key":   key,
			"original_value": string(value),
			"error_message":  errorMsg,
			"timestamp":      time.Now().Unix(),
		}

		dlqPayload, err := json.Marshal(dlqMessage)
		if err == nil {
			msg := kafka.Message{Key: []byte(key), Value: dlqPayload}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err = dlqProducer.WriteMessages(ctx, msg)
			cancel()
			if err == nil {
				_ = StoreDLQMessage(topic, key, value, errorMsg)
				return nil
			}

			// A missing topic will not heal on retry; stop hitting the broker.
			if strings.Contains(strings.ToLower(err.Error()), "unknown topic") {
				logger.Warn("DLQ topic missing on broker; disabling DLQ producer: %v", err)
				dlqProducer = nil
			} else {
				logger.Warn("DLQ publish failed, storing to DB only: %v", err)
			}
		} else {
			logger.Error("Error marshaling DLQ message: %v", err)
		}
	}

	return StoreDLQMessage(topic, key, value, errorMsg)
}

// StoreDLQMessage persists a failed message in the dlq_messages table.
func StoreDLQMessage(topic, key string, value []byte, errorMsg string) error {
	dbConn := getDBConnection()
	if dbConn == nil {
		logger.Warn("Database connection not available for DLQ storage")
		return nil
	}

	query := `
		INSERT INTO dlq_messages (message_id, topic, key, value, error_message, created_at)
		VALUES (gen_random_uuid(), $1, $2, $3::jsonb, $4, NOW())
		ON CONFLICT (message_id) DO NOTHING
	`

	_, err := dbConn.Exec(query, topic, key, value, errorMsg)
	if err != nil {
		logger.Error("Error storing DLQ message in database: %v", err)
		return err
	}

	logger.Info("DLQ message stored. Topic: %s, Key: %s", topic, key)
	return nil
}

// GetDLQMessages retrieves unresolved DLQ messages from the database.
func GetDLQMessages(limit int) ([]map[string]interface{}, error) {
	dbConn := getDBConnection()
	if dbConn == nil {
		return nil, nil
	}

	query := `
		SELECT id, message_id, topic, key, value, error_message, retry_count, created_at
		FROM dlq_messages
		WHERE resolved = FALSE
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := dbConn.Query(query, limit)
	if err != nil {
		logger.Error("Error querying DLQ messages: %v", err)
		return nil, err
	}
	defer rows.Close()

	var messages []map[string]interface{}
	for rows.Next() {
		var id int
		var messageID, topic, key string
		var value []byte
		var errorMsg string
		var retryCount int
		var createdAt time.Time

		if err := rows.Scan(&id, &messageID, &topic, &key, &value, &errorMsg, &retryCount, &createdAt); err != nil {
			logger.Error("Error scanning DLQ message: %v", err)
			continue
		}

		messages = append(messages, map[string]interface{}{
			"id":            id,
			"message_id":    messageID,
			"topic":         topic,
			"key":           key,
			"value":         value,
			"error_message": errorMsg,
			"retry_count":   retryCount,
			"created_at":    createdAt,
		})
	}

	return messages, nil
}

// RetryDLQMessage reprocesses one DLQ message by id, resolving it only when
// the handler succeeds.
func RetryDLQMessage(messageID string) error {
	dbConn := getDBConnection()
	if dbConn == nil {
		return nil
	}

	var value []byte
	var topic, key string
	err := dbConn.QueryRow(
		`SELECT value, topic, key FROM dlq_messages WHERE message_id = $1`,
		messageID).Scan(&value, &topic, &key)
	if err != nil {
		logger.Error("Error retrieving DLQ message for retry: %v", err)
		return err
	}

	ok := HandleKafkaMessageForRetry(kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	})

	var updateQuery string
	if ok {
		updateQuery = `
			UPDATE dlq_messages
			SET retry_count = retry_count + 1, last_retry_at = NOW(),
				resolved = TRUE, resolved_at = NOW(), notes = 'Manually retried successfully'
			WHERE message_id = $1
		`
		logger.Info("DLQ message %s resolved by manual retry", messageID)
	} else {
		updateQuery = `
			UPDATE dlq_messages
			SET retry_count = retry_count + 1, last_retry_at = NOW()
			WHERE message_id = $1
		`
		logger.Info("DLQ message %s retry failed, count incremented", messageID)
	}
	_, err = dbConn.Exec(updateQuery, messageID)
	return err
}

// ResolveDLQMessage marks a DLQ message as resolved without reprocessing.
func ResolveDLQMessage(messageID string, notes string) error {
	dbConn := getDBConnection()
	if dbConn == nil {
		return nil
	}

	_, err := dbConn.Exec(`
		UPDATE dlq_messages
		SET resolved = TRUE, resolved_at = NOW(), notes = $2
		WHERE message_id = $1`,
		messageID, notes)
	if err != nil {
		logger.Error("Error resolving DLQ message: %v", err)
		return err
	}

	logger.Info("DLQ message %s marked as resolved", messageID)
	return nil
}

// GetDLQStats returns counts of total, unresolved and resolved DLQ messages.
func GetDLQStats() (map[string]interface{}, error) {
	dbConn := getDBConnection()
	if dbConn == nil {
		return nil, nil
	}

	var total, unresolved, resolved int
	err := dbConn.QueryRow(`
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE resolved = FALSE),
			COUNT(*) FILTER (WHERE resolved = TRUE)
		FROM dlq_messages`).Scan(&total, &unresolved, &resolved)
	if err != nil {
		logger.Error("Error getting DLQ stats: %v", err)
		return nil, err
	}

	return map[string]interface{}{
		"total_dlq_messages":  total,
		"unresolved_messages": unresolved,
		"resolved_messages":   resolved,
	}, nil
}

const dlqRetryInterval = 5 * time.Minute

// StartDLQAutoRetry starts a background loop that periodically retries
// unresolved DLQ messages until they resolve or exhaust max_retries.
func StartDLQAutoRetry() {
	dlqRetryTicker = time.NewTicker(dlqRetryInterval)
	stopDLQRetry = make(chan bool)

	go func() {
		for {
			select {
			case <-dlqRetryTicker.C:
				retryUnresolvedDLQMessages()
			case <-stopDLQRetry:
				return
			}
		}
	}()

	logger.Info("DLQ auto-retry scheduler started (interval %s)", dlqRetryInterval)
}

func retryUnresolvedDLQMessages() {
	dbConn := getDBConnection()
	if dbConn == nil {
		return
	}

	rows, err := dbConn.Query(`
		SELECT message_id, value, topic, key, retry_count, max_retries
		FROM dlq_messages
		WHERE resolved = FALSE AND retry_count < max_retries
		ORDER BY created_at ASC
		LIMIT 10`)
	if err != nil {
		logger.Error("Error querying unresolved DLQ messages: %v", err)
		return
	}
	defer rows.Close()

	processed := 0
	succeeded := 0
	for rows.Next() {
		var messageID string
		var value []byte
		var topic, key string
		var retryAttempts, maxRetries int

		if err := rows.Scan(&messageID, &value, &topic, &key, &retryAttempts, &maxRetries); err != nil {
			logger.Error("Error scanning DLQ message for retry: %v", err)
			continue
		}

		logger.Info("Auto-retrying DLQ message %s (attempt %d/%d)", messageID, retryAttempts+1, maxRetries)

		ok := HandleKafkaMessageForRetry(kafka.Message{
			Topic: topic,
			Key:   []byte(key),
			Value: value,
		})

		if ok {
			if _, err := dbConn.Exec(`
				UPDATE dlq_messages
				SET retry_count = retry_count + 1, last_retry_at = NOW(),
					resolved = TRUE, resolved_at = NOW(), notes = 'Auto-retried successfully'
				WHERE message_id = $1`, messageID); err != nil {
				logger.Error("Error resolving DLQ message %s: %v", messageID, err)
			} else {
				succeeded++
			}
		} else {
			if _, err := dbConn.Exec(`
				UPDATE dlq_messages
				SET retry_count = retry_count + 1, last_retry_at = NOW()
				WHERE message_id = $1`, messageID); err != nil {
				logger.Error("Error updating retry count for %s: %v", messageID, err)
			}
		}
		processed++
	}

	if processed > 0 {
		logger.Info("DLQ auto-retry pass: %d processed, %d resolved", processed, succeeded)
	}
}

// StopDLQAutoRetry stops the automatic DLQ retry loop.
func StopDLQAutoRetry() {
	if dlqRetryTicker != nil {
		dlqRetryTicker.Stop()
	}
	if stopDLQRetry != nil {
		close(stopDLQRetry)
	}
}

func getDBConnection() *sql.DB {
	return db.DB
}
