package kafka

import (
	"testing"
	"time"

	"coaching-module/config"

	"github.com/stretchr/testify/require"
)

func TestPublishReturnsAfterBrokerFailure(t *testing.T) {
	config.AppConfig.KafkaBrokers = "127.0.0.1:1"
	InitProducer()
	t.Cleanup(func() {
		Close()
		producerMutex.Lock()
		producer = nil
		isConnected = false
		producerMutex.Unlock()
		config.AppConfig.KafkaBrokers = ""
	})

	done := make(chan error, 1)
	go func() {
		done <- Publish(TopicPayments, "order_X", map[string]string{"event": "payment.completed"})
	}()

	// All three attempts fail against the unreachable broker; Publish must
	// surface the error instead of wedging on the producer mutex.
	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(30 * time.Second):
		t.Fatal("Publish did not return after exhausting retries")
	}

	require.False(t, IsConnected())
}
