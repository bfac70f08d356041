package main

import (
	"context"
	netHttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coaching-module/config"
	"coaching-module/db"
	"coaching-module/http"
	"coaching-module/http/handlers"
	"coaching-module/logger"
	"coaching-module/razorpay"
	"coaching-module/services"
)

func main() {
	config.LoadConfig()

	// Gateway client is constructed once here and injected; nothing else
	// touches the credentials.
	gateway, err := razorpay.NewClient(
		config.AppConfig.RazorpayKeyID,
		config.AppConfig.RazorpayKeySecret,
		config.AppConfig.RazorpayWebhookSecret,
	)
	if err != nil {
		logger.Fatal("Error configuring payment gateway: %v", err)
	}

	if err := db.InitDB(); err != nil {
		logger.Fatal("Error initializing database: %v", err)
	}

	// Kafka is best-effort; a missing broker degrades to DLQ-in-DB.
	services.InitProducer()
	services.InitDLQProducer()
	services.RegisterEmailProcessor(func(event map[string]interface{}) error {
		recipient, _ := event["recipient"].(string)
		subject, _ := event["subject"].(string)
		body, _ := event["body"].(string)
		if att, ok := event["attachment"].(string); ok && att != "" {
			return services.SendEmailDirect(recipient, subject, body, att)
		}
		return services.SendEmailDirect(recipient, subject, body)
	})
	if err := services.InitConsumer(); err != nil {
		logger.Warn("Kafka consumer init failed: %v", err)
	}
	services.StartConsumer()
	services.StartDLQAutoRetry()

	paymentStore := db.NewPaymentStore(db.DB)
	studentStore := db.NewStudentStore(db.DB)
	webhookStore := db.NewWebhookStore(db.DB)

	notifier := services.NewNotificationService(studentStore)
	paymentService := services.NewPaymentService(paymentStore, studentStore, gateway, notifier)
	webhookService := services.NewWebhookService(paymentStore, gateway, webhookStore, notifier)

	mux := http.SetupRoutes(
		handlers.NewPaymentHandler(paymentService),
		handlers.NewWebhookHandler(webhookService),
	)

	server := &netHttp.Server{
		Addr:         config.AppConfig.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("Server starting on %s", config.AppConfig.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != netHttp.ErrServerClosed {
			logger.Fatal("Server error: %v", err)
		}
	}()

	<-sigChan
	logger.Info("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Error shutting down HTTP server: %v", err)
	}

	services.StopDLQAutoRetry()
	if err := services.StopConsumer(); err != nil {
		logger.Error("Error stopping Kafka consumer: %v", err)
	}
	if err := services.Close(); err != nil {
		logger.Error("Error closing Kafka producer: %v", err)
	}

	logger.Info("Server shutdown complete")
}
