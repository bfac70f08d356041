// Package razorpay wraps the Razorpay SDK behind a single configured client
// constructed at process start and passed to the payment service.
package razorpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"time"

	apperrors "coaching-module/errors"

	razorpaygo "github.com/razorpay/razorpay-go"
)

// Currency is fixed for this deployment; the gateway amount field is paise.
const Currency = "INR"

const requestTimeoutSeconds = 10

// Client is the injected gateway handle. The key secret and webhook secret
// never leave this package.
type Client struct {
	api           *razorpaygo.Client
	keyID         string
	keySecret     string
	webhookSecret string
}

// NewClient validates credentials and configures a bounded-timeout client.
func NewClient(keyID, keySecret, webhookSecret string) (*Client, error) {
	if keyID == "" || keySecret == "" {
		return nil, apperrors.NewInternalServerError("razorpay credentials not configured")
	}
	if webhookSecret == "" {
		webhookSecret = keySecret
	}

	api := razorpaygo.NewClient(keyID, keySecret)
	api.SetTimeout(requestTimeoutSeconds)

	return &Client{
		api:           api,
		keyID:         keyID,
		keySecret:     keySecret,
		webhookSecret: webhookSecret,
	}, nil
}

// KeyID returns the publishable key identifier for client-side checkout.
func (c *Client) KeyID() string {
	return c.keyID
}

// Order is the subset of the gateway order object this service uses.
type Order struct {
	ID          string
	AmountPaise int64
	Currency    string
	Receipt     string
	Status      string
}

// RefundResult is the gateway's confirmation of an issued refund.
type RefundResult struct {
	ID        string
	Status    string
	CreatedAt time.Time
}

// CreateOrder creates a gateway order for the given paise amount.
func (c *Client) CreateOrder(amountPaise int64, receipt, description string) (*Order, error) {
	data := map[string]interface{}{
		"amount":   amountPaise,
		"currency": Currency,
		"receipt":  receipt,
		"notes": map[string]interface{}{
			"description": description,
		},
	}

	resp, err := c.api.Order.Create(data, nil)
	if err != nil {
		return nil, apperrors.NewGatewayError("error creating razorpay order", err)
	}

	orderID, _ := resp["id"].(string)
	if orderID == "" {
		return nil, apperrors.NewGatewayError("razorpay order response missing id", nil)
	}

	return &Order{
		ID:          orderID,
		AmountPaise: amountPaise,
		Currency:    Currency,
		Receipt:     receipt,
		Status:      stringField(resp, "status"),
	}, nil
}

// FetchOrderStatus returns the gateway's current status for an order
// ("created", "attempted" or "paid").
func (c *Client) FetchOrderStatus(orderID string) (string, error) {
	resp, err := c.api.Order.Fetch(orderID, nil, nil)
	if err != nil {
		return "", apperrors.NewGatewayError("error fetching razorpay order", err)
	}
	return stringField(resp, "status"), nil
}

// CreateRefund issues a refund against a captured gateway payment. Local
// state must only be mutated after this returns successfully.
func (c *Client) CreateRefund(gatewayPaymentID string, amountPaise int64, notes map[string]interface{}) (*RefundResult, error) {
	data := map[string]interface{}{
		"speed": "normal",
	}
	if len(notes) > 0 {
		data["notes"] = notes
	}

	resp, err := c.api.Payment.Refund(gatewayPaymentID, int(amountPaise), data, nil)
	if err != nil {
		return nil, apperrors.NewGatewayError("razorpay refund rejected", err)
	}

	refundID, _ := resp["id"].(string)
	if refundID == "" {
		return nil, apperrors.NewGatewayError("razorpay refund response missing id", nil)
	}

	createdAt := time.Now()
	if epoch, ok := resp["created_at"].(float64); ok {
		createdAt = time.Unix(int64(epoch), 0)
	}

	return &RefundResult{
		ID:        refundID,
		Status:    stringField(resp, "status"),
		CreatedAt: createdAt,
	}, nil
}

// VerifyPaymentSignature recomputes the checkout signature over
// "orderID|paymentID" with the key secret and compares in constant time.
func (c *Client) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	return verifyHMAC(c.keySecret, []byte(orderID+"|"+paymentID), signature)
}

// VerifyWebhookSignature verifies the webhook signature over the exact raw
// request body with the webhook secret.
func (c *Client) VerifyWebhookSignature(body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	return verifyHMAC(c.webhookSecret, body, signature)
}

func verifyHMAC(secret string, payload []byte, signature string) bool {
	if secret == "" {
		return false
	}
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	expected := hex.EncodeToString(h.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// ToPaise converts a major-unit amount to paise, rejecting amounts that do
// not land on a whole paisa rather than silently rounding.
func ToPaise(amount float64) (int64, error) {
	if amount <= 0 {
		return 0, apperrors.NewInvalidParamsError("amount must be greater than 0")
	}
	paise := amount * 100
	rounded := math.Round(paise)
	if math.Abs(paise-rounded) > 1e-6 {
		return 0, apperrors.NewInvalidParamsError(
			fmt.Sprintf("amount %.4f does not convert to a whole paise value", amount))
	}
	return int64(rounded), nil
}

// FromPaise converts a gateway paise amount back to the major unit.
func FromPaise(paise int64) float64 {
	return float64(paise) / 100
}

func stringField(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}
