package billing

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edumax-app/edumax/app/models"
)

func newTestAppmaxClient(srv *httptest.Server) *AppmaxClient {
	return &AppmaxClient{
		APIToken:   "test-token",
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
	}
}

func TestAppmaxOpenTransaction(t *testing.T) {
	var gotAuth string
	var gotBody map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/transactions", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"transaction_id":  "txn_123",
			"subscription_id": "sub_456",
			"status":          "pending",
			"checkout_url":    "https://checkout.appmax.com.br/txn_123",
		})
	}))
	defer srv.Close()

	client := newTestAppmaxClient(srv)
	result, err := client.OpenTransaction(context.Background(), OpenTransactionInput{
		AmountCents:   1000,
		Method:        models.PaymentMethodPix,
		Recurring:     true,
		CustomerName:  "Maria Silva",
		CustomerEmail: "maria@example.com",
		CustomerCPF:   "12345678901",
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.Equal(t, "pix", gotBody["method"])
	assert.Equal(t, float64(1000), gotBody["amount_cents"])
	assert.Equal(t, true, gotBody["recurring"])

	assert.Equal(t, "txn_123", result.TransactionID)
	assert.Equal(t, "sub_456", result.SubscriptionID)
	assert.Equal(t, "https://checkout.appmax.com.br/txn_123", result.CheckoutURL)
}

func TestAppmaxOpenTransactionMissingSubscriptionID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"transaction_id": "txn_123",
			"status":         "pending",
			"checkout_url":   "https://checkout.appmax.com.br/txn_123",
		})
	}))
	defer srv.Close()

	client := newTestAppmaxClient(srv)
	_, err := client.OpenTransaction(context.Background(), OpenTransactionInput{
		AmountCents: 1000,
		Method:      models.PaymentMethodCard,
		Recurring:   true,
	})
	require.Error(t, err)

	var gwErr *GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.False(t, gwErr.Uncertain)
}

func TestAppmaxOpenTransactionGatewayRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "card declined"})
	}))
	defer srv.Close()

	client := newTestAppmaxClient(srv)
	_, err := client.OpenTransaction(context.Background(), OpenTransactionInput{
		AmountCents: 1000,
		Method:      models.PaymentMethodCard,
	})
	require.Error(t, err)

	var gwErr *GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.False(t, gwErr.Uncertain, "explicit rejection means nothing happened, retry is safe")
	assert.Contains(t, gwErr.Error(), "card declined")
}

func TestAppmaxOpenTransactionTimeoutIsUncertain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client := newTestAppmaxClient(srv)
	client.HTTPClient = &http.Client{Timeout: 20 * time.Millisecond}

	_, err := client.OpenTransaction(context.Background(), OpenTransactionInput{
		AmountCents: 1000,
		Method:      models.PaymentMethodPix,
	})
	require.Error(t, err)

	var gwErr *GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.True(t, gwErr.Uncertain, "timeout must be flagged uncertain so callers do not blindly retry")
}

func TestAppmaxCancelSubscription(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "cancellation_requested"})
	}))
	defer srv.Close()

	client := newTestAppmaxClient(srv)
	require.NoError(t, client.CancelSubscription(context.Background(), "sub_456"))
	assert.Equal(t, "/subscriptions/sub_456/cancel", gotPath)

	err := client.CancelSubscription(context.Background(), " ")
	require.Error(t, err)
}
