package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/edumax-app/edumax/app/models"
	"github.com/edumax-app/edumax/internal/pkg/env"
)

const defaultAppmaxAPIBaseURL = "https://api.appmax.com.br/v3"

// Gateway is the billing gateway surface the service depends on. The real
// implementation is AppmaxClient; tests substitute a fake.
type Gateway interface {
	OpenTransaction(ctx context.Context, in OpenTransactionInput) (*OpenTransactionResult, error)
	CancelSubscription(ctx context.Context, subscriptionID string) error
}

// AppmaxClient talks to the Appmax payment API. Calls carry a bounded timeout
// and are never retried: the gateway endpoints are not idempotent and a blind
// retry after an ambiguous failure could double-charge.
type AppmaxClient struct {
	APIToken string
	BaseURL  string

	HTTPClient *http.Client
}

// OpenTransactionInput describes a new billing attempt sent to the gateway.
type OpenTransactionInput struct {
	AmountCents    int
	Method         models.PaymentMethod
	Recurring      bool
	CustomerName   string
	CustomerEmail  string
	CustomerCPF    string
	PaymentDetails map[string]string
}

// OpenTransactionResult carries the gateway-issued identifiers and the
// checkout data forwarded to the end user.
type OpenTransactionResult struct {
	TransactionID  string     `json:"transaction_id"`
	SubscriptionID string     `json:"subscription_id,omitempty"`
	Status         string     `json:"status"`
	CheckoutURL    string     `json:"checkout_url"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
}

func NewAppmaxClientFromEnv() *AppmaxClient {
	return &AppmaxClient{
		APIToken: strings.TrimSpace(env.GetEnv("APPMAX_API_TOKEN", "")),
		BaseURL:  strings.TrimRight(env.GetEnv("APPMAX_API_BASE_URL", defaultAppmaxAPIBaseURL), "/"),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// OpenTransaction opens a transaction (and a recurring mandate when
// requested) on the gateway. Transport failures are reported as uncertain:
// the request may have reached the gateway even though no response came back.
func (c *AppmaxClient) OpenTransaction(ctx context.Context, in OpenTransactionInput) (*OpenTransactionResult, error) {
	if strings.TrimSpace(c.APIToken) == "" {
		return nil, &GatewayError{Op: "open_transaction", Err: errors.New("APPMAX_API_TOKEN is not configured")}
	}

	body := map[string]interface{}{
		"amount_cents": in.AmountCents,
		"method":       string(in.Method),
		"recurring":    in.Recurring,
		"customer": map[string]string{
			"name":  in.CustomerName,
			"email": in.CustomerEmail,
			"cpf":   in.CustomerCPF,
		},
	}
	if len(in.PaymentDetails) > 0 {
		body["payment_details"] = in.PaymentDetails
	}

	var result OpenTransactionResult
	if err := c.postJSON(ctx, "open_transaction", c.BaseURL+"/transactions", body, &result); err != nil {
		return nil, err
	}

	if strings.TrimSpace(result.TransactionID) == "" {
		return nil, &GatewayError{Op: "open_transaction", Err: errors.New("gateway response missing transaction_id")}
	}
	if in.Recurring && strings.TrimSpace(result.SubscriptionID) == "" {
		return nil, &GatewayError{Op: "open_transaction", Err: errors.New("gateway response missing subscription_id for recurring mandate")}
	}
	return &result, nil
}

// CancelSubscription asks the gateway to cancel a recurring mandate. The
// authoritative confirmation arrives later as a subscription_update webhook.
func (c *AppmaxClient) CancelSubscription(ctx context.Context, subscriptionID string) error {
	id := strings.TrimSpace(subscriptionID)
	if id == "" {
		return &GatewayError{Op: "cancel_subscription", Err: errors.New("subscription id is required")}
	}
	if strings.TrimSpace(c.APIToken) == "" {
		return &GatewayError{Op: "cancel_subscription", Err: errors.New("APPMAX_API_TOKEN is not configured")}
	}

	return c.postJSON(ctx, "cancel_subscription", c.BaseURL+"/subscriptions/"+id+"/cancel", map[string]interface{}{}, nil)
}

func (c *AppmaxClient) postJSON(ctx context.Context, op, url string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &GatewayError{Op: op, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return &GatewayError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIToken)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		// The request may have been sent before the failure; flag the outcome
		// as uncertain so callers do not retry into a duplicate charge.
		return &GatewayError{Op: op, Uncertain: true, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &GatewayError{Op: op, Uncertain: true, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := gatewayErrorMessage(raw)
		return &GatewayError{Op: op, Err: fmt.Errorf("gateway returned %d: %s", resp.StatusCode, msg)}
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return &GatewayError{Op: op, Uncertain: true, Err: fmt.Errorf("decoding gateway response: %w", err)}
		}
	}
	return nil
}

func (c *AppmaxClient) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func gatewayErrorMessage(raw []byte) string {
	var parsed struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &parsed); err == nil {
		if parsed.Message != "" {
			return parsed.Message
		}
		if parsed.Error != "" {
			return parsed.Error
		}
	}
	s := strings.TrimSpace(string(raw))
	if len(s) > 200 {
		s = s[:200]
	}
	if s == "" {
		s = "empty response body"
	}
	return s
}
