// Package gateway is a client for the hosted checkout payment gateway.
//
// A checkout session is opened for one payment and the customer is
// redirected to its URL. After the redirect back, the session is retrieved
// to learn whether the payment completed.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fuel-delivery/internal/config"
)

// Session statuses reported by the gateway.
const (
	StatusOpen     = "open"
	StatusComplete = "complete"
	StatusExpired  = "expired"
)

// SessionRequest describes the single line item being paid for.
type SessionRequest struct {
	PaymentID string
	Name      string
	Amount    float64
	Quantity  int64
}

// Session is a checkout session.
type Session struct {
	ID            string            `json:"id"`
	URL           string            `json:"url"`
	Status        string            `json:"status"`
	PaymentStatus string            `json:"payment_status,omitempty"`
	PaymentIntent string            `json:"payment_intent,omitempty"`
	AmountTotal   int64             `json:"amount_total,omitempty"`
	Currency      string            `json:"currency,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

type lineItem struct {
	Name       string `json:"name"`
	UnitAmount int64  `json:"unit_amount"`
	Currency   string `json:"currency"`
	Quantity   int64  `json:"quantity"`
}

type createSessionBody struct {
	Mode       string            `json:"mode"`
	LineItems  []lineItem        `json:"line_items"`
	SuccessURL string            `json:"success_url"`
	CancelURL  string            `json:"cancel_url"`
	Metadata   map[string]string `json:"metadata"`
}

// Error is a non-2xx gateway answer.
type Error struct {
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("gateway returned status %d: %s", e.StatusCode, e.Body)
}

// Client talks to the gateway REST API.
type Client struct {
	baseURL    string
	secretKey  string
	successURL string
	cancelURL  string
	currency   string
	httpClient *http.Client
}

// NewClient builds a client from cfg.
func NewClient(cfg config.GatewayConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	currency := cfg.Currency
	if currency == "" {
		currency = "usd"
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		secretKey:  cfg.SecretKey,
		successURL: cfg.SuccessURL,
		cancelURL:  cfg.CancelURL,
		currency:   currency,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// MinorUnits converts an amount to integer cents, rounding half away from zero.
func MinorUnits(amount float64) int64 {
	return decimal.NewFromFloat(amount).Shift(2).Round(0).IntPart()
}

// CreateSession opens a checkout session for req.
func (c *Client) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	quantity := req.Quantity
	if quantity <= 0 {
		quantity = 1
	}
	body := createSessionBody{
		Mode: "payment",
		LineItems: []lineItem{{
			Name:       req.Name,
			UnitAmount: MinorUnits(req.Amount),
			Currency:   c.currency,
			Quantity:   quantity,
		}},
		SuccessURL: c.returnURL(c.successURL, req.PaymentID),
		CancelURL:  c.cancelURL,
		Metadata:   map[string]string{"paymentId": req.PaymentID},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal checkout session: %w", err)
	}

	var session Session
	if err := c.do(ctx, http.MethodPost, "/v1/checkout/sessions", payload, IdempotencyKey(req), &session); err != nil {
		return nil, err
	}
	if session.URL == "" {
		return nil, fmt.Errorf("gateway did not return a checkout url")
	}

	log.WithFields(log.Fields{"session": session.ID, "payment": req.PaymentID}).Info("checkout session created")
	return &session, nil
}

// RetrieveSession fetches the current state of a session.
func (c *Client) RetrieveSession(ctx context.Context, sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}
	var session Session
	if err := c.do(ctx, http.MethodGet, "/v1/checkout/sessions/"+url.PathEscape(sessionID), nil, "", &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// returnURL appends the session placeholder and payment id the confirm
// endpoint expects.
func (c *Client) returnURL(base, paymentID string) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "sessionId={CHECKOUT_SESSION_ID}&paymentId=" + url.QueryEscape(paymentID)
}

// IdempotencyKey is stable for one payment attempt: the same payment and
// transaction id always map to the same key.
func IdempotencyKey(req SessionRequest) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(req.PaymentID+":"+req.Name)).String()
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte, idempotencyKey string, out interface{}) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build gateway request: %w", err)
	}
	req.SetBasicAuth(c.secretKey, "")
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read gateway response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.WithFields(log.Fields{"status": resp.StatusCode, "path": path}).Warn("gateway error response")
		return &Error{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode gateway response: %w", err)
	}
	return nil
}
