// Package payos implements a client for the payOS merchant API: creating,
// querying and cancelling payment links, registering webhook URLs, and
// verifying the HMAC-SHA256 signatures the gateway attaches to responses
// and webhooks.
package payos

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

const defaultBaseURL = "https://api-merchant.payos.vn"

// Client talks to the payOS merchant API. It holds only immutable
// credentials, so a single instance is safe for concurrent use.
type Client struct {
	clientID    string
	apiKey      string
	checksumKey string
	partnerCode string
	baseURL     string
	httpClient  *http.Client
	log         zerolog.Logger
}

// Option configures a Client at construction.
type Option func(*Client)

// WithBaseURL overrides the gateway base URL (mainly for tests).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient substitutes the transport. Timeouts and cancellation are
// the transport's business; the client itself imposes no deadline.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithPartnerCode sets the x-partner-code header on every request.
func WithPartnerCode(code string) Option {
	return func(c *Client) { c.partnerCode = code }
}

// WithLogger attaches a logger for request/response traces. Credentials are
// never logged.
func WithLogger(l *zerolog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = *l
		}
	}
}

// NewClient builds a gateway client from merchant credentials.
func NewClient(clientID, apiKey, checksumKey string, opts ...Option) (*Client, error) {
	if clientID == "" || apiKey == "" || checksumKey == "" {
		return nil, errors.New("payos: client id, api key and checksum key are required")
	}
	c := &Client{
		clientID:    clientID,
		apiKey:      apiKey,
		checksumKey: checksumKey,
		baseURL:     defaultBaseURL,
		httpClient:  &http.Client{},
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// apiResponse is the gateway's response envelope. data stays raw until its
// signature has been verified.
type apiResponse struct {
	Code      string          `json:"code"`
	Desc      string          `json:"desc"`
	Data      json.RawMessage `json:"data"`
	Signature string          `json:"signature"`
}

type signedCheckoutRequest struct {
	CheckoutRequest
	Signature string `json:"signature"`
}

// CreatePaymentLink creates a gateway-hosted checkout session. All five
// signed fields must be set; the returned error lists any that are missing.
func (c *Client) CreatePaymentLink(ctx context.Context, req CheckoutRequest) (*CheckoutResponseData, error) {
	if missing := req.missingFields(); len(missing) > 0 {
		return nil, fmt.Errorf("payos: invalid request: missing or invalid fields: %s", strings.Join(missing, ", "))
	}
	body := signedCheckoutRequest{
		CheckoutRequest: req,
		Signature:       SignPaymentRequest(&req, c.checksumKey),
	}
	var out CheckoutResponseData
	if err := c.signedCall(ctx, http.MethodPost, "/v2/payment-requests", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetPaymentLinkInformation fetches the current state of a payment link.
// orderID is the numeric order code or its string form.
func (c *Client) GetPaymentLinkInformation(ctx context.Context, orderID any) (*PaymentLinkData, error) {
	id, err := normalizeOrderID(orderID)
	if err != nil {
		return nil, err
	}
	var out PaymentLinkData
	if err := c.signedCall(ctx, http.MethodGet, "/v2/payment-requests/"+id, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CancelPaymentLink cancels a payment link. cancellationReason may be empty.
func (c *Client) CancelPaymentLink(ctx context.Context, orderID any, cancellationReason string) (*PaymentLinkData, error) {
	id, err := normalizeOrderID(orderID)
	if err != nil {
		return nil, err
	}
	var body any
	if cancellationReason != "" {
		body = map[string]string{"cancellationReason": cancellationReason}
	}
	var out PaymentLinkData
	if err := c.signedCall(ctx, http.MethodPost, "/v2/payment-requests/"+id+"/cancel", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ConfirmWebhook asks the gateway to validate and register a webhook URL.
// This endpoint returns no signed payload, so failures map from the HTTP
// status alone. On success the confirmed URL is returned.
func (c *Client) ConfirmWebhook(ctx context.Context, webhookURL string) (string, error) {
	if webhookURL == "" {
		return "", errors.New("payos: webhook url is required")
	}
	status, raw, err := c.send(ctx, http.MethodPost, "/confirm-webhook", map[string]string{"webhookUrl": webhookURL})
	if err != nil {
		return "", fmt.Errorf("payos: %w", err)
	}
	switch {
	case status == http.StatusBadRequest:
		return "", &GatewayError{Code: codeWebhookURLInvalid, Message: "Webhook URL invalid."}
	case status == http.StatusUnauthorized:
		return "", &GatewayError{Code: codeUnauthorized, Message: "Unauthorized."}
	case status >= 500:
		return "", &GatewayError{Code: codeInternalServerError, Message: "Internal Server Error."}
	case status < 200 || status > 299:
		return "", fmt.Errorf("payos: confirm webhook failed (status %d): %s", status, snippet(raw))
	}
	return webhookURL, nil
}

// VerifyPaymentWebhookData checks the signature of an inbound webhook body
// and returns its payload. Pure and synchronous: no network is involved, so
// it is safe inside a request handler.
func (c *Client) VerifyPaymentWebhookData(wh Webhook) (*WebhookData, error) {
	if len(wh.Data) == 0 || string(wh.Data) == "null" {
		return nil, ErrNoData
	}
	if wh.Signature == "" {
		return nil, ErrNoSignature
	}
	if err := verifyDataSignature(wh.Data, wh.Signature, c.checksumKey); err != nil {
		return nil, err
	}
	var data WebhookData
	if err := json.Unmarshal(wh.Data, &data); err != nil {
		return nil, fmt.Errorf("payos: decode webhook data: %w", err)
	}
	return &data, nil
}

// signedCall issues a request against an endpoint that answers with the
// {code, desc, data, signature} envelope: business code first, then the
// integrity check, and only then is data released into out.
func (c *Client) signedCall(ctx context.Context, method, path string, body, out any) error {
	status, raw, err := c.send(ctx, method, path, body)
	if err != nil {
		return fmt.Errorf("payos: %w", err)
	}
	var env apiResponse
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("payos: unexpected response (status %d): %w: %s", status, err, snippet(raw))
	}
	if env.Code == "" {
		return fmt.Errorf("payos: unexpected response (status %d): %s", status, snippet(raw))
	}
	if env.Code != codeSuccess {
		return &GatewayError{Code: env.Code, Message: env.Desc}
	}
	if err := verifyDataSignature(env.Data, env.Signature, c.checksumKey); err != nil {
		return err
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("payos: decode response data: %w", err)
		}
	}
	return nil
}

// send performs one HTTP round trip and hands back status plus raw body.
func (c *Client) send(ctx context.Context, method, path string, body any) (int, []byte, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request body: %w", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("x-client-id", c.clientID)
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if c.partnerCode != "" {
		req.Header.Set("x-partner-code", c.partnerCode)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response body: %w", err)
	}

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Msg("gateway call")

	return resp.StatusCode, raw, nil
}

// normalizeOrderID renders an order id as a path segment. The gateway
// accepts the numeric order code or its string form; zero, negative and
// empty values are rejected before any network traffic.
func normalizeOrderID(v any) (string, error) {
	switch t := v.(type) {
	case string:
		if t == "" {
			return "", fmt.Errorf("payos: %w", ErrInvalidParameter)
		}
		return t, nil
	case int:
		if t <= 0 {
			return "", fmt.Errorf("payos: %w", ErrInvalidParameter)
		}
		return strconv.Itoa(t), nil
	case int32:
		if t <= 0 {
			return "", fmt.Errorf("payos: %w", ErrInvalidParameter)
		}
		return strconv.FormatInt(int64(t), 10), nil
	case int64:
		if t <= 0 {
			return "", fmt.Errorf("payos: %w", ErrInvalidParameter)
		}
		return strconv.FormatInt(t, 10), nil
	case uint:
		if t == 0 {
			return "", fmt.Errorf("payos: %w", ErrInvalidParameter)
		}
		return strconv.FormatUint(uint64(t), 10), nil
	case uint64:
		if t == 0 {
			return "", fmt.Errorf("payos: %w", ErrInvalidParameter)
		}
		return strconv.FormatUint(t, 10), nil
	case float64:
		if t <= 0 || t != float64(int64(t)) {
			return "", fmt.Errorf("payos: %w", ErrInvalidParameter)
		}
		return strconv.FormatInt(int64(t), 10), nil
	default:
		return "", fmt.Errorf("payos: %w", ErrInvalidParameter)
	}
}

func snippet(raw []byte) string {
	const max = 200
	s := strings.TrimSpace(string(raw))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
