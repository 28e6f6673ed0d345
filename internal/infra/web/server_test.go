package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"payos-gateway/internal/config"
	"payos-gateway/internal/infra/web"
	"payos-gateway/payos"
)

const testChecksumKey = "listener-checksum-key"

type memGuard struct {
	seen map[string]struct{}
	err  error
}

func newMemGuard() *memGuard { return &memGuard{seen: map[string]struct{}{}} }

func (g *memGuard) MarkProcessed(ctx context.Context, orderCode int64, reference string) (bool, error) {
	if g.err != nil {
		return false, g.err
	}
	if _, ok := g.seen[reference]; ok {
		return false, nil
	}
	g.seen[reference] = struct{}{}
	return true, nil
}

func (g *memGuard) Unmark(ctx context.Context, orderCode int64, reference string) error {
	delete(g.seen, reference)
	return nil
}

type recordingHandler struct {
	calls []*payos.WebhookData
	err   error
}

func (h *recordingHandler) handle(ctx context.Context, data *payos.WebhookData) error {
	if h.err != nil {
		return h.err
	}
	h.calls = append(h.calls, data)
	return nil
}

func newListener(t *testing.T, guard web.ReplayGuard, handler web.PaymentHandler) http.Handler {
	t.Helper()
	client, err := payos.NewClient("client-id", "api-key", testChecksumKey)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	logger := zerolog.Nop()
	srv := web.NewServer(config.ListenerConfig{Port: 0, WebhookPath: "/webhook/payos"}, client, guard, handler, &logger)
	return srv.Routes()
}

func webhookBody(t *testing.T, tamper bool) []byte {
	t.Helper()
	data := map[string]any{
		"orderCode":     4321,
		"amount":        50000,
		"description":   "order 4321",
		"reference":     "FT240501",
		"currency":      "VND",
		"paymentLinkId": "pl_123",
		"code":          "00",
		"desc":          "success",
	}
	sig := payos.SignPayload(data, testChecksumKey)
	if tamper {
		sig = "0" + sig[1:]
	}
	body, err := json.Marshal(map[string]any{
		"code":      "00",
		"desc":      "success",
		"success":   true,
		"data":      data,
		"signature": sig,
	})
	if err != nil {
		t.Fatalf("marshal webhook: %v", err)
	}
	return body
}

func post(h http.Handler, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook/payos", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestWebhookListener(t *testing.T) {
	t.Run("verified delivery reaches the payment handler", func(t *testing.T) {
		handler := &recordingHandler{}
		h := newListener(t, newMemGuard(), handler.handle)

		rec := post(h, webhookBody(t, false))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		if len(handler.calls) != 1 {
			t.Fatalf("handler calls = %d, want 1", len(handler.calls))
		}
		if got := handler.calls[0]; got.OrderCode != 4321 || got.Reference != "FT240501" {
			t.Fatalf("unexpected payload: %+v", got)
		}
	})

	t.Run("tampered signature is rejected", func(t *testing.T) {
		handler := &recordingHandler{}
		h := newListener(t, newMemGuard(), handler.handle)

		rec := post(h, webhookBody(t, true))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
		if len(handler.calls) != 0 {
			t.Fatal("handler must not see unverified data")
		}
	})

	t.Run("replayed delivery is acknowledged once", func(t *testing.T) {
		handler := &recordingHandler{}
		h := newListener(t, newMemGuard(), handler.handle)

		body := webhookBody(t, false)
		if rec := post(h, body); rec.Code != http.StatusOK {
			t.Fatalf("first delivery status = %d", rec.Code)
		}
		if rec := post(h, body); rec.Code != http.StatusOK {
			t.Fatalf("replay status = %d, want 200", rec.Code)
		}
		if len(handler.calls) != 1 {
			t.Fatalf("handler calls = %d, want 1 (replay must not re-process)", len(handler.calls))
		}
	})

	t.Run("guard outage still delivers the payment", func(t *testing.T) {
		guard := newMemGuard()
		guard.err = errors.New("connection refused")
		handler := &recordingHandler{}
		h := newListener(t, guard, handler.handle)

		rec := post(h, webhookBody(t, false))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if len(handler.calls) != 1 {
			t.Fatal("delivery dropped while guard was down")
		}
	})

	t.Run("handler failure asks the gateway to redeliver", func(t *testing.T) {
		handler := &recordingHandler{err: errors.New("db down")}
		h := newListener(t, newMemGuard(), handler.handle)

		rec := post(h, webhookBody(t, false))
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d, want 500", rec.Code)
		}

		// The marker must have been dropped so the redelivery is processed.
		handler.err = nil
		if rec := post(h, webhookBody(t, false)); rec.Code != http.StatusOK {
			t.Fatalf("redelivery status = %d, want 200", rec.Code)
		}
		if len(handler.calls) != 1 {
			t.Fatalf("handler calls after redelivery = %d, want 1", len(handler.calls))
		}
	})

	t.Run("invalid JSON body", func(t *testing.T) {
		h := newListener(t, newMemGuard(), nil)
		rec := post(h, []byte("{not json"))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("health endpoint", func(t *testing.T) {
		h := newListener(t, newMemGuard(), nil)
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("healthz status = %d", rec.Code)
		}
	})
}
