package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	webhookpayment "github.com/nnamdiosuji/okrika-backend/internal/webhooks/payment"
	pkgerrors "github.com/nnamdiosuji/okrika-backend/pkg/errors"
)

type fakeGateway struct {
	outcome    webhookpayment.Outcome
	err        error
	calls      int
	deliveries []webhookpayment.Delivery
}

func (f *fakeGateway) Ingest(ctx context.Context, delivery webhookpayment.Delivery) (webhookpayment.Outcome, error) {
	f.calls++
	f.deliveries = append(f.deliveries, delivery)
	return f.outcome, f.err
}

type fakeSigningClient struct {
	secret string
}

func (f *fakeSigningClient) SigningSecret() string { return f.secret }

func buildSquareEvent(t *testing.T, status string) []byte {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"event_id": "evt_123",
		"type":     "payment.updated",
		"data": map[string]any{
			"type": "payment",
			"id":   "data_1",
			"object": map[string]any{
				"payment": map[string]any{
					"id":     "sq_pay_abc",
					"status": status,
					"amount_money": map[string]any{
						"amount":   500000,
						"currency": "NGN",
					},
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return payload
}

func buildSquareSignature(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func postEvent(t *testing.T, handler http.HandlerFunc, payload []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/square", bytes.NewReader(payload))
	if signature != "" {
		req.Header.Set("Square-Signature", signature)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestSquareWebhookAccepted(t *testing.T) {
	payload := buildSquareEvent(t, "COMPLETED")
	gateway := &fakeGateway{outcome: webhookpayment.OutcomeAccepted}
	handler := SquareWebhook(gateway, &fakeSigningClient{secret: "secret"}, nil)

	rec := postEvent(t, handler, payload, buildSquareSignature(payload, "secret"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if gateway.calls != 1 {
		t.Fatalf("expected gateway called once, got %d", gateway.calls)
	}
	delivery := gateway.deliveries[0]
	if delivery.EventID != "evt_123" || delivery.ProviderReference != "sq_pay_abc" || delivery.AmountMinor != 500000 {
		t.Fatalf("unexpected delivery %+v", delivery)
	}
}

func TestSquareWebhookDuplicateStillOK(t *testing.T) {
	payload := buildSquareEvent(t, "COMPLETED")
	gateway := &fakeGateway{outcome: webhookpayment.OutcomeDuplicate}
	handler := SquareWebhook(gateway, &fakeSigningClient{secret: "secret"}, nil)

	rec := postEvent(t, handler, payload, buildSquareSignature(payload, "secret"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on duplicate, got %d", rec.Code)
	}
}

func TestSquareWebhookMissingSignature(t *testing.T) {
	payload := buildSquareEvent(t, "COMPLETED")
	gateway := &fakeGateway{outcome: webhookpayment.OutcomeAccepted}
	handler := SquareWebhook(gateway, &fakeSigningClient{secret: "secret"}, nil)

	rec := postEvent(t, handler, payload, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if gateway.calls != 0 {
		t.Fatalf("gateway must not be called without a signature")
	}
}

func TestSquareWebhookInvalidSignature(t *testing.T) {
	payload := buildSquareEvent(t, "COMPLETED")
	gateway := &fakeGateway{outcome: webhookpayment.OutcomeAccepted}
	handler := SquareWebhook(gateway, &fakeSigningClient{secret: "secret"}, nil)

	rec := postEvent(t, handler, payload, "deadbeef")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if gateway.calls != 0 {
		t.Fatalf("gateway must not be called with a bad signature")
	}
}

func TestSquareWebhookRejectedDelivery(t *testing.T) {
	payload := buildSquareEvent(t, "COMPLETED")
	gateway := &fakeGateway{
		outcome: webhookpayment.OutcomeRejected,
		err:     pkgerrors.New(pkgerrors.CodeValidation, "event id, provider, and event type are required"),
	}
	handler := SquareWebhook(gateway, &fakeSigningClient{secret: "secret"}, nil)

	rec := postEvent(t, handler, payload, buildSquareSignature(payload, "secret"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSquareWebhookMalformedEnvelope(t *testing.T) {
	payload := []byte(`{"event_id":"evt_9","type":"payment.updated","data":{"object":{}}}`)
	gateway := &fakeGateway{outcome: webhookpayment.OutcomeAccepted}
	handler := SquareWebhook(gateway, &fakeSigningClient{secret: "secret"}, nil)

	rec := postEvent(t, handler, payload, buildSquareSignature(payload, "secret"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing payment payload, got %d", rec.Code)
	}
	if gateway.calls != 0 {
		t.Fatalf("malformed envelope must not reach the gateway")
	}
}
