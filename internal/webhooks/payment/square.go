package payment

import (
	"encoding/json"
	"strings"

	"github.com/nnamdiosuji/okrika-backend/pkg/enums"
	pkgerrors "github.com/nnamdiosuji/okrika-backend/pkg/errors"
)

// SquareEnvelope is the provider's webhook wire format for payment events.
type SquareEnvelope struct {
	MerchantID string             `json:"merchant_id"`
	EventID    string             `json:"event_id"`
	Type       string             `json:"type"`
	Data       SquareEnvelopeData `json:"data"`
}

type SquareEnvelopeData struct {
	Type   string               `json:"type"`
	ID     string               `json:"id"`
	Object SquareEnvelopeObject `json:"object"`
}

type SquareEnvelopeObject struct {
	Payment *SquarePaymentPayload `json:"payment"`
}

type SquarePaymentPayload struct {
	ID          string             `json:"id"`
	Status      string             `json:"status"`
	AmountMoney SquareMoneyPayload `json:"amount_money"`
}

type SquareMoneyPayload struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// DeliveryFromSquare maps a raw Square webhook body to the gateway's
// provider-neutral delivery. The raw body is carried along for replay.
func DeliveryFromSquare(raw []byte) (Delivery, error) {
	var envelope SquareEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return Delivery{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode square envelope")
	}

	eventID := strings.TrimSpace(envelope.EventID)
	if eventID == "" {
		eventID = strings.TrimSpace(envelope.Data.ID)
	}
	if eventID == "" {
		return Delivery{}, pkgerrors.New(pkgerrors.CodeValidation, "square event id missing")
	}

	payment := envelope.Data.Object.Payment
	if payment == nil {
		return Delivery{}, pkgerrors.New(pkgerrors.CodeValidation, "square payment payload missing")
	}
	if strings.TrimSpace(payment.ID) == "" {
		return Delivery{}, pkgerrors.New(pkgerrors.CodeValidation, "square payment id missing")
	}

	return Delivery{
		EventID:           eventID,
		Provider:          "square",
		EventType:         envelope.Type,
		ProviderReference: payment.ID,
		AmountMinor:       payment.AmountMoney.Amount,
		Currency:          enums.Currency(strings.ToUpper(payment.AmountMoney.Currency)),
		PaymentStatus:     payment.Status,
		Raw:               json.RawMessage(raw),
	}, nil
}
