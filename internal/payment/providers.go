package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/thrillee/bulksms/pkg/codes"
)

var (
	ErrUnknownProvider = errors.New("unknown payment provider")
	ErrInvalidPayload  = errors.New("invalid payment payload")
)

// Event is a provider callback reduced to what crediting needs.
type Event struct {
	Provider      string
	TransactionID string
	UserID        string
	Amount        decimal.Decimal
	Currency      string
	Succeeded     bool
}

// Parser decodes one provider's success callback.
type Parser func(body []byte) (Event, error)

var parsers = map[string]Parser{
	codes.ProviderWave:        parseWave,
	codes.ProviderOrangeMoney: parseOrangeMoney,
}

// Parse dispatches body to the provider's parser.
func Parse(provider string, body []byte) (Event, error) {
	p, ok := parsers[provider]
	if !ok {
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
	ev, err := p(body)
	if err != nil {
		return Event{}, err
	}
	ev.Provider = provider
	if ev.TransactionID == "" || ev.UserID == "" {
		return Event{}, fmt.Errorf("%w: transaction id and user reference are required", ErrInvalidPayload)
	}
	if ev.Succeeded && !ev.Amount.IsPositive() {
		return Event{}, fmt.Errorf("%w: amount must be positive", ErrInvalidPayload)
	}
	return ev, nil
}

// Wave checkout webhook; client_reference carries our user id.
type waveWebhook struct {
	Type string `json:"type"`
	Data struct {
		ID              string          `json:"id"`
		Amount          decimal.Decimal `json:"amount"`
		Currency        string          `json:"currency"`
		PaymentStatus   string          `json:"payment_status"`
		ClientReference string          `json:"client_reference"`
	} `json:"data"`
}

func parseWave(body []byte) (Event, error) {
	var w waveWebhook
	if err := json.Unmarshal(body, &w); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return Event{
		TransactionID: w.Data.ID,
		UserID:        strings.TrimSpace(w.Data.ClientReference),
		Amount:        w.Data.Amount,
		Currency:      w.Data.Currency,
		Succeeded:     w.Type == "checkout.session.completed" && w.Data.PaymentStatus == "succeeded",
	}, nil
}

// Orange Money web payment notification; order_id is "<user id>:<nonce>".
type orangeMoneyNotification struct {
	Status  string          `json:"status"`
	TxnID   string          `json:"txnid"`
	OrderID string          `json:"order_id"`
	Amount  decimal.Decimal `json:"amount"`
}

func parseOrangeMoney(body []byte) (Event, error) {
	var n orangeMoneyNotification
	if err := json.Unmarshal(body, &n); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	userID, _, _ := strings.Cut(n.OrderID, ":")
	return Event{
		TransactionID: n.TxnID,
		UserID:        strings.TrimSpace(userID),
		Amount:        n.Amount,
		Currency:      "XOF",
		Succeeded:     strings.EqualFold(n.Status, "SUCCESS"),
	}, nil
}
