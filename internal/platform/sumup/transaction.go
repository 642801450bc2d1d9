package sumup

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fatflowers/posbridge/pkg/types"
)

// Transaction is the normalized view of one processor transaction. Empty
// strings mean the processor did not report the field.
type Transaction struct {
	TransactionID       string
	ClientTransactionID string
	ForeignID           string

	// Status is the raw processor status; see MapStatus.
	Status       string
	Scheme       string
	Last4        string
	ApprovalCode string
	Message      string
	ReaderID     string
	Currency     string
	AmountMinor  *int64

	Raw json.RawMessage

	amountErr error
}

// AmountErr reports why the amount could not be read. AmountMinor is nil then.
func (t *Transaction) AmountErr() error {
	if t == nil {
		return nil
	}
	return t.amountErr
}

// MatchesForeignID reports whether the transaction carries ref as its foreign id.
func (t *Transaction) MatchesForeignID(ref string) bool {
	return t != nil && ref != "" && t.ForeignID == ref
}

// HasStatus reports whether the observation says anything about the outcome.
func (t *Transaction) HasStatus() bool {
	return t != nil && strings.TrimSpace(t.Status) != ""
}

type rawCard struct {
	Type        string `json:"type"`
	Last4Digits string `json:"last_4_digits"`
}

type rawTransaction struct {
	ID                   string          `json:"id"`
	TransactionID        string          `json:"transaction_id"`
	TransactionCode      string          `json:"transaction_code"`
	ClientTransactionID  string          `json:"client_transaction_id"`
	ForeignTransactionID string          `json:"foreign_transaction_id"`
	ForeignID            string          `json:"foreignId"`
	ForeignIDSnake       string          `json:"foreign_id"`
	Status               string          `json:"status"`
	SimpleStatus         string          `json:"simple_status"`
	Scheme               string          `json:"scheme"`
	CardType             string          `json:"card_type"`
	Last4                string          `json:"last4"`
	ApprovalCode         string          `json:"approval_code"`
	AuthCode             string          `json:"auth_code"`
	Message              string          `json:"message"`
	ReaderID             string          `json:"reader_id"`
	Currency             string          `json:"currency"`
	Amount               json.RawMessage `json:"amount"`
	Card                 *rawCard        `json:"card"`
	Metadata             map[string]any  `json:"metadata"`
}

type rawAmount struct {
	Value    json.Number `json:"value"`
	Currency string      `json:"currency"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

// ParseTransaction normalizes a single transaction object. An unreadable
// amount does not fail the parse; see AmountErr.
func ParseTransaction(data []byte) (*Transaction, error) {
	return parseTransaction(data, true)
}

// parseTransaction reads "id" as the transaction id only when allowIDAlias is
// set. Webhook envelopes use "id" for the event.
func parseTransaction(data []byte, allowIDAlias bool) (*Transaction, error) {
	var raw rawTransaction
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}

	tx := &Transaction{
		TransactionID:       firstNonEmpty(raw.TransactionID),
		ClientTransactionID: firstNonEmpty(raw.ClientTransactionID),
		ForeignID:           firstNonEmpty(raw.ForeignTransactionID, raw.ForeignID, raw.ForeignIDSnake, metadataString(raw.Metadata, "foreign_transaction_id")),
		Status:              firstNonEmpty(raw.Status, raw.SimpleStatus),
		Scheme:              firstNonEmpty(raw.Scheme, raw.CardType),
		Last4:               firstNonEmpty(raw.Last4),
		ApprovalCode:        firstNonEmpty(raw.ApprovalCode, raw.AuthCode),
		Message:             firstNonEmpty(raw.Message),
		ReaderID:            firstNonEmpty(raw.ReaderID),
		Currency:            strings.ToUpper(firstNonEmpty(raw.Currency)),
		Raw:                 append(json.RawMessage(nil), data...),
	}
	if allowIDAlias {
		tx.TransactionID = firstNonEmpty(tx.TransactionID, raw.ID)
	}
	if raw.Card != nil {
		tx.Scheme = firstNonEmpty(tx.Scheme, raw.Card.Type)
		tx.Last4 = firstNonEmpty(tx.Last4, raw.Card.Last4Digits)
	}
	tx.amountErr = tx.parseAmount(raw.Amount)
	return tx, nil
}

// parseAmount accepts {"value": <minor>, "currency": ...} or a bare decimal in
// major units next to a flat "currency" field.
func (t *Transaction) parseAmount(data json.RawMessage) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	if data[0] == '{' {
		var a rawAmount
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&a); err != nil {
			return fmt.Errorf("%w: %w", types.ErrInvalidAmount, err)
		}
		if a.Currency != "" {
			t.Currency = strings.ToUpper(a.Currency)
		}
		if a.Value == "" {
			return nil
		}
		n, err := types.ParseMinor(a.Value.String())
		if err != nil {
			return err
		}
		t.AmountMinor = &n
		return nil
	}

	s := strings.Trim(string(data), `"`)
	n, err := types.ParseMajor(s, t.Currency)
	if err != nil {
		return err
	}
	t.AmountMinor = &n
	return nil
}

func metadataString(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	switch v := m[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	}
	return ""
}

// ParseTransactions accepts {"items": [...]}, a bare array, or a single object.
func ParseTransactions(data []byte) ([]*Transaction, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	var items []json.RawMessage
	switch data[0] {
	case '[':
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("decode transaction list: %w", err)
		}
	case '{':
		var wrapper struct {
			Items *[]json.RawMessage `json:"items"`
		}
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return nil, fmt.Errorf("decode transaction list: %w", err)
		}
		if wrapper.Items != nil {
			items = *wrapper.Items
		} else {
			items = []json.RawMessage{data}
		}
	default:
		return nil, fmt.Errorf("decode transaction list: unexpected body")
	}

	out := make([]*Transaction, 0, len(items))
	for _, item := range items {
		tx, err := ParseTransaction(item)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}

// WebhookPayload is a decoded processor webhook body.
type WebhookPayload struct {
	ID          string
	EventType   string
	Transaction *Transaction
}

// ParseWebhookPayload normalizes the transaction carried under "data", under
// "payload", or at the top level of the body.
func ParseWebhookPayload(body []byte) (*WebhookPayload, error) {
	var envelope struct {
		ID        string          `json:"id"`
		EventType string          `json:"event_type"`
		Type      string          `json:"type"`
		Data      json.RawMessage `json:"data"`
		Payload   json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode webhook: %w", err)
	}

	inner, wrapped := body, true
	switch {
	case isObject(envelope.Data):
		inner = envelope.Data
	case isObject(envelope.Payload):
		inner = envelope.Payload
	default:
		wrapped = false
	}
	tx, err := parseTransaction(inner, wrapped)
	if err != nil {
		return nil, err
	}

	return &WebhookPayload{
		ID:          envelope.ID,
		EventType:   firstNonEmpty(envelope.EventType, envelope.Type),
		Transaction: tx,
	}, nil
}

func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}
