package shopify

import (
	"encoding/json"
	"fmt"

	"github.com/fatflowers/posbridge/pkg/types"
	"github.com/samber/lo"
)

// CartLine is one line of the cart snapshot captured at checkout.
type CartLine struct {
	Title     string `json:"title"`
	Quantity  int    `json:"qty"`
	VariantID string `json:"variantId,omitempty"`

	// UnitPrice is a decimal in major units; UnitPriceMinor wins when set.
	UnitPrice      json.Number `json:"unitPrice,omitempty"`
	UnitPriceMinor *int64      `json:"unitPriceMinor,omitempty"`
}

type Customer struct {
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

// UnmarshalJSON also accepts snake_case names sent by older POS builds.
func (c *Customer) UnmarshalJSON(data []byte) error {
	var raw struct {
		Email          string `json:"email"`
		Phone          string `json:"phone"`
		FirstName      string `json:"firstName"`
		FirstNameSnake string `json:"first_name"`
		LastName       string `json:"lastName"`
		LastNameSnake  string `json:"last_name"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.Email = raw.Email
	c.Phone = raw.Phone
	c.FirstName = lo.CoalesceOrEmpty(raw.FirstName, raw.FirstNameSnake)
	c.LastName = lo.CoalesceOrEmpty(raw.LastName, raw.LastNameSnake)
	return nil
}

// OrderRequest is everything needed to record a paid POS sale as an order.
type OrderRequest struct {
	OrderRef    string
	Cart        []CartLine
	Customer    Customer
	AmountMinor int64
	Currency    string

	TransactionID string
	ApprovalCode  string
	Scheme        string
	Last4         string
}

// DecodeSnapshots parses the cart and customer snapshots stored on an attempt.
// Empty snapshots are allowed.
func DecodeSnapshots(cart, customer []byte) ([]CartLine, Customer, error) {
	var lines []CartLine
	var cust Customer
	if len(cart) > 0 && string(cart) != "null" {
		if err := json.Unmarshal(cart, &lines); err != nil {
			return nil, cust, fmt.Errorf("decode cart snapshot: %w", err)
		}
	}
	if len(customer) > 0 && string(customer) != "null" {
		if err := json.Unmarshal(customer, &cust); err != nil {
			return nil, cust, fmt.Errorf("decode customer snapshot: %w", err)
		}
	}
	return lines, cust, nil
}

type money struct {
	Amount       string `json:"amount"`
	CurrencyCode string `json:"currencyCode"`
}

type moneyBag struct {
	ShopMoney money `json:"shopMoney"`
}

type lineItemInput struct {
	Title     string    `json:"title,omitempty"`
	Quantity  int       `json:"quantity"`
	VariantID string    `json:"variantId,omitempty"`
	PriceSet  *moneyBag `json:"priceSet,omitempty"`
}

type attributeInput struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type transactionInput struct {
	Kind              string   `json:"kind"`
	Status            string   `json:"status"`
	Gateway           string   `json:"gateway"`
	AuthorizationCode string   `json:"authorizationCode,omitempty"`
	AmountSet         moneyBag `json:"amountSet"`
	ReceiptJSON       string   `json:"receiptJson,omitempty"`
}

type customerInput struct {
	ToUpsert struct {
		Email     string `json:"email,omitempty"`
		Phone     string `json:"phone,omitempty"`
		FirstName string `json:"firstName,omitempty"`
		LastName  string `json:"lastName,omitempty"`
	} `json:"toUpsert"`
}

type orderCreateInput struct {
	Email            string             `json:"email,omitempty"`
	Phone            string             `json:"phone,omitempty"`
	Currency         string             `json:"currency"`
	SourceIdentifier string             `json:"sourceIdentifier,omitempty"`
	Customer         *customerInput     `json:"customer,omitempty"`
	CustomAttributes []attributeInput   `json:"customAttributes"`
	LineItems        []lineItemInput    `json:"lineItems"`
	Transactions     []transactionInput `json:"transactions"`
}

func (r *OrderRequest) linePrice(l CartLine) (*moneyBag, error) {
	switch {
	case l.UnitPriceMinor != nil:
		return &moneyBag{ShopMoney: money{Amount: types.FormatMinor(*l.UnitPriceMinor, r.Currency), CurrencyCode: r.Currency}}, nil
	case l.UnitPrice != "":
		minor, err := types.ParseMajor(l.UnitPrice.String(), r.Currency)
		if err != nil {
			return nil, fmt.Errorf("line %q: %w", l.Title, err)
		}
		return &moneyBag{ShopMoney: money{Amount: types.FormatMinor(minor, r.Currency), CurrencyCode: r.Currency}}, nil
	}
	return nil, nil
}

// input builds the orderCreate variables. Amounts are formatted from minor
// units without floating point.
func (r *OrderRequest) input() (*orderCreateInput, error) {
	total := money{Amount: types.FormatMinor(r.AmountMinor, r.Currency), CurrencyCode: r.Currency}

	in := &orderCreateInput{
		Email:            r.Customer.Email,
		Phone:            r.Customer.Phone,
		Currency:         r.Currency,
		SourceIdentifier: r.OrderRef,
		CustomAttributes: []attributeInput{
			{Key: "sumup_transaction_id", Value: r.TransactionID},
			{Key: "sumup_scheme", Value: r.Scheme},
			{Key: "sumup_approval_code", Value: r.ApprovalCode},
			{Key: "sumup_last4", Value: r.Last4},
			{Key: "pos_order_ref", Value: r.OrderRef},
		},
	}
	if r.Customer != (Customer{}) {
		in.Customer = &customerInput{}
		in.Customer.ToUpsert.Email = r.Customer.Email
		in.Customer.ToUpsert.Phone = r.Customer.Phone
		in.Customer.ToUpsert.FirstName = r.Customer.FirstName
		in.Customer.ToUpsert.LastName = r.Customer.LastName
	}

	for _, l := range r.Cart {
		price, err := r.linePrice(l)
		if err != nil {
			return nil, err
		}
		in.LineItems = append(in.LineItems, lineItemInput{
			Title:     l.Title,
			Quantity:  max(l.Quantity, 1),
			VariantID: l.VariantID,
			PriceSet:  price,
		})
	}
	if len(in.LineItems) == 0 {
		in.LineItems = []lineItemInput{{Title: "POS sale " + r.OrderRef, Quantity: 1, PriceSet: &moneyBag{ShopMoney: total}}}
	}

	receipt, _ := json.Marshal(map[string]string{
		"transactionId": r.TransactionID,
		"scheme":        r.Scheme,
		"last4":         r.Last4,
	})
	in.Transactions = []transactionInput{{
		Kind:              "SALE",
		Status:            "SUCCESS",
		Gateway:           "External - SumUp",
		AuthorizationCode: r.ApprovalCode,
		AmountSet:         moneyBag{ShopMoney: total},
		ReceiptJSON:       string(receipt),
	}}
	return in, nil
}
