package sumup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/fatflowers/posbridge/pkg/config"
	"github.com/fatflowers/posbridge/pkg/logctx"
	"github.com/fatflowers/posbridge/pkg/metrics"
	"github.com/fatflowers/posbridge/pkg/tool"
	"github.com/fatflowers/posbridge/pkg/types"
	"go.uber.org/zap"
)

const maxErrorBody = 500

// Client talks to the SumUp Cloud API for one merchant account.
type Client struct {
	cfg        config.SumUpConfig
	httpClient *http.Client
	log        *zap.SugaredLogger
	metrics    *metrics.Business
}

func NewClient(cfg *config.Config, log *zap.SugaredLogger, m *metrics.Business) *Client {
	return &Client{
		cfg:        cfg.SumUp,
		httpClient: &http.Client{},
		log:        log,
		metrics:    m,
	}
}

// CheckoutStart describes one reader checkout.
type CheckoutStart struct {
	ReaderID    string
	AmountMinor int64
	Currency    string
	// ForeignID is sent as the affiliate foreign_transaction_id, i.e. the orderRef.
	ForeignID   string
	Description string
}

type CheckoutStarted struct {
	ClientTransactionID string
}

type checkoutRequest struct {
	TotalAmount struct {
		Currency  string `json:"currency"`
		MinorUnit int    `json:"minor_unit"`
		Value     int64  `json:"value"`
	} `json:"total_amount"`
	Affiliate struct {
		AppID                string `json:"app_id"`
		Key                  string `json:"key"`
		ForeignTransactionID string `json:"foreign_transaction_id"`
	} `json:"affiliate"`
	Description string `json:"description"`
}

type checkoutResponse struct {
	ClientTransactionID string `json:"client_transaction_id"`
	Data                struct {
		ClientTransactionID string `json:"client_transaction_id"`
	} `json:"data"`
}

func (c *Client) merchantPath(format string, args ...any) string {
	return "/v0.1/merchants/" + url.PathEscape(c.cfg.MerchantCode) + fmt.Sprintf(format, args...)
}

// StartReaderCheckout asks the reader to collect the payment.
func (c *Client) StartReaderCheckout(ctx context.Context, req CheckoutStart) (*CheckoutStarted, error) {
	var body checkoutRequest
	body.TotalAmount.Currency = req.Currency
	body.TotalAmount.MinorUnit = types.CurrencyExponent(req.Currency)
	body.TotalAmount.Value = req.AmountMinor
	body.Affiliate.AppID = c.cfg.AppID
	body.Affiliate.Key = c.cfg.AffiliateKey
	body.Affiliate.ForeignTransactionID = req.ForeignID
	body.Description = req.Description
	if body.Description == "" {
		body.Description = "POS checkout"
	}

	path := c.merchantPath("/readers/%s/checkout", url.PathEscape(req.ReaderID))
	raw, err := c.do(ctx, "start_checkout", c.cfg.CheckoutTimeout, http.MethodPost, path, nil, body)
	if err != nil {
		return nil, err
	}

	var resp checkoutResponse
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &resp); err != nil {
			return nil, fmt.Errorf("decode checkout response: %w", err)
		}
	}
	return &CheckoutStarted{
		ClientTransactionID: firstNonEmpty(resp.ClientTransactionID, resp.Data.ClientTransactionID),
	}, nil
}

// TerminateReaderCheckout asks the reader to abandon the running checkout.
// Termination is best effort; the outcome still arrives as a transaction status.
func (c *Client) TerminateReaderCheckout(ctx context.Context, readerID string) error {
	path := c.merchantPath("/readers/%s/terminate", url.PathEscape(readerID))
	_, err := c.do(ctx, "terminate_checkout", c.cfg.RequestTimeout, http.MethodPost, path, nil, nil)
	return err
}

// FindByClientTransactionID returns the transaction with exactly this client
// transaction id, or nil when the processor does not know it (yet).
func (c *Client) FindByClientTransactionID(ctx context.Context, id string) (*Transaction, error) {
	txs, err := c.listTransactions(ctx, "find_by_client_id", c.merchantPath("/transactions"), url.Values{"client_transaction_id": {id}})
	if err != nil {
		return nil, err
	}
	for _, tx := range txs {
		if tx.ClientTransactionID == id {
			return tx, nil
		}
	}
	return nil, nil
}

// FindByForeignID queries by affiliate foreign transaction id. Not every
// tenant supports the filter, so results are matched locally as well.
func (c *Client) FindByForeignID(ctx context.Context, orderRef string) (*Transaction, error) {
	txs, err := c.listTransactions(ctx, "find_by_foreign_id", c.merchantPath("/transactions"), url.Values{"foreign_transaction_id": {orderRef}})
	if err != nil {
		return nil, err
	}
	for _, tx := range txs {
		if tx.MatchesForeignID(orderRef) {
			return tx, nil
		}
	}
	return nil, nil
}

// ScanRecent lists the most recent transactions, newest first.
func (c *Client) ScanRecent(ctx context.Context, limit int) ([]*Transaction, error) {
	if limit <= 0 {
		limit = c.cfg.ScanLimit
	}
	q := url.Values{"limit": {strconv.Itoa(limit)}, "order": {"descending"}}
	return c.listTransactions(ctx, "scan_recent", c.merchantPath("/transactions/history"), q)
}

// LookupKeys identifies an attempt on the processor side.
type LookupKeys struct {
	ClientTransactionID string
	OrderRef            string
}

// Resolve looks a transaction up by client transaction id, then by foreign
// id, then by scanning recent history. Errors from the first two lookups are
// logged and fall through; only a failed scan is returned.
func (c *Client) Resolve(ctx context.Context, keys LookupKeys) (*Transaction, error) {
	log := logctx.FromCtx(ctx, c.log)

	if keys.ClientTransactionID != "" {
		tx, err := c.FindByClientTransactionID(ctx, keys.ClientTransactionID)
		if err != nil {
			log.Infow("sumup_lookup_fallthrough", "lookup", "client_transaction_id", "error", err)
		} else if tx != nil {
			return tx, nil
		}
	}
	if keys.OrderRef == "" {
		return nil, nil
	}

	tx, err := c.FindByForeignID(ctx, keys.OrderRef)
	if err != nil {
		log.Infow("sumup_lookup_fallthrough", "lookup", "foreign_transaction_id", "error", err)
	} else if tx != nil {
		return tx, nil
	}

	recent, err := c.ScanRecent(ctx, 0)
	if err != nil {
		return nil, err
	}
	for _, tx := range recent {
		if tx.MatchesForeignID(keys.OrderRef) {
			return tx, nil
		}
	}
	return nil, nil
}

func (c *Client) listTransactions(ctx context.Context, op, path string, q url.Values) ([]*Transaction, error) {
	raw, err := c.do(ctx, op, c.cfg.RequestTimeout, http.MethodGet, path, q, nil)
	if err != nil {
		var gwErr *GatewayError
		if errors.As(err, &gwErr) && gwErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	txs, err := ParseTransactions(raw)
	if err != nil {
		return nil, fmt.Errorf("sumup %s: %w", op, err)
	}
	for _, tx := range txs {
		if err := tx.AmountErr(); err != nil {
			logctx.FromCtx(ctx, c.log).Warnw("sumup_transaction_amount_unreadable", "op", op, "transaction_id", tx.TransactionID, "error", err)
		}
	}
	return txs, nil
}

// do performs one request bounded by timeout and returns the response body of
// a 2xx answer.
func (c *Client) do(ctx context.Context, op string, timeout time.Duration, method, path string, q url.Values, body any) (respBody []byte, err error) {
	if c.cfg.APIKey == "" || c.cfg.MerchantCode == "" {
		return nil, ErrNotConfigured
	}
	start := time.Now()
	defer func() {
		result := "ok"
		switch {
		case errors.Is(err, ErrGatewayTimeout):
			result = "timeout"
		case err != nil:
			result = "error"
		}
		c.metrics.ObserveGateway(op, result, start)
	}()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	endpoint := c.cfg.BaseURL + path
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("sumup %s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("sumup %s: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.wrapTransportError(ctx, op, timeout, err)
	}
	defer resp.Body.Close()

	respBody, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.wrapTransportError(ctx, op, timeout, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &GatewayError{Op: op, StatusCode: resp.StatusCode, Body: tool.Truncate(string(respBody), maxErrorBody)}
	}
	return respBody, nil
}

func (c *Client) wrapTransportError(ctx context.Context, op string, timeout time.Duration, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s after %s", ErrGatewayTimeout, op, timeout)
	}
	return fmt.Errorf("sumup %s: %w", op, err)
}
