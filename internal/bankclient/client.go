// Package bankclient talks to the bank HTTP API.
package bankclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"

	"github.com/hemachand1989/banking-design-patterns/bank/models"
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status=%d body=%s", e.Code, e.Body)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

type Client struct {
	Base string
	HTTP *http.Client
	// GetRetries is how many times GET requests are retried on transport
	// errors and 5xx responses.
	GetRetries uint64
}

func New(base string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{Base: strings.TrimRight(base, "/"), HTTP: hc, GetRetries: 2}
}

func (c *Client) CreateAccount(ctx context.Context, req models.CreateAccount) (*models.Account, error) {
	var account models.Account
	if err := c.post(ctx, "/accounts", req, &account); err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	return &account, nil
}

func (c *Client) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	var account models.Account
	if err := c.get(ctx, "/accounts/"+url.PathEscape(id), nil, &account); err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &account, nil
}

func (c *Client) FindAccount(ctx context.Context, number string) (*models.Account, error) {
	var accounts []*models.Account
	if err := c.get(ctx, "/accounts", url.Values{"number": {number}}, &accounts); err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}
	if len(accounts) == 0 {
		return nil, &StatusError{Code: http.StatusNotFound, Body: "no account with number " + number}
	}
	return accounts[0], nil
}

func (c *Client) ListAccounts(ctx context.Context) ([]*models.Account, error) {
	var accounts []*models.Account
	if err := c.get(ctx, "/accounts", nil, &accounts); err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return accounts, nil
}

func (c *Client) ListTransactions(ctx context.Context, accountID string) ([]*models.Transaction, error) {
	var txs []*models.Transaction
	if err := c.get(ctx, "/accounts/"+url.PathEscape(accountID)+"/transactions", nil, &txs); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

func (c *Client) Deposit(ctx context.Context, accountID string, m models.MoneyMovement) (*models.Transaction, error) {
	var tx models.Transaction
	if err := c.post(ctx, "/accounts/"+url.PathEscape(accountID)+"/deposits", m, &tx); err != nil {
		return nil, fmt.Errorf("deposit: %w", err)
	}
	return &tx, nil
}

func (c *Client) Withdraw(ctx context.Context, accountID string, m models.MoneyMovement) (*models.Transaction, error) {
	var tx models.Transaction
	if err := c.post(ctx, "/accounts/"+url.PathEscape(accountID)+"/withdrawals", m, &tx); err != nil {
		return nil, fmt.Errorf("withdraw: %w", err)
	}
	return &tx, nil
}

func (c *Client) Transfer(ctx context.Context, req models.TransferRequest) (*models.Transfer, error) {
	var transfer models.Transfer
	if err := c.post(ctx, "/transfers", req, &transfer); err != nil {
		return nil, fmt.Errorf("transfer: %w", err)
	}
	return &transfer, nil
}

func (c *Client) Reverse(ctx context.Context, transactionID string) ([]*models.Transaction, error) {
	var txs []*models.Transaction
	if err := c.post(ctx, "/transactions/"+url.PathEscape(transactionID)+"/reversal", nil, &txs); err != nil {
		return nil, fmt.Errorf("reverse: %w", err)
	}
	return txs, nil
}

func (c *Client) QuoteFee(ctx context.Context, t models.AccountType, amount decimal.Decimal) (*models.FeeQuote, error) {
	var quote models.FeeQuote
	q := url.Values{"account_type": {string(t)}, "amount": {amount.String()}}
	if err := c.get(ctx, "/fees/quote", q, &quote); err != nil {
		return nil, fmt.Errorf("fee quote: %w", err)
	}
	return &quote, nil
}

func (c *Client) ApplyForLoan(ctx context.Context, req models.LoanRequest) (*models.LoanApplication, error) {
	var app models.LoanApplication
	if err := c.post(ctx, "/loans", req, &app); err != nil {
		return nil, fmt.Errorf("apply for loan: %w", err)
	}
	return &app, nil
}

func (c *Client) GetLoan(ctx context.Context, id string) (*models.LoanApplication, error) {
	var app models.LoanApplication
	if err := c.get(ctx, "/loans/"+url.PathEscape(id), nil, &app); err != nil {
		return nil, fmt.Errorf("get loan: %w", err)
	}
	return &app, nil
}

// AccrueInterest triggers the admin accrual for period (YYYY-MM, empty for last month).
func (c *Client) AccrueInterest(ctx context.Context, period string) (map[string]interface{}, error) {
	path := "/dev/interest/accrue"
	if period != "" {
		path += "?" + url.Values{"period": {period}}.Encode()
	}
	var out map[string]interface{}
	if err := c.post(ctx, path, nil, &out); err != nil {
		return nil, fmt.Errorf("accrue interest: %w", err)
	}
	return out, nil
}

func (c *Client) UndoLastCommand(ctx context.Context) error {
	if err := c.post(ctx, "/dev/commands/undo", nil, nil); err != nil {
		return fmt.Errorf("undo: %w", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

// get retries transport failures and 5xx answers with exponential backoff.
func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	target := c.Base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		err = c.do(req, out)
		var se *StatusError
		if errors.As(err, &se) && se.Code < http.StatusInternalServerError {
			return backoff.Permanent(err)
		}
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxElapsedTime = 2 * time.Second
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, c.GetRetries), ctx))
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(resp.Body)
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
