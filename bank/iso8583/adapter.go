// Package iso8583 lets ISO 8583 terminals move money through the bank.
package iso8583

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hemachand1989/banking-design-patterns/bank/models"
	"github.com/hemachand1989/banking-design-patterns/bank/repository"
	"github.com/hemachand1989/banking-design-patterns/internal/acctnum"
	"github.com/moov-io/iso8583"
	"github.com/shopspring/decimal"
	"golang.org/x/exp/slog"
)

const (
	MTIFinancialRequest  = "0200"
	MTIFinancialResponse = "0210"
)

// Response codes (field 39).
const (
	Approved           = "00"
	InvalidTransaction = "12"
	InvalidAmount      = "13"
	InvalidAccount     = "14"
	InsufficientFunds  = "51"
	SystemError        = "96"
)

// Processing code prefixes (field 3).
const (
	procWithdrawal = "01"
	procDeposit    = "21"
)

// Ledger is the part of the bank the adapter drives.
type Ledger interface {
	GetAccountByNumber(ctx context.Context, number string) (*models.Account, error)
	Deposit(ctx context.Context, accountID string, m models.MoneyMovement) (*models.Transaction, error)
	Withdraw(ctx context.Context, accountID string, m models.MoneyMovement) (*models.Transaction, error)
}

// Request is the decoded form of a financial request.
type Request struct {
	AccountNumber  string
	ProcessingCode string
	Amount         decimal.Decimal
	STAN           string
}

// Result is what the adapter answers with.
type Result struct {
	ResponseCode string
	ApprovalCode string
	Transaction  *models.Transaction
}

type Adapter struct {
	ledger Ledger
	logger *slog.Logger
}

func NewAdapter(logger *slog.Logger, ledger Ledger) *Adapter {
	return &Adapter{ledger: ledger, logger: logger}
}

// Handle turns a request message into a response message. It never returns a
// nil message: failures are reported through the response code.
func (a *Adapter) Handle(ctx context.Context, message *iso8583.Message) *iso8583.Message {
	mti, _ := message.GetMTI()
	response := iso8583.NewMessage(Spec)
	response.MTI(responseMTI(mti))

	// echo the request identification fields
	for _, id := range []int{2, 3, 4, 11} {
		if v, err := message.GetString(id); err == nil && v != "" {
			if err := response.Field(id, v); err != nil {
				a.logger.Error("copying field", "field", id, "err", err)
			}
		}
	}

	var result Result
	if mti != MTIFinancialRequest {
		result = Result{ResponseCode: InvalidTransaction}
	} else {
		req, code := decode(message)
		if code != "" {
			result = Result{ResponseCode: code}
		} else {
			result = a.Process(ctx, req)
		}
	}

	if err := response.Field(39, result.ResponseCode); err != nil {
		a.logger.Error("setting response code", "err", err)
	}
	if result.ApprovalCode != "" {
		if err := response.Field(38, result.ApprovalCode); err != nil {
			a.logger.Error("setting approval code", "err", err)
		}
	}
	return response
}

func decode(message *iso8583.Message) (Request, string) {
	var req Request
	var err error

	req.STAN, _ = message.GetString(11)

	req.AccountNumber, err = message.GetString(2)
	if err != nil || req.AccountNumber == "" {
		return req, InvalidAccount
	}

	req.ProcessingCode, err = message.GetString(3)
	if err != nil || len(req.ProcessingCode) != 6 {
		return req, InvalidTransaction
	}

	raw, err := message.GetString(4)
	if err != nil {
		return req, InvalidAmount
	}
	minor, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return req, InvalidAmount
	}
	req.Amount = decimal.New(minor, -2)
	return req, ""
}

// Process executes a decoded request against the ledger.
func (a *Adapter) Process(ctx context.Context, req Request) Result {
	logger := a.logger.With("stan", req.STAN, "account", acctnum.Mask(req.AccountNumber))

	if !req.Amount.IsPositive() {
		return Result{ResponseCode: InvalidAmount}
	}
	number := acctnum.Normalize(req.AccountNumber)
	if err := acctnum.Validate(number); err != nil {
		return Result{ResponseCode: InvalidAccount}
	}

	account, err := a.ledger.GetAccountByNumber(ctx, number)
	if err != nil {
		return a.fail(logger, err)
	}

	movement := models.MoneyMovement{
		Amount:      req.Amount,
		Description: fmt.Sprintf("iso8583 stan %s", req.STAN),
	}

	var tx *models.Transaction
	switch {
	case strings.HasPrefix(req.ProcessingCode, procWithdrawal):
		tx, err = a.ledger.Withdraw(ctx, account.ID, movement)
	case strings.HasPrefix(req.ProcessingCode, procDeposit):
		tx, err = a.ledger.Deposit(ctx, account.ID, movement)
	default:
		return Result{ResponseCode: InvalidTransaction}
	}
	if err != nil {
		return a.fail(logger, err)
	}

	logger.Info("approved", "transaction_id", tx.ID, "processing_code", req.ProcessingCode)
	return Result{ResponseCode: Approved, ApprovalCode: approvalCode(tx.ID), Transaction: tx}
}

func (a *Adapter) fail(logger *slog.Logger, err error) Result {
	code := ResponseCode(err)
	if code == SystemError {
		logger.Error("processing request", "err", err)
	} else {
		logger.Info("declined", "response_code", code, "reason", err.Error())
	}
	return Result{ResponseCode: code}
}

// ResponseCode maps a ledger error to a field 39 value.
func ResponseCode(err error) string {
	switch {
	case err == nil:
		return Approved
	case errors.Is(err, models.ErrInvalidAmount):
		return InvalidAmount
	case errors.Is(err, repository.ErrNotFound):
		return InvalidAccount
	case errors.Is(err, models.ErrInsufficientFunds):
		return InsufficientFunds
	}
	return SystemError
}

func responseMTI(mti string) string {
	if len(mti) != 4 {
		return MTIFinancialResponse
	}
	return mti[:2] + "1" + mti[3:]
}

func approvalCode(transactionID string) string {
	code := strings.ToUpper(strings.ReplaceAll(transactionID, "-", ""))
	for len(code) < 6 {
		code += "0"
	}
	return code[:6]
}
