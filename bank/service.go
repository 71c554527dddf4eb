package bank

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/exp/slog"

	"github.com/hemachand1989/banking-design-patterns/bank/events"
	"github.com/hemachand1989/banking-design-patterns/bank/fee"
	"github.com/hemachand1989/banking-design-patterns/bank/loan"
	"github.com/hemachand1989/banking-design-patterns/bank/models"
	"github.com/hemachand1989/banking-design-patterns/bank/repository"
	"github.com/hemachand1989/banking-design-patterns/internal/acctnum"
)

const accountCreateAttempts = 5

type Service struct {
	store     repository.UnitOfWork
	publisher *events.Publisher
	approvals loan.Handler
	cfg       *Config
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(logger *slog.Logger, store repository.UnitOfWork, publisher *events.Publisher, cfg *Config) *Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if publisher == nil {
		publisher = events.NewPublisher()
	}
	return &Service{
		store:     store,
		publisher: publisher,
		approvals: loan.NewChain(loan.DefaultLimits(), time.Now),
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *Service) timestamp() time.Time {
	return s.now().UTC()
}

func (s *Service) publish(ctx context.Context, e events.Event) {
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.Error("publishing event", "type", string(e.Type), "err", err)
	}
}

// validAmount reports whether amount is positive and has at most two decimal places.
func validAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() && amount.Equal(amount.Round(fee.Places))
}

func (s *Service) CreateAccount(ctx context.Context, req models.CreateAccount) (*models.Account, error) {
	owner := strings.TrimSpace(req.OwnerName)
	if owner == "" {
		return nil, fmt.Errorf("creating account: %w", models.ErrOwnerRequired)
	}
	if req.Type == "" {
		req.Type = models.AccountTypeChecking
	}
	if !req.Type.Valid() {
		return nil, fmt.Errorf("creating account: %w: %q", models.ErrInvalidAccountType, req.Type)
	}
	if req.InitialDeposit.IsNegative() || !req.InitialDeposit.Equal(req.InitialDeposit.Round(fee.Places)) {
		return nil, fmt.Errorf("creating account: %w", models.ErrInvalidAmount)
	}

	exists := func(number string) (bool, error) {
		_, err := s.store.Accounts().GetByNumber(ctx, number)
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return err == nil, err
	}

	branch := s.cfg.Branch
	if err := acctnum.ValidateBranch(branch); err != nil {
		branch = acctnum.DefaultBranch
	}

	// the number may still be taken between the check and the insert
	for attempt := 0; attempt < accountCreateAttempts; attempt++ {
		number, err := acctnum.GenerateUnique(branch, 10, exists)
		if err != nil {
			return nil, fmt.Errorf("generating account number: %w", err)
		}

		now := s.timestamp()
		account := &models.Account{
			ID:        uuid.New().String(),
			Number:    number,
			OwnerName: owner,
			Balance:   decimal.Zero,
			Type:      req.Type,
			CreatedAt: now,
			UpdatedAt: now,
		}

		var opening *models.Transaction
		err = s.store.Do(ctx, func(r repository.Repositories) error {
			if req.InitialDeposit.IsPositive() {
				if err := account.Deposit(req.InitialDeposit, now); err != nil {
					return err
				}
				opening = &models.Transaction{
					ID:          uuid.New().String(),
					AccountID:   account.ID,
					Type:        models.TransactionTypeDeposit,
					Amount:      req.InitialDeposit,
					Fee:         decimal.Zero,
					Status:      models.TransactionStatusCompleted,
					Description: "initial deposit",
					CreatedAt:   now,
				}
			}
			if err := r.Accounts().Create(ctx, account); err != nil {
				return err
			}
			if opening != nil {
				return r.Transactions().Create(ctx, opening)
			}
			return nil
		})
		if errors.Is(err, repository.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("creating account: %w", err)
		}

		e := events.New(events.AccountOpened)
		e.Account = account
		s.publish(ctx, e)
		if opening != nil {
			s.publishCompleted(ctx, account, opening)
		}
		return account, nil
	}

	return nil, fmt.Errorf("creating account: could not allocate a unique number: %w", repository.ErrConflict)
}

func (s *Service) GetAccount(ctx context.Context, accountID string) (*models.Account, error) {
	account, err := s.store.Accounts().Get(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("finding account: %w", err)
	}
	return account, nil
}

func (s *Service) GetAccountByNumber(ctx context.Context, number string) (*models.Account, error) {
	account, err := s.store.Accounts().GetByNumber(ctx, acctnum.Normalize(number))
	if err != nil {
		return nil, fmt.Errorf("finding account by number: %w", err)
	}
	return account, nil
}

func (s *Service) ListAccounts(ctx context.Context) ([]*models.Account, error) {
	accounts, err := s.store.Accounts().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	if accounts == nil {
		accounts = []*models.Account{}
	}
	return accounts, nil
}

// ListTransactions returns the account's transactions, newest first.
func (s *Service) ListTransactions(ctx context.Context, accountID string) ([]*models.Transaction, error) {
	if _, err := s.store.Accounts().Get(ctx, accountID); err != nil {
		return nil, fmt.Errorf("finding account: %w", err)
	}
	transactions, err := s.store.Transactions().ListByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	if transactions == nil {
		transactions = []*models.Transaction{}
	}
	return transactions, nil
}

func (s *Service) Deposit(ctx context.Context, accountID string, m models.MoneyMovement) (*models.Transaction, error) {
	tx, account, err := s.credit(ctx, accountID, m.Amount, models.TransactionTypeDeposit, "", m.Description)
	if err != nil {
		return nil, fmt.Errorf("depositing: %w", err)
	}
	s.publishCompleted(ctx, account, tx)
	return tx, nil
}

// CreditInterest books interest for period once per account.
func (s *Service) CreditInterest(ctx context.Context, accountID string, amount decimal.Decimal, period string) (*models.Transaction, error) {
	reference := "interest:" + period + ":" + accountID
	tx, account, err := s.credit(ctx, accountID, amount, models.TransactionTypeInterest, reference, "interest "+period)
	if err != nil {
		return nil, fmt.Errorf("crediting interest: %w", err)
	}
	s.publishCompleted(ctx, account, tx)
	return tx, nil
}

func (s *Service) credit(ctx context.Context, accountID string, amount decimal.Decimal, typ models.TransactionType, reference, description string) (*models.Transaction, *models.Account, error) {
	if !validAmount(amount) {
		return nil, nil, models.ErrInvalidAmount
	}

	var tx *models.Transaction
	var account *models.Account
	err := s.store.Do(ctx, func(r repository.Repositories) error {
		if reference != "" {
			existing, err := r.Transactions().ListByReference(ctx, reference)
			if err != nil {
				return err
			}
			for _, t := range existing {
				if t.Type == typ && t.Status == models.TransactionStatusCompleted {
					return models.ErrAlreadyCredited
				}
			}
		}

		var err error
		account, err = r.Accounts().Get(ctx, accountID)
		if err != nil {
			return err
		}
		now := s.timestamp()
		if err := account.Deposit(amount, now); err != nil {
			return err
		}
		if err := r.Accounts().Update(ctx, account); err != nil {
			return err
		}
		tx = &models.Transaction{
			ID:          uuid.New().String(),
			AccountID:   account.ID,
			Type:        typ,
			Amount:      amount,
			Fee:         decimal.Zero,
			Status:      models.TransactionStatusCompleted,
			Reference:   reference,
			Description: description,
			CreatedAt:   now,
		}
		return r.Transactions().Create(ctx, tx)
	})
	if err != nil {
		return nil, nil, err
	}
	return tx, account, nil
}

// Withdraw debits amount plus the account type's fee. A withdrawal the balance
// cannot cover is recorded as failed and returns ErrInsufficientFunds.
func (s *Service) Withdraw(ctx context.Context, accountID string, m models.MoneyMovement) (*models.Transaction, error) {
	if !validAmount(m.Amount) {
		return nil, fmt.Errorf("withdrawing: %w", models.ErrInvalidAmount)
	}

	var tx *models.Transaction
	var account *models.Account
	err := s.store.Do(ctx, func(r repository.Repositories) error {
		var err error
		account, err = r.Accounts().Get(ctx, accountID)
		if err != nil {
			return err
		}
		strategy, err := fee.ForAccountType(account.Type)
		if err != nil {
			return err
		}

		now := s.timestamp()
		tx = &models.Transaction{
			ID:          uuid.New().String(),
			AccountID:   account.ID,
			Type:        models.TransactionTypeWithdrawal,
			Amount:      m.Amount,
			Status:      models.TransactionStatusCompleted,
			Description: m.Description,
			CreatedAt:   now,
		}

		charged, err := account.Withdraw(m.Amount, strategy, now)
		switch {
		case errors.Is(err, models.ErrInsufficientFunds):
			tx.Status = models.TransactionStatusFailed
			tx.Fee = strategy.Calculate(m.Amount)
			return r.Transactions().Create(ctx, tx)
		case err != nil:
			return err
		}
		tx.Fee = charged

		if err := r.Accounts().Update(ctx, account); err != nil {
			return err
		}
		return r.Transactions().Create(ctx, tx)
	})
	if err != nil {
		return nil, fmt.Errorf("withdrawing: %w", err)
	}

	if tx.Status == models.TransactionStatusFailed {
		s.publishFailed(ctx, account, tx, models.ErrInsufficientFunds)
		return nil, fmt.Errorf("withdrawing: %w", models.ErrInsufficientFunds)
	}
	s.publishCompleted(ctx, account, tx)
	return tx, nil
}

// Transfer moves amount between two accounts. The source pays its account
// type's fee; both legs share a reference.
func (s *Service) Transfer(ctx context.Context, req models.TransferRequest) (*models.Transfer, error) {
	if !validAmount(req.Amount) {
		return nil, fmt.Errorf("transferring: %w", models.ErrInvalidAmount)
	}
	if req.FromAccountID == req.ToAccountID {
		return nil, fmt.Errorf("transferring: %w", models.ErrSameAccount)
	}

	result := &models.Transfer{Reference: uuid.New().String()}
	var from, to *models.Account
	err := s.store.Do(ctx, func(r repository.Repositories) error {
		var err error
		if from, err = r.Accounts().Get(ctx, req.FromAccountID); err != nil {
			return fmt.Errorf("source account: %w", err)
		}
		if to, err = r.Accounts().Get(ctx, req.ToAccountID); err != nil {
			return fmt.Errorf("destination account: %w", err)
		}
		strategy, err := fee.ForAccountType(from.Type)
		if err != nil {
			return err
		}

		now := s.timestamp()
		result.Debit = &models.Transaction{
			ID:          uuid.New().String(),
			AccountID:   from.ID,
			Type:        models.TransactionTypeTransferOut,
			Amount:      req.Amount,
			Status:      models.TransactionStatusCompleted,
			Reference:   result.Reference,
			Description: req.Description,
			CreatedAt:   now,
		}

		charged, err := from.Withdraw(req.Amount, strategy, now)
		switch {
		case errors.Is(err, models.ErrInsufficientFunds):
			result.Debit.Status = models.TransactionStatusFailed
			result.Debit.Fee = strategy.Calculate(req.Amount)
			return r.Transactions().Create(ctx, result.Debit)
		case err != nil:
			return err
		}
		result.Debit.Fee = charged

		if err := to.Deposit(req.Amount, now); err != nil {
			return err
		}
		result.Credit = &models.Transaction{
			ID:          uuid.New().String(),
			AccountID:   to.ID,
			Type:        models.TransactionTypeTransferIn,
			Amount:      req.Amount,
			Fee:         decimal.Zero,
			Status:      models.TransactionStatusCompleted,
			Reference:   result.Reference,
			Description: req.Description,
			CreatedAt:   now,
		}

		if err := r.Accounts().Update(ctx, from); err != nil {
			return err
		}
		if err := r.Accounts().Update(ctx, to); err != nil {
			return err
		}
		if err := r.Transactions().Create(ctx, result.Debit); err != nil {
			return err
		}
		return r.Transactions().Create(ctx, result.Credit)
	})
	if err != nil {
		return nil, fmt.Errorf("transferring: %w", err)
	}

	if result.Debit.Status == models.TransactionStatusFailed {
		s.publishFailed(ctx, from, result.Debit, models.ErrInsufficientFunds)
		return nil, fmt.Errorf("transferring: %w", models.ErrInsufficientFunds)
	}
	s.publishCompleted(ctx, from, result.Debit)
	s.publishCompleted(ctx, to, result.Credit)
	return result, nil
}

// Reverse compensates a completed transaction and marks it reversed. Debits
// are refunded together with their fee. Reversing either leg of a transfer
// reverses both.
func (s *Service) Reverse(ctx context.Context, transactionID string) ([]*models.Transaction, error) {
	var reversals []*models.Transaction
	accounts := make(map[string]*models.Account)

	err := s.store.Do(ctx, func(r repository.Repositories) error {
		reversals = nil
		original, err := r.Transactions().Get(ctx, transactionID)
		if err != nil {
			return err
		}
		if !original.Reversible() {
			return models.ErrNotReversible
		}

		legs := []*models.Transaction{original}
		if isTransferLeg(original) && original.Reference != "" {
			related, err := r.Transactions().ListByReference(ctx, original.Reference)
			if err != nil {
				return err
			}
			for _, t := range related {
				if t.ID != original.ID && isTransferLeg(t) && t.Reversible() {
					legs = append(legs, t)
				}
			}
		}

		now := s.timestamp()
		for _, leg := range legs {
			account, err := r.Accounts().Get(ctx, leg.AccountID)
			if err != nil {
				return err
			}

			change := leg.Amount
			if isDebit(leg) {
				change = leg.Amount.Add(leg.Fee)
				if err := account.Deposit(change, now); err != nil {
					return err
				}
			} else {
				if _, err := account.Withdraw(change, nil, now); err != nil {
					return err
				}
			}

			reference := leg.Reference
			if reference == "" {
				reference = leg.ID
			}
			reversal := &models.Transaction{
				ID:          uuid.New().String(),
				AccountID:   leg.AccountID,
				Type:        models.TransactionTypeReversal,
				Amount:      change,
				Fee:         decimal.Zero,
				Status:      models.TransactionStatusCompleted,
				Reference:   reference,
				Description: fmt.Sprintf("reversal of %s %s", leg.Type, leg.ID),
				CreatedAt:   now,
			}

			if err := r.Accounts().Update(ctx, account); err != nil {
				return err
			}
			if err := r.Transactions().UpdateStatus(ctx, leg.ID, models.TransactionStatusReversed); err != nil {
				return err
			}
			if err := r.Transactions().Create(ctx, reversal); err != nil {
				return err
			}
			accounts[account.ID] = account
			reversals = append(reversals, reversal)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reversing transaction: %w", err)
	}

	for _, reversal := range reversals {
		e := events.New(events.TransactionReversed)
		e.Account = accounts[reversal.AccountID]
		e.Transaction = reversal
		s.publish(ctx, e)
	}
	return reversals, nil
}

func isTransferLeg(t *models.Transaction) bool {
	return t.Type == models.TransactionTypeTransferIn || t.Type == models.TransactionTypeTransferOut
}

func isDebit(t *models.Transaction) bool {
	return t.Type == models.TransactionTypeWithdrawal || t.Type == models.TransactionTypeTransferOut
}

// QuoteFee prices a withdrawal of amount from an account of type t.
func (s *Service) QuoteFee(t models.AccountType, amount decimal.Decimal) (*models.FeeQuote, error) {
	if !validAmount(amount) {
		return nil, fmt.Errorf("quoting fee: %w", models.ErrInvalidAmount)
	}
	strategy, err := fee.ForAccountType(t)
	if err != nil {
		return nil, fmt.Errorf("quoting fee: %w", err)
	}
	charged := strategy.Calculate(amount)
	return &models.FeeQuote{
		AccountType: t,
		Strategy:    strategy.Name(),
		Amount:      amount,
		Fee:         charged,
		Total:       amount.Add(charged),
	}, nil
}

// ApplyForLoan runs the application through the approval chain and stores the
// decision. Invalid applications are rejected with an error and not stored.
func (s *Service) ApplyForLoan(ctx context.Context, req models.LoanRequest) (*models.LoanApplication, error) {
	if req.AccountID != "" {
		if _, err := s.store.Accounts().Get(ctx, req.AccountID); err != nil {
			return nil, fmt.Errorf("finding account: %w", err)
		}
	}

	app := &models.LoanApplication{
		ID:          uuid.New().String(),
		AccountID:   req.AccountID,
		Amount:      req.Amount,
		CreditScore: req.CreditScore,
		Purpose:     strings.TrimSpace(req.Purpose),
		Status:      models.LoanStatusPending,
		CreatedAt:   s.timestamp(),
	}
	if err := s.approvals.Handle(ctx, app); err != nil {
		return nil, fmt.Errorf("deciding loan application: %w", err)
	}

	err := s.store.Do(ctx, func(r repository.Repositories) error {
		return r.Loans().Create(ctx, app)
	})
	if err != nil {
		return nil, fmt.Errorf("storing loan application: %w", err)
	}

	e := events.New(events.LoanDecided)
	e.Loan = app
	s.publish(ctx, e)
	return app, nil
}

func (s *Service) GetLoanApplication(ctx context.Context, id string) (*models.LoanApplication, error) {
	app, err := s.store.Loans().Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("finding loan application: %w", err)
	}
	return app, nil
}

func (s *Service) ListLoanApplications(ctx context.Context) ([]*models.LoanApplication, error) {
	apps, err := s.store.Loans().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing loan applications: %w", err)
	}
	if apps == nil {
		apps = []*models.LoanApplication{}
	}
	return apps, nil
}

func (s *Service) publishCompleted(ctx context.Context, account *models.Account, tx *models.Transaction) {
	e := events.New(events.TransactionCompleted)
	e.Account = account
	e.Transaction = tx
	s.publish(ctx, e)
}

func (s *Service) publishFailed(ctx context.Context, account *models.Account, tx *models.Transaction, cause error) {
	e := events.New(events.TransactionFailed)
	e.Account = account
	e.Transaction = tx
	e.Error = cause.Error()
	s.publish(ctx, e)
}
