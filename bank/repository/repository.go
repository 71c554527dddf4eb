// Package repository persists accounts, transactions and loan applications.
//
// Every store implements UnitOfWork: reads and writes through Accounts(),
// Transactions() and Loans() apply immediately, while the repositories handed to
// Do see an isolated view whose writes become visible only if the callback
// returns nil.
package repository

import (
	"context"
	"errors"

	"github.com/hemachand1989/banking-design-patterns/bank/models"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) error
	Get(ctx context.Context, id string) (*models.Account, error)
	GetByNumber(ctx context.Context, number string) (*models.Account, error)
	List(ctx context.Context) ([]*models.Account, error)
	// Update stores owner, balance, type and updated_at. The number and
	// creation time never change.
	Update(ctx context.Context, account *models.Account) error
}

type TransactionRepository interface {
	Create(ctx context.Context, tx *models.Transaction) error
	Get(ctx context.Context, id string) (*models.Transaction, error)
	// ListByAccount returns the account's transactions, newest first.
	ListByAccount(ctx context.Context, accountID string) ([]*models.Transaction, error)
	ListByReference(ctx context.Context, reference string) ([]*models.Transaction, error)
	UpdateStatus(ctx context.Context, id string, status models.TransactionStatus) error
}

type LoanRepository interface {
	Create(ctx context.Context, app *models.LoanApplication) error
	Get(ctx context.Context, id string) (*models.LoanApplication, error)
	List(ctx context.Context) ([]*models.LoanApplication, error)
	Update(ctx context.Context, app *models.LoanApplication) error
}

type Repositories interface {
	Accounts() AccountRepository
	Transactions() TransactionRepository
	Loans() LoanRepository
}

// UnitOfWork groups repository writes into one atomic change.
type UnitOfWork interface {
	Repositories
	// Do runs fn atomically. Calls to Do must not be nested.
	Do(ctx context.Context, fn func(r Repositories) error) error
	Ping(ctx context.Context) error
}
