// Package command wraps ledger operations as undoable commands.
package command

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hemachand1989/banking-design-patterns/bank/models"
	"github.com/shopspring/decimal"
)

var (
	ErrNotExecuted   = errors.New("command has not been executed")
	ErrNothingToUndo = errors.New("nothing to undo")
)

type Command interface {
	Name() string
	Execute(ctx context.Context) error
	Undo(ctx context.Context) error
}

// Ledger is the set of money operations commands are built from.
type Ledger interface {
	Deposit(ctx context.Context, accountID string, m models.MoneyMovement) (*models.Transaction, error)
	Withdraw(ctx context.Context, accountID string, m models.MoneyMovement) (*models.Transaction, error)
	Transfer(ctx context.Context, req models.TransferRequest) (*models.Transfer, error)
	Reverse(ctx context.Context, transactionID string) ([]*models.Transaction, error)
	ListAccounts(ctx context.Context) ([]*models.Account, error)
	// CreditInterest books interest for one period. It fails with
	// models.ErrAlreadyCredited when the period was already credited.
	CreditInterest(ctx context.Context, accountID string, amount decimal.Decimal, period string) (*models.Transaction, error)
}

type Deposit struct {
	Ledger      Ledger
	AccountID   string
	Amount      decimal.Decimal
	Description string

	tx *models.Transaction
}

func (c *Deposit) Name() string { return "deposit" }

func (c *Deposit) Execute(ctx context.Context) error {
	tx, err := c.Ledger.Deposit(ctx, c.AccountID, models.MoneyMovement{Amount: c.Amount, Description: c.Description})
	if err != nil {
		return err
	}
	c.tx = tx
	return nil
}

func (c *Deposit) Undo(ctx context.Context) error {
	return reverse(ctx, c.Ledger, &c.tx)
}

// Transaction returns the row written by Execute.
func (c *Deposit) Transaction() *models.Transaction { return c.tx }

type Withdraw struct {
	Ledger      Ledger
	AccountID   string
	Amount      decimal.Decimal
	Description string

	tx *models.Transaction
}

func (c *Withdraw) Name() string { return "withdraw" }

func (c *Withdraw) Execute(ctx context.Context) error {
	tx, err := c.Ledger.Withdraw(ctx, c.AccountID, models.MoneyMovement{Amount: c.Amount, Description: c.Description})
	if err != nil {
		return err
	}
	c.tx = tx
	return nil
}

func (c *Withdraw) Undo(ctx context.Context) error {
	return reverse(ctx, c.Ledger, &c.tx)
}

func (c *Withdraw) Transaction() *models.Transaction { return c.tx }

type Transfer struct {
	Ledger  Ledger
	Request models.TransferRequest

	result *models.Transfer
}

func (c *Transfer) Name() string { return "transfer" }

func (c *Transfer) Execute(ctx context.Context) error {
	res, err := c.Ledger.Transfer(ctx, c.Request)
	if err != nil {
		return err
	}
	c.result = res
	return nil
}

// Undo reverses the debit leg, which reverses the credit leg with it.
func (c *Transfer) Undo(ctx context.Context) error {
	if c.result == nil {
		return ErrNotExecuted
	}
	if _, err := c.Ledger.Reverse(ctx, c.result.Debit.ID); err != nil {
		return fmt.Errorf("reversing transfer %s: %w", c.result.Reference, err)
	}
	c.result = nil
	return nil
}

func (c *Transfer) Result() *models.Transfer { return c.result }

func reverse(ctx context.Context, l Ledger, tx **models.Transaction) error {
	if *tx == nil {
		return ErrNotExecuted
	}
	if _, err := l.Reverse(ctx, (*tx).ID); err != nil {
		return fmt.Errorf("reversing transaction %s: %w", (*tx).ID, err)
	}
	*tx = nil
	return nil
}

// Macro executes its commands in order. When one fails, the ones already
// executed are undone in reverse order.
type Macro struct {
	Label    string
	Commands []Command

	executed int
}

func (m *Macro) Name() string {
	if m.Label != "" {
		return m.Label
	}
	return "macro"
}

func (m *Macro) Execute(ctx context.Context) error {
	m.executed = 0
	for _, c := range m.Commands {
		if err := c.Execute(ctx); err != nil {
			if undoErr := m.Undo(ctx); undoErr != nil {
				return fmt.Errorf("%s failed: %w (rollback: %v)", c.Name(), err, undoErr)
			}
			return fmt.Errorf("%s failed: %w", c.Name(), err)
		}
		m.executed++
	}
	return nil
}

func (m *Macro) Undo(ctx context.Context) error {
	for m.executed > 0 {
		c := m.Commands[m.executed-1]
		if err := c.Undo(ctx); err != nil {
			return fmt.Errorf("undoing %s: %w", c.Name(), err)
		}
		m.executed--
	}
	return nil
}

// DefaultHistoryLimit bounds the number of commands an Invoker can undo.
const DefaultHistoryLimit = 100

// Invoker executes commands and remembers the successful ones so they can be
// undone, latest first.
type Invoker struct {
	mu      sync.Mutex
	history []Command
	limit   int
}

func NewInvoker(limit int) *Invoker {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &Invoker{limit: limit}
}

func (i *Invoker) Execute(ctx context.Context, c Command) error {
	if err := c.Execute(ctx); err != nil {
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	i.history = append(i.history, c)
	if len(i.history) > i.limit {
		i.history = i.history[len(i.history)-i.limit:]
	}
	return nil
}

// Undo reverts the most recently executed command. A command whose undo fails
// stays in the history.
func (i *Invoker) Undo(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if len(i.history) == 0 {
		return ErrNothingToUndo
	}
	last := i.history[len(i.history)-1]
	if err := last.Undo(ctx); err != nil {
		return err
	}
	i.history = i.history[:len(i.history)-1]
	return nil
}

// History lists executed command names, oldest first.
func (i *Invoker) History() []string {
	i.mu.Lock()
	defer i.mu.Unlock()

	names := make([]string, len(i.history))
	for n, c := range i.history {
		names[n] = c.Name()
	}
	return names
}
