package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/hemachand1989/banking-design-patterns/bank/models"
)

type memoryState struct {
	accounts     map[string]models.Account
	accountOrder []string
	numbers      map[string]string
	transactions []models.Transaction
	txIndex      map[string]int
	loans        map[string]models.LoanApplication
	loanOrder    []string
}

func newMemoryState() *memoryState {
	return &memoryState{
		accounts: make(map[string]models.Account),
		numbers:  make(map[string]string),
		txIndex:  make(map[string]int),
		loans:    make(map[string]models.LoanApplication),
	}
}

func (s *memoryState) clone() *memoryState {
	c := &memoryState{
		accounts:     make(map[string]models.Account, len(s.accounts)),
		accountOrder: append([]string(nil), s.accountOrder...),
		numbers:      make(map[string]string, len(s.numbers)),
		transactions: append([]models.Transaction(nil), s.transactions...),
		txIndex:      make(map[string]int, len(s.txIndex)),
		loans:        make(map[string]models.LoanApplication, len(s.loans)),
		loanOrder:    append([]string(nil), s.loanOrder...),
	}
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.numbers {
		c.numbers[k] = v
	}
	for k, v := range s.txIndex {
		c.txIndex[k] = v
	}
	for k, v := range s.loans {
		c.loans[k] = v
	}
	return c
}

// MemoryStore keeps everything in process memory. Units of work run one at a
// time against a copy of the state which replaces the original on success.
type MemoryStore struct {
	mu    sync.RWMutex
	state *memoryState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemoryState()}
}

func (s *MemoryStore) Accounts() AccountRepository { return &memoryAccounts{store: s} }

func (s *MemoryStore) Transactions() TransactionRepository { return &memoryTransactions{store: s} }

func (s *MemoryStore) Loans() LoanRepository { return &memoryLoans{store: s} }

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Do(ctx context.Context, fn func(r Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	work := s.state.clone()
	if err := fn(&memoryUnit{store: s, state: work}); err != nil {
		return err
	}
	s.state = work
	return nil
}

type memoryUnit struct {
	store *MemoryStore
	state *memoryState
}

func (u *memoryUnit) Accounts() AccountRepository {
	return &memoryAccounts{store: u.store, tx: u.state}
}

func (u *memoryUnit) Transactions() TransactionRepository {
	return &memoryTransactions{store: u.store, tx: u.state}
}

func (u *memoryUnit) Loans() LoanRepository {
	return &memoryLoans{store: u.store, tx: u.state}
}

// view returns the state to operate on. Inside a unit of work the store lock is
// already held by Do.
func (s *MemoryStore) view(tx *memoryState, write bool) (*memoryState, func()) {
	if tx != nil {
		return tx, func() {}
	}
	if write {
		s.mu.Lock()
		return s.state, s.mu.Unlock
	}
	s.mu.RLock()
	return s.state, s.mu.RUnlock
}

type memoryAccounts struct {
	store *MemoryStore
	tx    *memoryState
}

func (r *memoryAccounts) Create(_ context.Context, account *models.Account) error {
	st, done := r.store.view(r.tx, true)
	defer done()

	if _, ok := st.accounts[account.ID]; ok {
		return fmt.Errorf("account id exists: %w", ErrConflict)
	}
	if _, ok := st.numbers[account.Number]; ok {
		return fmt.Errorf("account number exists: %w", ErrConflict)
	}
	st.accounts[account.ID] = *account
	st.accountOrder = append(st.accountOrder, account.ID)
	st.numbers[account.Number] = account.ID
	return nil
}

func (r *memoryAccounts) Get(_ context.Context, id string) (*models.Account, error) {
	st, done := r.store.view(r.tx, false)
	defer done()

	account, ok := st.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &account, nil
}

func (r *memoryAccounts) GetByNumber(_ context.Context, number string) (*models.Account, error) {
	st, done := r.store.view(r.tx, false)
	defer done()

	id, ok := st.numbers[number]
	if !ok {
		return nil, ErrNotFound
	}
	account := st.accounts[id]
	return &account, nil
}

func (r *memoryAccounts) List(_ context.Context) ([]*models.Account, error) {
	st, done := r.store.view(r.tx, false)
	defer done()

	out := make([]*models.Account, 0, len(st.accountOrder))
	for _, id := range st.accountOrder {
		account := st.accounts[id]
		out = append(out, &account)
	}
	return out, nil
}

func (r *memoryAccounts) Update(_ context.Context, account *models.Account) error {
	st, done := r.store.view(r.tx, true)
	defer done()

	current, ok := st.accounts[account.ID]
	if !ok {
		return ErrNotFound
	}
	updated := *account
	updated.Number = current.Number
	updated.CreatedAt = current.CreatedAt
	st.accounts[account.ID] = updated
	return nil
}

type memoryTransactions struct {
	store *MemoryStore
	tx    *memoryState
}

func (r *memoryTransactions) Create(_ context.Context, tx *models.Transaction) error {
	st, done := r.store.view(r.tx, true)
	defer done()

	if _, ok := st.txIndex[tx.ID]; ok {
		return fmt.Errorf("transaction id exists: %w", ErrConflict)
	}
	st.txIndex[tx.ID] = len(st.transactions)
	st.transactions = append(st.transactions, *tx)
	return nil
}

func (r *memoryTransactions) Get(_ context.Context, id string) (*models.Transaction, error) {
	st, done := r.store.view(r.tx, false)
	defer done()

	i, ok := st.txIndex[id]
	if !ok {
		return nil, ErrNotFound
	}
	tx := st.transactions[i]
	return &tx, nil
}

func (r *memoryTransactions) ListByAccount(_ context.Context, accountID string) ([]*models.Transaction, error) {
	st, done := r.store.view(r.tx, false)
	defer done()

	var out []*models.Transaction
	for i := len(st.transactions) - 1; i >= 0; i-- {
		if st.transactions[i].AccountID == accountID {
			tx := st.transactions[i]
			out = append(out, &tx)
		}
	}
	return out, nil
}

func (r *memoryTransactions) ListByReference(_ context.Context, reference string) ([]*models.Transaction, error) {
	st, done := r.store.view(r.tx, false)
	defer done()

	var out []*models.Transaction
	if reference == "" {
		return out, nil
	}
	for _, t := range st.transactions {
		if t.Reference == reference {
			tx := t
			out = append(out, &tx)
		}
	}
	return out, nil
}

func (r *memoryTransactions) UpdateStatus(_ context.Context, id string, status models.TransactionStatus) error {
	st, done := r.store.view(r.tx, true)
	defer done()

	i, ok := st.txIndex[id]
	if !ok {
		return ErrNotFound
	}
	st.transactions[i].Status = status
	return nil
}

type memoryLoans struct {
	store *MemoryStore
	tx    *memoryState
}

func (r *memoryLoans) Create(_ context.Context, app *models.LoanApplication) error {
	st, done := r.store.view(r.tx, true)
	defer done()

	if _, ok := st.loans[app.ID]; ok {
		return fmt.Errorf("loan application id exists: %w", ErrConflict)
	}
	st.loans[app.ID] = *app
	st.loanOrder = append(st.loanOrder, app.ID)
	return nil
}

func (r *memoryLoans) Get(_ context.Context, id string) (*models.LoanApplication, error) {
	st, done := r.store.view(r.tx, false)
	defer done()

	app, ok := st.loans[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &app, nil
}

func (r *memoryLoans) List(_ context.Context) ([]*models.LoanApplication, error) {
	st, done := r.store.view(r.tx, false)
	defer done()

	out := make([]*models.LoanApplication, 0, len(st.loanOrder))
	for _, id := range st.loanOrder {
		app := st.loans[id]
		out = append(out, &app)
	}
	return out, nil
}

func (r *memoryLoans) Update(_ context.Context, app *models.LoanApplication) error {
	st, done := r.store.view(r.tx, true)
	defer done()

	if _, ok := st.loans[app.ID]; !ok {
		return ErrNotFound
	}
	st.loans[app.ID] = *app
	return nil
}
