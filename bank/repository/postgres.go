package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/cenkalti/backoff/v4"
	"github.com/hemachand1989/banking-design-patterns/bank/models"
	"github.com/jackc/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

//go:embed schema.sql
var schema string

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const (
	accountsTable     = "bank.accounts"
	transactionsTable = "bank.transactions"
	loansTable        = "bank.loan_applications"
)

var (
	accountColumns     = []string{"id", "number", "owner_name", "balance", "type", "created_at", "updated_at"}
	transactionColumns = []string{"id", "account_id", "type", "amount", "fee", "status", "reference", "description", "created_at"}
	loanColumns        = []string{"id", "account_id", "amount", "credit_score", "purpose", "status", "decided_by", "reason", "created_at", "decided_at"}
)

// Migrate creates the tables used by PostgresStore when they do not exist.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}

// PostgresStore persists to PostgreSQL. Units of work run in serializable
// transactions and are retried when the database reports a serialization
// failure.
type PostgresStore struct {
	db *sqlx.DB

	MaxRetries uint64
	NewBackOff func() backoff.BackOff
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{
		db:         db,
		MaxRetries: 3,
		NewBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 10 * time.Millisecond
			b.MaxInterval = 250 * time.Millisecond
			return b
		},
	}
}

func (s *PostgresStore) Accounts() AccountRepository { return &pgAccounts{q: s.db} }

func (s *PostgresStore) Transactions() TransactionRepository { return &pgTransactions{q: s.db} }

func (s *PostgresStore) Loans() LoanRepository { return &pgLoans{q: s.db} }

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Do(ctx context.Context, fn func(r Repositories) error) error {
	op := func() error {
		err := s.runTx(ctx, fn)
		if err == nil || isSerializationFailure(err) {
			return err
		}
		return backoff.Permanent(err)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(s.NewBackOff(), s.MaxRetries), ctx)
	return backoff.Retry(op, b)
}

func (s *PostgresStore) runTx(ctx context.Context, fn func(r Repositories) error) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&pgUnit{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

type pgUnit struct {
	q sqlx.ExtContext
}

func (u *pgUnit) Accounts() AccountRepository { return &pgAccounts{q: u.q} }

func (u *pgUnit) Transactions() TransactionRepository { return &pgTransactions{q: u.q} }

func (u *pgUnit) Loans() LoanRepository { return &pgLoans{q: u.q} }

type pgAccounts struct {
	q sqlx.ExtContext
}

func (r *pgAccounts) Create(ctx context.Context, a *models.Account) error {
	query, args, err := psql.Insert(accountsTable).
		Columns(accountColumns...).
		Values(a.ID, a.Number, a.OwnerName, a.Balance, string(a.Type), a.CreatedAt, a.UpdatedAt).
		ToSql()
	if err != nil {
		return err
	}
	return execOne(ctx, r.q, query, args)
}

func (r *pgAccounts) Get(ctx context.Context, id string) (*models.Account, error) {
	return r.getBy(ctx, sq.Eq{"id": id})
}

func (r *pgAccounts) GetByNumber(ctx context.Context, number string) (*models.Account, error) {
	return r.getBy(ctx, sq.Eq{"number": number})
}

func (r *pgAccounts) getBy(ctx context.Context, where sq.Eq) (*models.Account, error) {
	query, args, err := psql.Select(accountColumns...).From(accountsTable).Where(where).ToSql()
	if err != nil {
		return nil, err
	}
	var a models.Account
	if err := sqlx.GetContext(ctx, r.q, &a, query, args...); err != nil {
		return nil, mapError(err)
	}
	return &a, nil
}

func (r *pgAccounts) List(ctx context.Context) ([]*models.Account, error) {
	query, args, err := psql.Select(accountColumns...).From(accountsTable).OrderBy("created_at", "id").ToSql()
	if err != nil {
		return nil, err
	}
	out := []*models.Account{}
	if err := sqlx.SelectContext(ctx, r.q, &out, query, args...); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *pgAccounts) Update(ctx context.Context, a *models.Account) error {
	query, args, err := psql.Update(accountsTable).
		Set("owner_name", a.OwnerName).
		Set("balance", a.Balance).
		Set("type", string(a.Type)).
		Set("updated_at", a.UpdatedAt).
		Where(sq.Eq{"id": a.ID}).
		ToSql()
	if err != nil {
		return err
	}
	return execOne(ctx, r.q, query, args)
}

type pgTransactions struct {
	q sqlx.ExtContext
}

func (r *pgTransactions) Create(ctx context.Context, t *models.Transaction) error {
	query, args, err := psql.Insert(transactionsTable).
		Columns(transactionColumns...).
		Values(t.ID, t.AccountID, string(t.Type), t.Amount, t.Fee, string(t.Status), t.Reference, t.Description, t.CreatedAt).
		ToSql()
	if err != nil {
		return err
	}
	return execOne(ctx, r.q, query, args)
}

func (r *pgTransactions) Get(ctx context.Context, id string) (*models.Transaction, error) {
	query, args, err := psql.Select(transactionColumns...).From(transactionsTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	var t models.Transaction
	if err := sqlx.GetContext(ctx, r.q, &t, query, args...); err != nil {
		return nil, mapError(err)
	}
	return &t, nil
}

func (r *pgTransactions) ListByAccount(ctx context.Context, accountID string) ([]*models.Transaction, error) {
	return r.list(ctx, psql.Select(transactionColumns...).From(transactionsTable).
		Where(sq.Eq{"account_id": accountID}).
		OrderBy("seq DESC"))
}

func (r *pgTransactions) ListByReference(ctx context.Context, reference string) ([]*models.Transaction, error) {
	if reference == "" {
		return nil, nil
	}
	return r.list(ctx, psql.Select(transactionColumns...).From(transactionsTable).
		Where(sq.Eq{"reference": reference}).
		OrderBy("seq"))
}

func (r *pgTransactions) list(ctx context.Context, b sq.SelectBuilder) ([]*models.Transaction, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	var out []*models.Transaction
	if err := sqlx.SelectContext(ctx, r.q, &out, query, args...); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *pgTransactions) UpdateStatus(ctx context.Context, id string, status models.TransactionStatus) error {
	query, args, err := psql.Update(transactionsTable).
		Set("status", string(status)).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}
	return execOne(ctx, r.q, query, args)
}

type pgLoans struct {
	q sqlx.ExtContext
}

func (r *pgLoans) Create(ctx context.Context, l *models.LoanApplication) error {
	query, args, err := psql.Insert(loansTable).
		Columns(loanColumns...).
		Values(l.ID, l.AccountID, l.Amount, l.CreditScore, l.Purpose, string(l.Status), l.DecidedBy, l.Reason, l.CreatedAt, l.DecidedAt).
		ToSql()
	if err != nil {
		return err
	}
	return execOne(ctx, r.q, query, args)
}

func (r *pgLoans) Get(ctx context.Context, id string) (*models.LoanApplication, error) {
	query, args, err := psql.Select(loanColumns...).From(loansTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	var l models.LoanApplication
	if err := sqlx.GetContext(ctx, r.q, &l, query, args...); err != nil {
		return nil, mapError(err)
	}
	return &l, nil
}

func (r *pgLoans) List(ctx context.Context) ([]*models.LoanApplication, error) {
	query, args, err := psql.Select(loanColumns...).From(loansTable).OrderBy("created_at", "id").ToSql()
	if err != nil {
		return nil, err
	}
	out := []*models.LoanApplication{}
	if err := sqlx.SelectContext(ctx, r.q, &out, query, args...); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *pgLoans) Update(ctx context.Context, l *models.LoanApplication) error {
	query, args, err := psql.Update(loansTable).
		Set("status", string(l.Status)).
		Set("decided_by", l.DecidedBy).
		Set("reason", l.Reason).
		Set("decided_at", l.DecidedAt).
		Where(sq.Eq{"id": l.ID}).
		ToSql()
	if err != nil {
		return err
	}
	return execOne(ctx, r.q, query, args)
}

// execOne runs a statement that must touch exactly one row.
func execOne(ctx context.Context, q sqlx.ExecerContext, query string, args []interface{}) error {
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func mapError(err error) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return ErrNotFound
	case isUniqueViolation(err):
		return fmt.Errorf("%s: %w", err, ErrConflict)
	}
	return err
}

func isUniqueViolation(err error) bool {
	return hasCode(err, "23505")
}

func isSerializationFailure(err error) bool {
	return hasCode(err, "40001")
}

func hasCode(err error, code string) bool {
	var pe *pq.Error
	if errors.As(err, &pe) && string(pe.Code) == code {
		return true
	}
	var pgerr *pgconn.PgError
	if errors.As(err, &pgerr) && pgerr.Code == code {
		return true
	}
	return false
}
