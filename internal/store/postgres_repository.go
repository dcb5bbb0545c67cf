/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface. It owns every SQL statement touching the casa_account,
 * casa_transaction, and casa_transfer tables, including the pessimistic
 * row locking and the atomic posting unit at the heart of the transfer
 * engine.
 *
 * @dependencies
 * - context, errors, fmt, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver.
 * - internal/domain: Domain models.
 *
 * @notes
 * - Both account rows are locked by a single SELECT ... FOR UPDATE with an
 *   IN clause. Locking via one statement (ordered by account_num) rules out
 *   the lock-ordering deadlock two sequential single-row locks would allow
 *   when concurrent transfers reference the same accounts in opposite roles.
 * - The locking read carries a bounded lock_timeout so a caller stuck behind
 *   a held lock fails fast instead of queuing indefinitely.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/casaops/casa-ledger-service/internal/domain"
)

var (
	// ErrAccountNotFound is returned when a lookup or locking read does not
	// match the expected ACTIVE account rows. On the transfer path it is a
	// client-input fault, not a system error.
	ErrAccountNotFound = errors.New("invalid debit or credit account number")

	// ErrInsufficientFunds is returned when the debit account's available
	// balance cannot cover the requested amount.
	ErrInsufficientFunds = errors.New("insufficient funds in debit account")

	// ErrDuplicateReference is returned when the transfer's ref_id collides
	// with a previously committed transfer. The caller may retry with a
	// fresh reference id.
	ErrDuplicateReference = errors.New("transfer reference id already used")

	// ErrLockTimeout is returned when the locking read waited longer than
	// the configured bound for a competing transfer to release its locks.
	ErrLockTimeout = errors.New("timed out waiting for account locks")
)

const accountColumns = "id, account_num, currency, balance, avail_balance, status, updated_at"

// PostgresRepository is the concrete ledger store backed by a pgx pool.
type PostgresRepository struct {
	db          *pgxpool.Pool
	lockTimeout time.Duration
}

// NewPostgresRepository creates a new PostgresRepository. lockTimeout bounds
// how long a transfer may wait on another transfer's row locks.
func NewPostgresRepository(db *pgxpool.Pool, lockTimeout time.Duration) *PostgresRepository {
	if lockTimeout <= 0 {
		lockTimeout = 5 * time.Second
	}
	return &PostgresRepository{db: db, lockTimeout: lockTimeout}
}

// GetAccountDetails performs a non-locking read of an ACTIVE account.
func (r *PostgresRepository) GetAccountDetails(ctx context.Context, accountNum string) (*domain.Account, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM casa_account WHERE account_num = $1 AND status = 'ACTIVE' LIMIT 1",
		accountColumns,
	)

	var account domain.Account
	err := r.db.QueryRow(ctx, query, accountNum).Scan(
		&account.ID,
		&account.AccountNum,
		&account.Currency,
		&account.Balance,
		&account.AvailBalance,
		&account.Status,
		&account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to query account %s: %w", accountNum, err)
	}
	return &account, nil
}

// ListAccountTransactions returns the most recent postings against an ACTIVE
// account, newest first. The query rides the (account_id, trx_date) index.
func (r *PostgresRepository) ListAccountTransactions(ctx context.Context, accountNum string, limit int32) ([]domain.Transaction, error) {
	account, err := r.GetAccountDetails(ctx, accountNum)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, ref_id, trx_date, currency, amount, memo, running_balance, account_id, created_at
		FROM casa_transaction
		WHERE account_id = $1
		ORDER BY trx_date DESC, id DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, account.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions for %s: %w", accountNum, err)
	}
	defer rows.Close()

	var transactions []domain.Transaction
	for rows.Next() {
		var trx domain.Transaction
		if err := rows.Scan(
			&trx.ID,
			&trx.RefID,
			&trx.TrxDate,
			&trx.Currency,
			&trx.Amount,
			&trx.Memo,
			&trx.RunningBalance,
			&trx.AccountID,
			&trx.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transaction row: %w", err)
		}
		transactions = append(transactions, trx)
	}
	return transactions, rows.Err()
}

// ExecuteTransfer runs the whole posting unit in one database transaction.
// The sequence is: bound the lock wait, lock both accounts, check funds,
// mutate both balances, insert the two transaction legs, insert the transfer
// record, commit. Any error rolls the entire unit back.
func (r *PostgresRepository) ExecuteTransfer(ctx context.Context, transfer *domain.Transfer) (*domain.TransferReceipt, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transfer transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// SET LOCAL scopes the lock bound to this transaction only.
	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.lockTimeout.Milliseconds())); err != nil {
		return nil, fmt.Errorf("failed to set lock timeout: %w", err)
	}

	debit, credit, err := r.lockAccountsForTransfer(ctx, tx, transfer.DebitAccountNum, transfer.CreditAccountNum)
	if err != nil {
		return nil, err
	}

	if debit.AvailBalance.LessThan(transfer.Amount) {
		return nil, ErrInsufficientFunds
	}

	now := time.Now()
	newDebitBalance := debit.Balance.Sub(transfer.Amount)
	newCreditBalance := credit.Balance.Add(transfer.Amount)

	// Balance and available balance move together: there is no hold
	// sub-system in this ledger.
	updateBalance := "UPDATE casa_account SET balance = $1, avail_balance = $2, updated_at = $3 WHERE id = $4"
	if _, err := tx.Exec(ctx, updateBalance, newDebitBalance, newDebitBalance, now, debit.ID); err != nil {
		return nil, fmt.Errorf("failed to update debit account balance: %w", err)
	}
	if _, err := tx.Exec(ctx, updateBalance, newCreditBalance, newCreditBalance, now, credit.ID); err != nil {
		return nil, fmt.Errorf("failed to update credit account balance: %w", err)
	}

	insertTransaction := `
		INSERT INTO casa_transaction (ref_id, trx_date, currency, amount, memo, running_balance, account_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	var debitTrxID int64
	err = tx.QueryRow(ctx, insertTransaction,
		transfer.RefID,
		transfer.TrxDate,
		transfer.Currency,
		transfer.Amount.Neg(),
		transfer.Memo,
		newDebitBalance,
		debit.ID,
		now,
	).Scan(&debitTrxID)
	if err != nil {
		return nil, classifyPgError(fmt.Errorf("failed to insert debit transaction: %w", err))
	}

	var creditTrxID int64
	err = tx.QueryRow(ctx, insertTransaction,
		transfer.RefID,
		transfer.TrxDate,
		transfer.Currency,
		transfer.Amount,
		creditMemo(transfer.DebitAccountNum, transfer.Memo),
		newCreditBalance,
		credit.ID,
		now,
	).Scan(&creditTrxID)
	if err != nil {
		return nil, classifyPgError(fmt.Errorf("failed to insert credit transaction: %w", err))
	}

	insertTransfer := `
		INSERT INTO casa_transfer (ref_id, trx_date, currency, amount, memo, debit_account_num, credit_account_num, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err = tx.QueryRow(ctx, insertTransfer,
		transfer.RefID,
		transfer.TrxDate,
		transfer.Currency,
		transfer.Amount,
		transfer.Memo,
		transfer.DebitAccountNum,
		transfer.CreditAccountNum,
		now,
	).Scan(&transfer.ID)
	if err != nil {
		return nil, classifyPgError(fmt.Errorf("failed to insert transfer record: %w", err))
	}
	transfer.CreatedAt = now

	// A cancellation signal arriving once commit is issued must not abort
	// the operation midway; the commit runs to completion either way.
	if err := tx.Commit(context.WithoutCancel(ctx)); err != nil {
		return nil, classifyPgError(fmt.Errorf("failed to commit transfer: %w", err))
	}

	return &domain.TransferReceipt{
		Transfer:       *transfer,
		TransactionIDs: []int64{debitTrxID, creditTrxID},
	}, nil
}

// lockAccountsForTransfer acquires FOR UPDATE locks on both account rows via
// a single query. Fewer than two matched rows (missing account, inactive
// account, or debit == credit) is a validation failure.
func (r *PostgresRepository) lockAccountsForTransfer(ctx context.Context, tx pgx.Tx, debitNum, creditNum string) (*domain.Account, *domain.Account, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM casa_account
		WHERE account_num IN ($1, $2) AND status = 'ACTIVE'
		ORDER BY account_num
		FOR UPDATE
	`, accountColumns)

	rows, err := tx.Query(ctx, query, debitNum, creditNum)
	if err != nil {
		return nil, nil, classifyPgError(fmt.Errorf("failed to lock accounts: %w", err))
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		var account domain.Account
		if err := rows.Scan(
			&account.ID,
			&account.AccountNum,
			&account.Currency,
			&account.Balance,
			&account.AvailBalance,
			&account.Status,
			&account.UpdatedAt,
		); err != nil {
			return nil, nil, fmt.Errorf("failed to scan locked account row: %w", err)
		}
		accounts = append(accounts, &account)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, classifyPgError(fmt.Errorf("failed to read locked accounts: %w", err))
	}

	if len(accounts) != 2 {
		return nil, nil, ErrAccountNotFound
	}
	debit, credit := orientAccounts(accounts, debitNum)
	return debit, credit, nil
}

// orientAccounts maps the two locked rows (returned in account_num order)
// back to their debit/credit roles.
func orientAccounts(accounts []*domain.Account, debitNum string) (*domain.Account, *domain.Account) {
	if accounts[0].AccountNum == debitNum {
		return accounts[0], accounts[1]
	}
	return accounts[1], accounts[0]
}

// creditMemo enriches the credit leg's memo with the originating debit
// account number, truncated to fit the memo column.
func creditMemo(debitAccountNum, memo string) string {
	enriched := fmt.Sprintf("from %s: %s", debitAccountNum, memo)
	if len(enriched) > domain.MemoMaxLen {
		return enriched[:domain.MemoMaxLen]
	}
	return enriched
}

// classifyPgError maps PostgreSQL error codes onto the store's sentinel
// errors: unique_violation (23505) and lock_not_available (55P03).
func classifyPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w (constraint %s)", ErrDuplicateReference, pgErr.ConstraintName)
		case "55P03":
			return ErrLockTimeout
		}
	}
	return err
}
