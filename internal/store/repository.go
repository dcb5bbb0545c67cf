/**
 * @description
 * This file defines the `Repository` interface, the contract for all ledger
 * store access required by the CASA service. The interface decouples the
 * transfer engine from the PostgreSQL implementation so the engine can be
 * tested against an in-memory fake.
 *
 * @dependencies
 * - context: Standard Go library.
 * - internal/domain: The service's domain models.
 */

package store

import (
	"context"

	"github.com/casaops/casa-ledger-service/internal/domain"
)

// Repository defines the set of methods for interacting with the ledger store.
type Repository interface {
	// GetAccountDetails performs a non-locking read of an ACTIVE account by
	// account number. Returns ErrAccountNotFound when no ACTIVE row matches;
	// whether the account never existed or is suspended is deliberately not
	// distinguished.
	GetAccountDetails(ctx context.Context, accountNum string) (*domain.Account, error)

	// ListAccountTransactions returns the most recent postings against an
	// ACTIVE account, newest first.
	ListAccountTransactions(ctx context.Context, accountNum string, limit int32) ([]domain.Transaction, error)

	// ExecuteTransfer runs the full posting unit as one database transaction:
	// lock both accounts, check funds, mutate balances, write the two
	// transaction legs and the transfer record, commit. The transfer's RefID
	// must already be assigned. On any failure the whole unit rolls back and
	// no partial posting is observable.
	ExecuteTransfer(ctx context.Context, transfer *domain.Transfer) (*domain.TransferReceipt, error)
}
