/**
 * @description
 * This file defines the core ledger entities for the CASA service: accounts
 * and the immutable transactions posted against them. These structs map
 * directly to the `casa_account` and `casa_transaction` tables.
 *
 * @notes
 * - Monetary amounts are `decimal.Decimal` end-to-end. Balances are
 *   NUMERIC(14,2) in the database and arithmetic is addition/subtraction
 *   only, so no rounding drift is possible.
 * - A Transaction is exclusively owned by one Account; the two legs of a
 *   transfer are correlated by RefID, not by foreign key.
 */

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountStatus is the lifecycle state of a CASA account. Accounts are never
// deleted, only transitioned to SUSPENDED or CLOSED.
type AccountStatus string

const (
	StatusActive    AccountStatus = "ACTIVE"
	StatusSuspended AccountStatus = "SUSPENDED"
	StatusClosed    AccountStatus = "CLOSED"
)

// Account is a single currency-denominated balance holder. The pair
// (AccountNum, Currency) is unique system-wide; only ACTIVE rows are
// considered by lookups and transfers.
type Account struct {
	ID           int64           `json:"-"`
	AccountNum   string          `json:"account_num"`
	Currency     string          `json:"currency"`
	Balance      decimal.Decimal `json:"balance"`
	AvailBalance decimal.Decimal `json:"avail_balance"`
	Status       AccountStatus   `json:"status"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Transaction is one immutable posting against exactly one account. Transfers
// always produce them in pairs: a negative (debit) leg and a positive
// (credit) leg of equal magnitude sharing one RefID. RunningBalance is the
// owning account's balance immediately after this posting.
type Transaction struct {
	ID             int64           `json:"id"`
	RefID          string          `json:"ref_id"`
	TrxDate        string          `json:"trx_date"`
	Currency       string          `json:"currency"`
	Amount         decimal.Decimal `json:"amount"`
	Memo           string          `json:"memo"`
	RunningBalance decimal.Decimal `json:"running_balance"`
	AccountID      int64           `json:"-"`
	CreatedAt      time.Time       `json:"created_at"`
}
