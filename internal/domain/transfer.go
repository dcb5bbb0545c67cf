/**
 * @description
 * This file defines the transfer request/result models and the request-level
 * validation rules. A TransferRequest is the inbound DTO for the transfer
 * engine; a Transfer is the durable record persisted to `casa_transfer`; a
 * TransferReceipt is what the engine hands back to the caller so the posted
 * transaction identifiers can be forwarded to the event notifier.
 */

package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// RefIDMaxLen bounds both client-supplied and generated reference ids.
	RefIDMaxLen = 32
	// MemoMaxLen matches the VARCHAR(100) memo columns.
	MemoMaxLen = 100

	trxDateLayout = "2006-01-02"
)

// ErrInvalidRequest marks a malformed transfer request. Validation failures
// wrap it so callers can classify them as client-input faults.
var ErrInvalidRequest = errors.New("invalid transfer request")

// Transfer is the durable record of one transfer request and outcome,
// persisted atomically with its two transaction legs. RefID is unique and
// doubles as the idempotency key.
type Transfer struct {
	ID               int64           `json:"-"`
	RefID            string          `json:"ref_id"`
	TrxDate          string          `json:"trx_date"`
	Currency         string          `json:"currency"`
	Amount           decimal.Decimal `json:"amount"`
	Memo             string          `json:"memo"`
	DebitAccountNum  string          `json:"debit_account_num"`
	CreditAccountNum string          `json:"credit_account_num"`
	CreatedAt        time.Time       `json:"created_at"`
}

// TransferRequest is the DTO for incoming transfer API requests. RefID is
// optional; when empty the engine assigns a ULID.
type TransferRequest struct {
	RefID            string          `json:"ref_id,omitempty"`
	TrxDate          string          `json:"trx_date"`
	DebitAccountNum  string          `json:"debit_account_num"`
	CreditAccountNum string          `json:"credit_account_num"`
	Currency         string          `json:"currency"`
	Amount           decimal.Decimal `json:"amount"`
	Memo             string          `json:"memo"`
}

// TransferReceipt is the committed transfer plus the ids of the two
// transaction rows it created, debit leg first. The ids are handed to the
// event notifier strictly after commit.
type TransferReceipt struct {
	Transfer
	TransactionIDs []int64 `json:"transaction_ids"`
}

// Validate checks all field-level constraints of a transfer request. It does
// not touch storage; account existence and funds are validated by the engine
// under lock.
func (r *TransferRequest) Validate() error {
	if len(r.RefID) > RefIDMaxLen {
		return fmt.Errorf("%w: ref_id exceeds %d characters", ErrInvalidRequest, RefIDMaxLen)
	}
	if _, err := time.Parse(trxDateLayout, r.TrxDate); err != nil {
		return fmt.Errorf("%w: trx_date must be a valid YYYY-MM-DD date", ErrInvalidRequest)
	}
	if r.DebitAccountNum == "" || r.CreditAccountNum == "" {
		return fmt.Errorf("%w: debit and credit account numbers are required", ErrInvalidRequest)
	}
	if r.DebitAccountNum == r.CreditAccountNum {
		return fmt.Errorf("%w: debit and credit accounts must differ", ErrInvalidRequest)
	}
	if len(r.Currency) != 3 {
		return fmt.Errorf("%w: currency must be a 3-letter code", ErrInvalidRequest)
	}
	if !r.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be greater than zero", ErrInvalidRequest)
	}
	if !r.Amount.Equal(r.Amount.Truncate(2)) {
		return fmt.Errorf("%w: amount precision is limited to 2 decimal places", ErrInvalidRequest)
	}
	if len(r.Memo) > MemoMaxLen {
		return fmt.Errorf("%w: memo exceeds %d characters", ErrInvalidRequest, MemoMaxLen)
	}
	return nil
}
