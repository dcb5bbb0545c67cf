/**
 * @description
 * This file contains the core business logic for the CASA ledger service.
 * The `Service` struct is the transfer engine's orchestrator: it validates
 * the request, assigns the reference id, delegates the atomic posting unit
 * to the ledger store, and hands the committed transaction identifiers to
 * the event producer strictly after commit.
 *
 * Key properties:
 * - The engine is stateless between calls; all mutable state lives in the
 *   ledger store, and every transfer re-reads and re-locks current balances.
 * - Event publication is fire-and-forget: it runs in a background goroutine
 *   after commit and can never affect the transfer's outcome.
 *
 * @dependencies
 * - context, log, time: Standard Go libraries.
 * - github.com/google/uuid: Event envelope identifiers.
 * - github.com/oklog/ulid/v2: Time-ordered reference id generation.
 * - internal/domain, internal/store: Domain models and data access.
 * - pkg/rabbitmq: Posted-transaction event publication.
 */

package app

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/casaops/casa-ledger-service/internal/domain"
	"github.com/casaops/casa-ledger-service/internal/store"
	"github.com/casaops/casa-ledger-service/pkg/rabbitmq"
)

const publishTimeout = 5 * time.Second

// Service provides the core business logic for accounts and transfers.
type Service struct {
	repo   store.Repository
	events rabbitmq.Publisher
}

// NewService creates a new ledger service instance.
func NewService(repo store.Repository, events rabbitmq.Publisher) *Service {
	return &Service{repo: repo, events: events}
}

// GetAccountDetails returns the ACTIVE account matching the given account
// number. A non-match (unknown or inactive account) surfaces as
// store.ErrAccountNotFound.
func (s *Service) GetAccountDetails(ctx context.Context, accountNum string) (*domain.Account, error) {
	return s.repo.GetAccountDetails(ctx, accountNum)
}

// ListAccountTransactions returns the most recent postings against an
// account, newest first.
func (s *Service) ListAccountTransactions(ctx context.Context, accountNum string, limit int32) ([]domain.Transaction, error) {
	return s.repo.ListAccountTransactions(ctx, accountNum, limit)
}

// Transfer executes one inter-account transfer as a single atomic unit and
// returns the committed transfer plus the ids of the two transaction legs.
// Validation failures and insufficient funds are client-input faults;
// everything else is a system fault. In either case nothing is persisted.
func (s *Service) Transfer(ctx context.Context, req domain.TransferRequest) (*domain.TransferReceipt, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	refID := req.RefID
	if refID == "" {
		refID = ulid.Make().String()
	}

	transfer := &domain.Transfer{
		RefID:            refID,
		TrxDate:          req.TrxDate,
		Currency:         req.Currency,
		Amount:           req.Amount,
		Memo:             req.Memo,
		DebitAccountNum:  req.DebitAccountNum,
		CreditAccountNum: req.CreditAccountNum,
	}

	receipt, err := s.repo.ExecuteTransfer(ctx, transfer)
	if err != nil {
		log.Printf("level=warn component=app operation=transfer outcome=rolled_back ref_id=%s debit=%s credit=%s err=%v",
			refID, req.DebitAccountNum, req.CreditAccountNum, err)
		return nil, err
	}

	log.Printf("level=info component=app operation=transfer outcome=committed ref_id=%s debit=%s credit=%s amount=%s",
		receipt.RefID, receipt.DebitAccountNum, receipt.CreditAccountNum, receipt.Amount)

	s.publishPostedTransactions(receipt)
	return receipt, nil
}

// publishPostedTransactions dispatches the posted-transaction event in the
// background. The transfer has already committed: errors are logged and
// dropped, and the caller's context is not reused so cancellation of the
// request cannot suppress the event.
func (s *Service) publishPostedTransactions(receipt *domain.TransferReceipt) {
	if s.events == nil {
		return
	}

	event := rabbitmq.TransactionsPostedEvent{
		EventID:   uuid.New(),
		RefID:     receipt.RefID,
		Timestamp: time.Now(),
	}
	for _, id := range receipt.TransactionIDs {
		event.Transactions = append(event.Transactions, rabbitmq.PostedTransactionRef{
			EntityKind: "casa_transaction",
			ID:         id,
		})
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()

		if err := s.events.PublishTransactionsPosted(ctx, event); err != nil {
			log.Printf("level=warn component=app msg=\"posted-transaction event publish failed\" ref_id=%s err=%v", event.RefID, err)
		}
	}()
}
