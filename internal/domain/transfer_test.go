package domain

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func validRequest() TransferRequest {
	return TransferRequest{
		TrxDate:          "2021-01-02",
		DebitAccountNum:  "0987654321",
		CreditAccountNum: "1234567890",
		Currency:         "USD",
		Amount:           decimal.RequireFromString("15.00"),
		Memo:             "test transfer",
	}
}

func TestTransferRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *TransferRequest)
		wantErr string
	}{
		{
			name:   "valid request",
			mutate: func(r *TransferRequest) {},
		},
		{
			name:   "valid request with ref id",
			mutate: func(r *TransferRequest) { r.RefID = "01HV3Y0ZK8E3V9GQ5P7W2XN4TC" },
		},
		{
			name:    "ref id too long",
			mutate:  func(r *TransferRequest) { r.RefID = strings.Repeat("A", RefIDMaxLen+1) },
			wantErr: "ref_id",
		},
		{
			name:    "missing trx date",
			mutate:  func(r *TransferRequest) { r.TrxDate = "" },
			wantErr: "trx_date",
		},
		{
			name:    "malformed trx date",
			mutate:  func(r *TransferRequest) { r.TrxDate = "02-01-2021" },
			wantErr: "trx_date",
		},
		{
			name:    "impossible trx date",
			mutate:  func(r *TransferRequest) { r.TrxDate = "2021-02-30" },
			wantErr: "trx_date",
		},
		{
			name:    "missing debit account",
			mutate:  func(r *TransferRequest) { r.DebitAccountNum = "" },
			wantErr: "account numbers are required",
		},
		{
			name:    "missing credit account",
			mutate:  func(r *TransferRequest) { r.CreditAccountNum = "" },
			wantErr: "account numbers are required",
		},
		{
			name:    "same debit and credit account",
			mutate:  func(r *TransferRequest) { r.CreditAccountNum = r.DebitAccountNum },
			wantErr: "must differ",
		},
		{
			name:    "currency too short",
			mutate:  func(r *TransferRequest) { r.Currency = "US" },
			wantErr: "currency",
		},
		{
			name:    "currency too long",
			mutate:  func(r *TransferRequest) { r.Currency = "USDT" },
			wantErr: "currency",
		},
		{
			name:    "zero amount",
			mutate:  func(r *TransferRequest) { r.Amount = decimal.Zero },
			wantErr: "greater than zero",
		},
		{
			name:    "negative amount",
			mutate:  func(r *TransferRequest) { r.Amount = decimal.RequireFromString("-5.00") },
			wantErr: "greater than zero",
		},
		{
			name:    "amount with sub-cent precision",
			mutate:  func(r *TransferRequest) { r.Amount = decimal.RequireFromString("10.005") },
			wantErr: "2 decimal places",
		},
		{
			name:   "amount with trailing zero beyond 2 places",
			mutate: func(r *TransferRequest) { r.Amount = decimal.RequireFromString("10.500") },
		},
		{
			name:    "memo too long",
			mutate:  func(r *TransferRequest) { r.Memo = strings.Repeat("m", MemoMaxLen+1) },
			wantErr: "memo",
		},
		{
			name:   "memo at max length",
			mutate: func(r *TransferRequest) { r.Memo = strings.Repeat("m", MemoMaxLen) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)

			err := req.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("expected valid request, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.wantErr)
			}
			if !errors.Is(err, ErrInvalidRequest) {
				t.Fatalf("expected error to wrap ErrInvalidRequest, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestAmountArithmeticIsExact(t *testing.T) {
	// Classic float trap: 0.1 + 0.2. Decimal arithmetic must be exact.
	a := decimal.RequireFromString("0.10")
	b := decimal.RequireFromString("0.20")
	if got := a.Add(b); !got.Equal(decimal.RequireFromString("0.30")) {
		t.Fatalf("expected 0.30, got %s", got)
	}

	balance := decimal.RequireFromString("500.00")
	amount := decimal.RequireFromString("15.00")
	if got := balance.Sub(amount); !got.Equal(decimal.RequireFromString("485.00")) {
		t.Fatalf("expected 485.00, got %s", got)
	}
}
