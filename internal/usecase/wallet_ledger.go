package usecase

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

var (
	ErrInsufficientBalance = errors.New("wallet: insufficient balance")
	ErrInvalidLedgerEntry  = errors.New("wallet: invalid ledger entry")
	// 同じ外部参照で既に計上済み
	ErrDuplicateLedgerEntry = errors.New("wallet: duplicate external reference")
)

type LedgerEntry struct {
	UserID      int64
	Amount      int64
	Reason      model.WalletReason
	OrderID     *int64
	Description string
	ExternalRef *string
}

// WalletLedger は残高を動かす唯一の入口。
// 残高更新と取引の追記は必ず同じ Tx の中で行う
type WalletLedger struct{}

func (WalletLedger) Credit(ctx context.Context, wallets repo.WalletRepository, e LedgerEntry) (model.WalletTransaction, error) {
	if err := e.validate(); err != nil {
		return model.WalletTransaction{}, err
	}
	w, err := wallets.GetOrCreate(ctx, e.UserID)
	if err != nil {
		return model.WalletTransaction{}, fmt.Errorf("get wallet: %w", err)
	}

	//先に追記（外部参照の重複はここで弾く）
	txn, err := wallets.CreateTransaction(ctx, e.transaction(w.ID, model.WalletDirectionCredit))
	if errors.Is(err, repo.ErrDuplicateKey) {
		return model.WalletTransaction{}, ErrDuplicateLedgerEntry
	}
	if err != nil {
		return model.WalletTransaction{}, fmt.Errorf("append credit: %w", err)
	}
	if err := wallets.IncreaseBalance(ctx, w.ID, e.Amount); err != nil {
		return model.WalletTransaction{}, fmt.Errorf("increase balance: %w", err)
	}
	return txn, nil
}

// 残高不足なら何も追記せず ErrInsufficientBalance
func (WalletLedger) Debit(ctx context.Context, wallets repo.WalletRepository, e LedgerEntry) (model.WalletTransaction, error) {
	if err := e.validate(); err != nil {
		return model.WalletTransaction{}, err
	}
	w, err := wallets.GetOrCreate(ctx, e.UserID)
	if err != nil {
		return model.WalletTransaction{}, fmt.Errorf("get wallet: %w", err)
	}

	ok, err := wallets.DecreaseBalanceIfEnough(ctx, w.ID, e.Amount)
	if err != nil {
		return model.WalletTransaction{}, fmt.Errorf("decrease balance: %w", err)
	}
	if !ok {
		return model.WalletTransaction{}, ErrInsufficientBalance
	}

	txn, err := wallets.CreateTransaction(ctx, e.transaction(w.ID, model.WalletDirectionDebit))
	if errors.Is(err, repo.ErrDuplicateKey) {
		return model.WalletTransaction{}, ErrDuplicateLedgerEntry
	}
	if err != nil {
		return model.WalletTransaction{}, fmt.Errorf("append debit: %w", err)
	}
	return txn, nil
}

func (e LedgerEntry) validate() error {
	if e.UserID <= 0 || e.Amount <= 0 || !e.Reason.Valid() {
		return ErrInvalidLedgerEntry
	}
	return nil
}

func (e LedgerEntry) transaction(walletID int64, dir model.WalletDirection) model.WalletTransaction {
	return model.WalletTransaction{
		WalletID:    walletID,
		UserID:      e.UserID,
		Amount:      e.Amount,
		Direction:   dir,
		Reason:      e.Reason,
		OrderID:     e.OrderID,
		Description: e.Description,
		ExternalRef: e.ExternalRef,
	}
}
