package repository

import (
	"context"

	"storefront/internal/domain/model"
)

type WalletRepository interface {
	// 無ければ残高0で作る
	GetOrCreate(ctx context.Context, userID int64) (model.Wallet, error)

	// balance += amount
	IncreaseBalance(ctx context.Context, walletID int64, amount int64) error
	// balance >= amount のときだけ balance -= amount
	DecreaseBalanceIfEnough(ctx context.Context, walletID int64, amount int64) (bool, error)

	CreateTransaction(ctx context.Context, txn model.WalletTransaction) (model.WalletTransaction, error)
	LinkTransactionOrder(ctx context.Context, transactionID, orderID int64) error
	ListTransactions(ctx context.Context, userID int64, page, limit int) ([]model.WalletTransaction, int64, error)

	CreateTopUp(ctx context.Context, topUp model.WalletTopUp) (model.WalletTopUp, error)
	FindTopUpByGatewayOrderIDForUpdate(ctx context.Context, gatewayOrderID string) (model.WalletTopUp, error)
	MarkTopUpCredited(ctx context.Context, topUpID int64) error
}
