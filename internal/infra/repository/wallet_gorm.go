package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

type WalletGormRepository struct {
	db *gorm.DB
}

func NewWalletGormRepository(db *gorm.DB) *WalletGormRepository {
	return &WalletGormRepository{db: db}
}

// 同時作成は user_id の一意制約で吸収する
func (r *WalletGormRepository) GetOrCreate(ctx context.Context, userID int64) (model.Wallet, error) {
	w := model.Wallet{UserID: userID}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&w).Error; err != nil {
		return model.Wallet{}, err
	}

	var got model.Wallet
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&got).Error; err != nil {
		return model.Wallet{}, translate(err)
	}
	return got, nil
}

func (r *WalletGormRepository) IncreaseBalance(ctx context.Context, walletID int64, amount int64) error {
	res := r.db.WithContext(ctx).
		Model(&model.Wallet{}).
		Where("id = ?", walletID).
		Update("balance", gorm.Expr("balance + ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 残高が足りるときだけ減らす
func (r *WalletGormRepository) DecreaseBalanceIfEnough(ctx context.Context, walletID int64, amount int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Wallet{}).
		Where("id = ? AND balance >= ?", walletID, amount).
		Update("balance", gorm.Expr("balance - ?", amount))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *WalletGormRepository) CreateTransaction(ctx context.Context, txn model.WalletTransaction) (model.WalletTransaction, error) {
	if err := r.db.WithContext(ctx).Create(&txn).Error; err != nil {
		return model.WalletTransaction{}, translate(err)
	}
	return txn, nil
}

// 注文IDの後付けのみ許す（未設定の行だけ）
func (r *WalletGormRepository) LinkTransactionOrder(ctx context.Context, transactionID, orderID int64) error {
	res := r.db.WithContext(ctx).
		Model(&model.WalletTransaction{}).
		Where("id = ? AND order_id IS NULL", transactionID).
		Update("order_id", orderID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *WalletGormRepository) ListTransactions(ctx context.Context, userID int64, page, limit int) ([]model.WalletTransaction, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.WalletTransaction{}).Where("user_id = ?", userID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return []model.WalletTransaction{}, 0, err
	}

	offset, limit := pageOffset(page, limit)
	var txns []model.WalletTransaction
	if err := q.Order("id desc").Limit(limit).Offset(offset).Find(&txns).Error; err != nil {
		return []model.WalletTransaction{}, 0, err
	}
	return txns, total, nil
}

func (r *WalletGormRepository) CreateTopUp(ctx context.Context, topUp model.WalletTopUp) (model.WalletTopUp, error) {
	if err := r.db.WithContext(ctx).Create(&topUp).Error; err != nil {
		return model.WalletTopUp{}, translate(err)
	}
	return topUp, nil
}

func (r *WalletGormRepository) FindTopUpByGatewayOrderIDForUpdate(ctx context.Context, gatewayOrderID string) (model.WalletTopUp, error) {
	var t model.WalletTopUp
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("gateway_order_id = ?", gatewayOrderID).
		First(&t).Error
	if err != nil {
		return model.WalletTopUp{}, translate(err)
	}
	return t, nil
}

func (r *WalletGormRepository) MarkTopUpCredited(ctx context.Context, topUpID int64) error {
	res := r.db.WithContext(ctx).
		Model(&model.WalletTopUp{}).
		Where("id = ? AND status = ?", topUpID, model.WalletTopUpStatusPending).
		Update("status", model.WalletTopUpStatusCredited)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}
