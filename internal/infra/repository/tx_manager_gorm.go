package repository

import (
	"context"

	"gorm.io/gorm"

	repo "storefront/internal/repository"
)

type txReposGorm struct {
	db *gorm.DB
}

func (r *txReposGorm) Orders() repo.OrderRepository         { return NewOrderGormRepository(r.db) }
func (r *txReposGorm) OrderItems() repo.OrderItemRepository { return NewOrderItemGormRepository(r.db) }
func (r *txReposGorm) Carts() repo.CartRepository           { return NewCartGormRepository(r.db) }
func (r *txReposGorm) CartItems() repo.CartItemRepository   { return NewCartGormRepository(r.db) }
func (r *txReposGorm) Inventory() repo.InventoryRepository  { return NewInventoryGormRepository(r.db) }
func (r *txReposGorm) Products() repo.ProductRepository     { return NewProductGormRepository(r.db) }
func (r *txReposGorm) Coupons() repo.CouponRepository       { return NewCouponGormRepository(r.db) }
func (r *txReposGorm) Wallets() repo.WalletRepository       { return NewWalletGormRepository(r.db) }
func (r *txReposGorm) Addresses() repo.AddressRepository    { return NewAddressGormRepository(r.db) }
func (r *txReposGorm) Users() repo.UserRepository           { return NewUserGormRepository(r.db) }
func (r *txReposGorm) AuditLogs() repo.AuditLogRepository   { return NewAuditLogGormRepository(r.db) }

func (r *txReposGorm) CategoryOffers() repo.CategoryOfferRepository {
	return NewCategoryOfferGormRepository(r.db)
}

type TxManagerGorm struct {
	db     *gorm.DB
	offers func(repo.CategoryOfferRepository) repo.CategoryOfferRepository
}

type TxManagerOption func(*TxManagerGorm)

// カテゴリセールの参照をキャッシュなどで包む
func WithCategoryOfferDecorator(wrap func(repo.CategoryOfferRepository) repo.CategoryOfferRepository) TxManagerOption {
	return func(tm *TxManagerGorm) { tm.offers = wrap }
}

func NewTxManagerGorm(db *gorm.DB, opts ...TxManagerOption) *TxManagerGorm {
	tm := &TxManagerGorm{db: db}
	for _, opt := range opts {
		opt(tm)
	}
	return tm
}

func (tm *TxManagerGorm) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	return tm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		//repoはtxを持ったDBで作り直す
		var r repo.TxRepos = &txReposGorm{db: tx}
		if tm.offers != nil {
			r = &decoratedTxRepos{TxRepos: r, offers: tm.offers(r.CategoryOffers())}
		}
		return fn(r)
	})
}

type decoratedTxRepos struct {
	repo.TxRepos
	offers repo.CategoryOfferRepository
}

func (r *decoratedTxRepos) CategoryOffers() repo.CategoryOfferRepository { return r.offers }
