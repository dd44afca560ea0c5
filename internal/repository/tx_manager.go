package repository

import "context"

// トランザクション内で使う約束
type TxRepos interface {
	Orders() OrderRepository
	OrderItems() OrderItemRepository
	Carts() CartRepository
	CartItems() CartItemRepository
	Inventory() InventoryRepository
	Products() ProductRepository
	CategoryOffers() CategoryOfferRepository
	Coupons() CouponRepository
	Wallets() WalletRepository
	Addresses() AddressRepository
	Users() UserRepository
	AuditLogs() AuditLogRepository
}

// UsecaseからTxの開始/commit/rollbackを隠す。
// fn がエラーを返したら全てロールバックされる
type TransactionManager interface {
	WithinTx(ctx context.Context, fn func(r TxRepos) error) error
}
