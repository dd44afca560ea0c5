// Package memstore は全リポジトリのインメモリ実装。
// WithinTx は直列化され、エラー時は開始時点のスナップショットへ戻す。
package memstore

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

type state struct {
	seq int64

	users        map[int64]model.User
	addresses    map[int64]model.Address
	products     map[int64]model.Product
	offers       map[int64]model.CategoryOffer
	carts        map[int64]model.Cart
	cartItems    map[int64]model.CartItem
	coupons      map[int64]model.Coupon
	couponUsages map[int64]model.CouponUsage
	orders       map[int64]model.Order
	orderItems   map[int64]model.OrderItem
	wallets      map[int64]model.Wallet
	walletTxns   map[int64]model.WalletTransaction
	topUps       map[int64]model.WalletTopUp
	adjustments  map[int64]model.InventoryAdjustment
	auditLogs    map[int64]model.AuditLog
}

func newState() *state {
	return &state{
		users:        map[int64]model.User{},
		addresses:    map[int64]model.Address{},
		products:     map[int64]model.Product{},
		offers:       map[int64]model.CategoryOffer{},
		carts:        map[int64]model.Cart{},
		cartItems:    map[int64]model.CartItem{},
		coupons:      map[int64]model.Coupon{},
		couponUsages: map[int64]model.CouponUsage{},
		orders:       map[int64]model.Order{},
		orderItems:   map[int64]model.OrderItem{},
		wallets:      map[int64]model.Wallet{},
		walletTxns:   map[int64]model.WalletTransaction{},
		topUps:       map[int64]model.WalletTopUp{},
		adjustments:  map[int64]model.InventoryAdjustment{},
		auditLogs:    map[int64]model.AuditLog{},
	}
}

func (s *state) clone() *state {
	return &state{
		seq:          s.seq,
		users:        maps.Clone(s.users),
		addresses:    maps.Clone(s.addresses),
		products:     maps.Clone(s.products),
		offers:       maps.Clone(s.offers),
		carts:        maps.Clone(s.carts),
		cartItems:    maps.Clone(s.cartItems),
		coupons:      maps.Clone(s.coupons),
		couponUsages: maps.Clone(s.couponUsages),
		orders:       maps.Clone(s.orders),
		orderItems:   maps.Clone(s.orderItems),
		wallets:      maps.Clone(s.wallets),
		walletTxns:   maps.Clone(s.walletTxns),
		topUps:       maps.Clone(s.topUps),
		adjustments:  maps.Clone(s.adjustments),
		auditLogs:    maps.Clone(s.auditLogs),
	}
}

func (s *state) nextID() int64 {
	s.seq++
	return s.seq
}

type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

func New() *Store {
	return &Store{st: newState(), now: time.Now}
}

func (s *Store) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(&txRepos{st: s.st, now: s.now}); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

// Tx の外から使うユーザー参照（認可ミドルウェア用）
func (s *Store) UserRepository() repo.UserRepository {
	return &lockedUsers{store: s}
}

type lockedUsers struct {
	store *Store
}

func (l *lockedUsers) FindByID(ctx context.Context, userID int64) (*model.User, error) {
	var u *model.User
	err := l.store.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		u, err = r.Users().FindByID(ctx, userID)
		return err
	})
	return u, err
}

func (l *lockedUsers) FindByReferralCode(ctx context.Context, code string) (*model.User, error) {
	var u *model.User
	err := l.store.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		u, err = r.Users().FindByReferralCode(ctx, code)
		return err
	})
	return u, err
}

func (l *lockedUsers) SetReferredBy(ctx context.Context, userID, referrerID int64) error {
	return l.store.WithinTx(ctx, func(r repo.TxRepos) error {
		return r.Users().SetReferredBy(ctx, userID, referrerID)
	})
}

type txRepos struct {
	st  *state
	now func() time.Time
}

func (r *txRepos) Orders() repo.OrderRepository                 { return &orders{r} }
func (r *txRepos) OrderItems() repo.OrderItemRepository         { return &orderItems{r} }
func (r *txRepos) Carts() repo.CartRepository                   { return &carts{r} }
func (r *txRepos) CartItems() repo.CartItemRepository           { return &cartItems{r} }
func (r *txRepos) Inventory() repo.InventoryRepository          { return &inventory{r} }
func (r *txRepos) Products() repo.ProductRepository             { return &products{r} }
func (r *txRepos) CategoryOffers() repo.CategoryOfferRepository { return &offers{r} }
func (r *txRepos) Coupons() repo.CouponRepository               { return &coupons{r} }
func (r *txRepos) Wallets() repo.WalletRepository               { return &wallets{r} }
func (r *txRepos) Addresses() repo.AddressRepository            { return &addresses{r} }
func (r *txRepos) Users() repo.UserRepository                   { return &users{r} }
func (r *txRepos) AuditLogs() repo.AuditLogRepository           { return &auditLogs{r} }

// ID昇順の値一覧
func sortedValues[V any](m map[int64]V) []V {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]V, 0, len(ids))
	for _, id := range ids {
		out = append(out, m[id])
	}
	return out
}

func paginate[V any](items []V, page, limit int) []V {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	start := (page - 1) * limit
	if start >= len(items) {
		return []V{}
	}
	end := min(start+limit, len(items))
	return items[start:end]
}

func reversed[V any](items []V) []V {
	out := make([]V, len(items))
	for i, v := range items {
		out[len(items)-1-i] = v
	}
	return out
}
