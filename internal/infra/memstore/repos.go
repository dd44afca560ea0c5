package memstore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

// ---- orders ----

type orders struct{ *txRepos }

func (r *orders) FindByID(_ context.Context, orderID int64) (model.Order, error) {
	o, ok := r.st.orders[orderID]
	if !ok {
		return model.Order{}, repo.ErrNotFound
	}
	return o, nil
}

// Tx 全体が直列なのでロックは不要
func (r *orders) FindByIDForUpdate(ctx context.Context, orderID int64) (model.Order, error) {
	return r.FindByID(ctx, orderID)
}

func (r *orders) ListByUserID(_ context.Context, userID int64, page int, limit int) ([]model.Order, int64, error) {
	var mine []model.Order
	for _, o := range reversed(sortedValues(r.st.orders)) {
		if o.UserID == userID {
			mine = append(mine, o)
		}
	}
	return paginate(mine, page, limit), int64(len(mine)), nil
}

func (r *orders) Create(_ context.Context, order model.Order) (int64, error) {
	for _, o := range r.st.orders {
		if o.Code == order.Code {
			return 0, repo.ErrDuplicateKey
		}
		if order.IdempotencyKey != nil && o.IdempotencyKey != nil && *o.IdempotencyKey == *order.IdempotencyKey {
			return 0, repo.ErrDuplicateKey
		}
	}
	now := r.now()
	order.ID = r.st.nextID()
	order.Items = nil
	order.CreatedAt, order.UpdatedAt = now, now
	r.st.orders[order.ID] = order
	return order.ID, nil
}

func (r *orders) UpdateState(_ context.Context, order model.Order) error {
	cur, ok := r.st.orders[order.ID]
	if !ok {
		return repo.ErrNotFound
	}
	cur.Status = order.Status
	cur.PaymentStatus = order.PaymentStatus
	cur.StockCommitted = order.StockCommitted
	cur.SubtotalAmount = order.SubtotalAmount
	cur.CouponDiscountAmount = order.CouponDiscountAmount
	cur.TotalAmount = order.TotalAmount
	cur.GatewayPaymentID = order.GatewayPaymentID
	cur.CancelReason = order.CancelReason
	cur.DeliveredAt = order.DeliveredAt
	cur.UpdatedAt = r.now()
	r.st.orders[order.ID] = cur
	return nil
}

func (r *orders) SetGatewayOrderID(_ context.Context, orderID int64, gatewayOrderID string) error {
	cur, ok := r.st.orders[orderID]
	if !ok {
		return repo.ErrNotFound
	}
	cur.GatewayOrderID = gatewayOrderID
	r.st.orders[orderID] = cur
	return nil
}

func (r *orders) FindByIdempotencyKey(_ context.Context, userID int64, key string) (model.Order, bool, error) {
	for _, o := range r.st.orders {
		if o.UserID == userID && o.IdempotencyKey != nil && *o.IdempotencyKey == key {
			return o, true, nil
		}
	}
	return model.Order{}, false, nil
}

func (r *orders) ListAdmin(_ context.Context, f repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	var out []model.Order
	for _, o := range reversed(sortedValues(r.st.orders)) {
		if f.Status != "" && string(o.Status) != f.Status {
			continue
		}
		if f.UserID != nil && o.UserID != *f.UserID {
			continue
		}
		if f.From != nil && o.OrderedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && o.OrderedAt.After(*f.To) {
			continue
		}
		out = append(out, o)
	}
	return paginate(out, f.Page, f.Limit), int64(len(out)), nil
}

// ---- order items ----

type orderItems struct{ *txRepos }

func (r *orderItems) CreateBulk(_ context.Context, orderID int64, items []model.OrderItem) ([]model.OrderItem, error) {
	now := r.now()
	created := make([]model.OrderItem, 0, len(items))
	for _, it := range items {
		it.ID = r.st.nextID()
		it.OrderID = orderID
		it.CreatedAt, it.UpdatedAt = now, now
		r.st.orderItems[it.ID] = it
		created = append(created, it)
	}
	return created, nil
}

func (r *orderItems) ListByOrderID(_ context.Context, orderID int64) ([]model.OrderItem, error) {
	out := []model.OrderItem{}
	for _, it := range sortedValues(r.st.orderItems) {
		if it.OrderID == orderID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (r *orderItems) ListByOrderIDs(ctx context.Context, orderIDs []int64) (map[int64][]model.OrderItem, error) {
	out := make(map[int64][]model.OrderItem, len(orderIDs))
	for _, id := range orderIDs {
		items, _ := r.ListByOrderID(ctx, id)
		if len(items) > 0 {
			out[id] = items
		}
	}
	return out, nil
}

func (r *orderItems) UpdateState(_ context.Context, item model.OrderItem) error {
	cur, ok := r.st.orderItems[item.ID]
	if !ok {
		return repo.ErrNotFound
	}
	cur.Status = item.Status
	cur.CancelReason = item.CancelReason
	cur.ReturnReason = item.ReturnReason
	cur.ReturnRequestedAt = item.ReturnRequestedAt
	cur.ReturnApprovedAt = item.ReturnApprovedAt
	cur.UpdatedAt = r.now()
	r.st.orderItems[item.ID] = cur
	return nil
}

func (r *orderItems) ListReturnRequested(_ context.Context, f repo.ReturnRequestFilter) ([]model.OrderItem, int64, error) {
	var out []model.OrderItem
	for _, it := range sortedValues(r.st.orderItems) {
		if it.Status == model.OrderItemStatusReturnRequested {
			out = append(out, it)
		}
	}
	return paginate(out, f.Page, f.Limit), int64(len(out)), nil
}

// ---- carts ----

type carts struct{ *txRepos }

func (r *carts) GetOrCreateActiveByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	if c, err := r.FindActiveByUserID(ctx, userID); err == nil {
		return c, nil
	}
	now := r.now()
	c := model.Cart{ID: r.st.nextID(), UserID: userID, Status: model.CartStatusActive, CreatedAt: now, UpdatedAt: now}
	r.st.carts[c.ID] = c
	return c, nil
}

func (r *carts) FindActiveByUserID(_ context.Context, userID int64) (model.Cart, error) {
	for _, c := range reversed(sortedValues(r.st.carts)) {
		if c.UserID == userID && c.Status == model.CartStatusActive {
			return c, nil
		}
	}
	return model.Cart{}, repo.ErrNotFound
}

func (r *carts) Clear(_ context.Context, cartID int64) error {
	for id, it := range r.st.cartItems {
		if it.CartID == cartID {
			delete(r.st.cartItems, id)
		}
	}
	return nil
}

type cartItems struct{ *txRepos }

func (r *cartItems) ListByCartID(_ context.Context, cartID int64) ([]model.CartItem, error) {
	out := []model.CartItem{}
	for _, it := range sortedValues(r.st.cartItems) {
		if it.CartID == cartID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (r *cartItems) UpsertByCartAndProduct(_ context.Context, cartID, productID, addQty, maxQty int64) error {
	if addQty <= 0 {
		return errors.New("invalid quantity")
	}
	now := r.now()
	for id, it := range r.st.cartItems {
		if it.CartID == cartID && it.ProductID == productID {
			it.Quantity = min(it.Quantity+addQty, maxQty)
			it.UpdatedAt = now
			r.st.cartItems[id] = it
			return nil
		}
	}
	it := model.CartItem{
		ID:        r.st.nextID(),
		CartID:    cartID,
		ProductID: productID,
		Quantity:  min(addQty, maxQty),
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.st.cartItems[it.ID] = it
	return nil
}

func (r *cartItems) UpdateQuantity(_ context.Context, cartItemID int64, qty int64) error {
	it, ok := r.st.cartItems[cartItemID]
	if !ok {
		return repo.ErrNotFound
	}
	it.Quantity = qty
	it.UpdatedAt = r.now()
	r.st.cartItems[cartItemID] = it
	return nil
}

func (r *cartItems) DeleteByID(_ context.Context, cartItemID int64) error {
	if _, ok := r.st.cartItems[cartItemID]; !ok {
		return repo.ErrNotFound
	}
	delete(r.st.cartItems, cartItemID)
	return nil
}

func (r *cartItems) FindByID(_ context.Context, cartItemID int64) (model.CartItem, error) {
	it, ok := r.st.cartItems[cartItemID]
	if !ok {
		return model.CartItem{}, repo.ErrNotFound
	}
	return it, nil
}

func (r *cartItems) IsOwnedByUser(_ context.Context, cartItemID int64, userID int64) (bool, error) {
	it, ok := r.st.cartItems[cartItemID]
	if !ok {
		return false, nil
	}
	c, ok := r.st.carts[it.CartID]
	return ok && c.UserID == userID && c.Status == model.CartStatusActive, nil
}

// ---- products / inventory / offers ----

type products struct{ *txRepos }

func (r *products) ListPublic(_ context.Context, q repo.ProductListQuery) ([]model.Product, int64, error) {
	var out []model.Product
	needle := strings.ToLower(strings.TrimSpace(q.Q))
	for _, p := range sortedValues(r.st.products) {
		if p.DeletedAt.Valid || p.Status == model.ProductStatusDiscontinued {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(p.Name), needle) {
			continue
		}
		if q.CategoryID != nil && p.CategoryID != *q.CategoryID {
			continue
		}
		out = append(out, p)
	}
	switch q.Sort {
	case "price_asc":
		sort.SliceStable(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	case "price_desc":
		sort.SliceStable(out, func(i, j int) bool { return out[i].Price > out[j].Price })
	default:
		out = reversed(out)
	}
	return paginate(out, q.Page, q.Limit), int64(len(out)), nil
}

func (r *products) FindByID(_ context.Context, id int64) (model.Product, error) {
	p, ok := r.st.products[id]
	if !ok || p.DeletedAt.Valid {
		return model.Product{}, repo.ErrNotFound
	}
	return p, nil
}

func (r *products) FindByIDs(ctx context.Context, ids []int64) (map[int64]model.Product, error) {
	out := make(map[int64]model.Product, len(ids))
	for _, id := range ids {
		if p, err := r.FindByID(ctx, id); err == nil {
			out[id] = p
		}
	}
	return out, nil
}

type inventory struct{ *txRepos }

func (r *inventory) DecreaseStockIfEnough(_ context.Context, productID int64, qty int64) (bool, error) {
	p, ok := r.st.products[productID]
	if !ok || p.DeletedAt.Valid || p.Stock < qty {
		return false, nil
	}
	p.Stock -= qty
	p.UpdatedAt = r.now()
	r.st.products[productID] = p
	return true, nil
}

func (r *inventory) IncreaseStock(_ context.Context, productID int64, qty int64) error {
	p, ok := r.st.products[productID]
	if !ok {
		return repo.ErrNotFound
	}
	p.Stock += qty
	p.UpdatedAt = r.now()
	r.st.products[productID] = p
	return nil
}

func (r *inventory) CreateAdjustment(_ context.Context, adj model.InventoryAdjustment) error {
	adj.ID = r.st.nextID()
	adj.CreatedAt = r.now()
	r.st.adjustments[adj.ID] = adj
	return nil
}

func (r *inventory) ListAdjustments(_ context.Context, productID int64) ([]model.InventoryAdjustment, error) {
	var out []model.InventoryAdjustment
	for _, a := range sortedValues(r.st.adjustments) {
		if a.ProductID == productID {
			out = append(out, a)
		}
	}
	return out, nil
}

type offers struct{ *txRepos }

func (r *offers) ActiveDiscounts(_ context.Context, now time.Time) (map[int64]int64, error) {
	out := map[int64]int64{}
	for _, o := range r.st.offers {
		if o.ActiveAt(now) && o.DiscountPercent > out[o.CategoryID] {
			out[o.CategoryID] = o.DiscountPercent
		}
	}
	return out, nil
}

// ---- coupons ----

type coupons struct{ *txRepos }

func (r *coupons) FindByCode(_ context.Context, code string) (model.Coupon, error) {
	for _, c := range r.st.coupons {
		if c.Code == code {
			return c, nil
		}
	}
	return model.Coupon{}, repo.ErrNotFound
}

func (r *coupons) FindByID(_ context.Context, id int64) (model.Coupon, error) {
	c, ok := r.st.coupons[id]
	if !ok {
		return model.Coupon{}, repo.ErrNotFound
	}
	return c, nil
}

func (r *coupons) ListUsable(_ context.Context, now time.Time) ([]model.Coupon, error) {
	var out []model.Coupon
	for _, c := range sortedValues(r.st.coupons) {
		if c.UsableAt(now) {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].MinPurchase < out[j].MinPurchase })
	return out, nil
}

func (r *coupons) HasUsed(_ context.Context, couponID, userID int64) (bool, error) {
	for _, u := range r.st.couponUsages {
		if u.CouponID == couponID && u.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (r *coupons) UsedCouponIDs(_ context.Context, userID int64) (map[int64]bool, error) {
	out := map[int64]bool{}
	for _, u := range r.st.couponUsages {
		if u.UserID == userID {
			out[u.CouponID] = true
		}
	}
	return out, nil
}

func (r *coupons) MarkUsed(ctx context.Context, usage model.CouponUsage) (bool, error) {
	if used, _ := r.HasUsed(ctx, usage.CouponID, usage.UserID); used {
		return false, nil
	}
	usage.ID = r.st.nextID()
	usage.CreatedAt = r.now()
	r.st.couponUsages[usage.ID] = usage
	return true, nil
}

// ---- wallets ----

type wallets struct{ *txRepos }

func (r *wallets) GetOrCreate(_ context.Context, userID int64) (model.Wallet, error) {
	for _, w := range r.st.wallets {
		if w.UserID == userID {
			return w, nil
		}
	}
	now := r.now()
	w := model.Wallet{ID: r.st.nextID(), UserID: userID, CreatedAt: now, UpdatedAt: now}
	r.st.wallets[w.ID] = w
	return w, nil
}

func (r *wallets) IncreaseBalance(_ context.Context, walletID int64, amount int64) error {
	w, ok := r.st.wallets[walletID]
	if !ok {
		return repo.ErrNotFound
	}
	w.Balance += amount
	w.UpdatedAt = r.now()
	r.st.wallets[walletID] = w
	return nil
}

func (r *wallets) DecreaseBalanceIfEnough(_ context.Context, walletID int64, amount int64) (bool, error) {
	w, ok := r.st.wallets[walletID]
	if !ok || w.Balance < amount {
		return false, nil
	}
	w.Balance -= amount
	w.UpdatedAt = r.now()
	r.st.wallets[walletID] = w
	return true, nil
}

func (r *wallets) CreateTransaction(_ context.Context, txn model.WalletTransaction) (model.WalletTransaction, error) {
	if txn.ExternalRef != nil {
		for _, t := range r.st.walletTxns {
			if t.ExternalRef != nil && *t.ExternalRef == *txn.ExternalRef {
				return model.WalletTransaction{}, repo.ErrDuplicateKey
			}
		}
	}
	txn.ID = r.st.nextID()
	txn.CreatedAt = r.now()
	r.st.walletTxns[txn.ID] = txn
	return txn, nil
}

func (r *wallets) LinkTransactionOrder(_ context.Context, transactionID, orderID int64) error {
	t, ok := r.st.walletTxns[transactionID]
	if !ok || t.OrderID != nil {
		return repo.ErrNotFound
	}
	t.OrderID = &orderID
	r.st.walletTxns[transactionID] = t
	return nil
}

func (r *wallets) ListTransactions(_ context.Context, userID int64, page, limit int) ([]model.WalletTransaction, int64, error) {
	var out []model.WalletTransaction
	for _, t := range reversed(sortedValues(r.st.walletTxns)) {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return paginate(out, page, limit), int64(len(out)), nil
}

func (r *wallets) CreateTopUp(_ context.Context, topUp model.WalletTopUp) (model.WalletTopUp, error) {
	for _, t := range r.st.topUps {
		if t.GatewayOrderID == topUp.GatewayOrderID {
			return model.WalletTopUp{}, repo.ErrDuplicateKey
		}
	}
	now := r.now()
	topUp.ID = r.st.nextID()
	topUp.CreatedAt, topUp.UpdatedAt = now, now
	r.st.topUps[topUp.ID] = topUp
	return topUp, nil
}

func (r *wallets) FindTopUpByGatewayOrderIDForUpdate(_ context.Context, gatewayOrderID string) (model.WalletTopUp, error) {
	for _, t := range r.st.topUps {
		if t.GatewayOrderID == gatewayOrderID {
			return t, nil
		}
	}
	return model.WalletTopUp{}, repo.ErrNotFound
}

func (r *wallets) MarkTopUpCredited(_ context.Context, topUpID int64) error {
	t, ok := r.st.topUps[topUpID]
	if !ok || t.Status != model.WalletTopUpStatusPending {
		return repo.ErrNotFound
	}
	t.Status = model.WalletTopUpStatusCredited
	t.UpdatedAt = r.now()
	r.st.topUps[topUpID] = t
	return nil
}

// ---- addresses / users / audit ----

type addresses struct{ *txRepos }

func (r *addresses) FindByID(_ context.Context, addressID int64) (model.Address, error) {
	a, ok := r.st.addresses[addressID]
	if !ok {
		return model.Address{}, repo.ErrNotFound
	}
	return a, nil
}

func (r *addresses) ListByUserID(_ context.Context, userID int64) ([]model.Address, error) {
	var defaults, rest []model.Address
	for _, a := range reversed(sortedValues(r.st.addresses)) {
		switch {
		case a.UserID != userID:
		case a.IsDefault:
			defaults = append(defaults, a)
		default:
			rest = append(rest, a)
		}
	}
	return append(defaults, rest...), nil
}

type users struct{ *txRepos }

func (r *users) FindByID(_ context.Context, userID int64) (*model.User, error) {
	u, ok := r.st.users[userID]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &u, nil
}

func (r *users) FindByReferralCode(_ context.Context, code string) (*model.User, error) {
	for _, u := range r.st.users {
		if u.ReferralCode != "" && u.ReferralCode == code {
			return &u, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (r *users) SetReferredBy(_ context.Context, userID, referrerID int64) error {
	u, ok := r.st.users[userID]
	if !ok {
		return repo.ErrNotFound
	}
	if u.ReferredByUserID != nil {
		return repo.ErrDuplicateKey
	}
	u.ReferredByUserID = &referrerID
	r.st.users[userID] = u
	return nil
}

type auditLogs struct{ *txRepos }

func (r *auditLogs) Create(_ context.Context, log model.AuditLog) error {
	log.ID = r.st.nextID()
	if log.CreatedAt.IsZero() {
		log.CreatedAt = r.now()
	}
	r.st.auditLogs[log.ID] = log
	return nil
}
