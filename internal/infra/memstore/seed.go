package memstore

import (
	"context"
	"time"

	"storefront/internal/domain/model"
)

// 以下はローカル起動とテスト用の投入・参照ヘルパー

func (s *Store) PutUser(u model.User) model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		u.ID = s.st.nextID()
	}
	if u.Role == "" {
		u.Role = model.RoleUser
	}
	u.IsActive = true
	s.st.users[u.ID] = u
	return u
}

func (s *Store) PutAddress(a model.Address) model.Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = s.st.nextID()
	a.CreatedAt, a.UpdatedAt = s.now(), s.now()
	s.st.addresses[a.ID] = a
	return a
}

func (s *Store) PutProduct(p model.Product) model.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.st.nextID()
	}
	if p.Status == "" {
		p.Status = model.ProductStatusAvailable
	}
	s.st.products[p.ID] = p
	return p
}

func (s *Store) PutCategoryOffer(o model.CategoryOffer) model.CategoryOffer {
	s.mu.Lock()
	defer s.mu.Unlock()
	o.ID = s.st.nextID()
	s.st.offers[o.ID] = o
	return o
}

func (s *Store) PutCoupon(c model.Coupon) model.Coupon {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.st.nextID()
	s.st.coupons[c.ID] = c
	return c
}

// ACTIVE カートに明細を足す（上限なし）
func (s *Store) PutCartItem(userID, productID, qty int64) model.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := &txRepos{st: s.st, now: s.now}
	cart, _ := (&carts{r}).GetOrCreateActiveByUserID(context.Background(), userID)
	it := model.CartItem{ID: s.st.nextID(), CartID: cart.ID, ProductID: productID, Quantity: qty}
	s.st.cartItems[it.ID] = it
	return it
}

// 残高と同額の貸方取引を作って整合を保つ
func (s *Store) PutWalletBalance(userID, balance int64) model.Wallet {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := &txRepos{st: s.st, now: s.now}
	w, _ := (&wallets{r}).GetOrCreate(context.Background(), userID)
	if balance > 0 {
		w.Balance += balance
		s.st.wallets[w.ID] = w
		id := s.st.nextID()
		s.st.walletTxns[id] = model.WalletTransaction{
			ID: id, WalletID: w.ID, UserID: userID, Amount: balance,
			Direction: model.WalletDirectionCredit, Reason: model.WalletReasonAdminAdjustment,
			Description: "opening balance", CreatedAt: s.now(),
		}
	}
	return w
}

func (s *Store) UpdateProduct(id int64, fn func(p *model.Product)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.st.products[id]
	fn(&p)
	s.st.products[id] = p
}

func (s *Store) Product(id int64) model.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.products[id]
}

func (s *Store) Order(id int64) model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.st.orders[id]
	for _, it := range sortedValues(s.st.orderItems) {
		if it.OrderID == id {
			o.Items = append(o.Items, it)
		}
	}
	return o
}

func (s *Store) Orders() []model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedValues(s.st.orders)
}

func (s *Store) CartItems(userID int64) []model.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.CartItem
	for _, it := range sortedValues(s.st.cartItems) {
		if c, ok := s.st.carts[it.CartID]; ok && c.UserID == userID && c.Status == model.CartStatusActive {
			out = append(out, it)
		}
	}
	return out
}

func (s *Store) Wallet(userID int64) model.Wallet {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.st.wallets {
		if w.UserID == userID {
			return w
		}
	}
	return model.Wallet{}
}

func (s *Store) WalletTransactions(userID int64) []model.WalletTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.WalletTransaction
	for _, t := range sortedValues(s.st.walletTxns) {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out
}

func (s *Store) CouponUsages() []model.CouponUsage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedValues(s.st.couponUsages)
}

func (s *Store) AuditLogs() []model.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedValues(s.st.auditLogs)
}

// 時刻を固定する（テスト用）
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// ローカル起動用の最小データ
func SeedDemo(s *Store) {
	s.PutUser(model.User{Email: "admin@example.com", Role: model.RoleAdmin, ReferralCode: "ADMIN"})
	user := s.PutUser(model.User{Email: "user@example.com", ReferralCode: "WELCOME"})
	s.PutAddress(model.Address{
		UserID: user.ID, Name: "Demo User", PostalCode: "560001", State: "KA",
		City: "Bengaluru", Line1: "1 MG Road", IsDefault: true,
	})
	s.PutProduct(model.Product{CategoryID: 1, Name: "Linen Shirt", Price: 1000, DiscountPercent: 10, Stock: 20})
	s.PutProduct(model.Product{CategoryID: 2, Name: "Canvas Sneakers", Price: 2500, Stock: 5})
	s.PutCategoryOffer(model.CategoryOffer{
		CategoryID: 2, DiscountPercent: 15, IsActive: true,
		StartsAt: s.now().Add(-time.Hour), EndsAt: s.now().Add(30 * 24 * time.Hour),
	})
	s.PutCoupon(model.Coupon{
		Code: "SAVE10", Kind: model.CouponKindPercentage, Value: 10, MinPurchase: 1000,
		MaxDiscount: 150, IsActive: true, ExpiresAt: s.now().Add(30 * 24 * time.Hour),
	})
}
