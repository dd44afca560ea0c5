package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain/model"
	"storefront/internal/infra/events"
	"storefront/internal/payment"
)

func TestPlaceOrder_COD(t *testing.T) {
	f := newFixture(t)
	p := f.product("Linen Shirt", 1000, 10, 10)
	f.store.PutCartItem(f.user.ID, p.ID, 2)

	out := f.place(t, model.PaymentMethodCOD, "")

	assert.Equal(t, "CONFIRMED", out.Order.Status)
	assert.Equal(t, "PENDING", out.Order.PaymentStatus)
	assert.Equal(t, int64(1800), out.Order.SubtotalAmount)
	assert.Equal(t, int64(0), out.Order.CouponDiscountAmount)
	assert.Equal(t, int64(1800), out.Order.TotalAmount)
	assert.Nil(t, out.Order.Coupon)
	assert.Nil(t, out.Payment)
	require.Len(t, out.Order.Items, 1)
	assert.Equal(t, int64(1000), out.Order.Items[0].ListPrice)
	assert.Equal(t, int64(900), out.Order.Items[0].FinalPrice)
	assert.Equal(t, "product", out.Order.Items[0].DiscountSource)
	assert.Equal(t, "1 MG Road", out.Order.ShippingAddress.Line1)

	assert.Equal(t, int64(8), f.store.Product(p.ID).Stock)
	assert.Empty(t, f.store.CartItems(f.user.ID))
	assert.Equal(t, []string{events.OrderPlaced}, f.publisher.types())
	assertInventoryConserved(t, f.store, map[int64]int64{p.ID: 10})
}

func TestPlaceOrder_COD_WithCoupon(t *testing.T) {
	f := newFixture(t)
	p := f.product("Linen Shirt", 1000, 10, 10)
	c := f.save10()
	f.store.PutCartItem(f.user.ID, p.ID, 2)

	out := f.place(t, model.PaymentMethodCOD, " save10 ")

	assert.Equal(t, int64(1800), out.Order.SubtotalAmount)
	assert.Equal(t, int64(150), out.Order.CouponDiscountAmount)
	assert.Equal(t, int64(1650), out.Order.TotalAmount)
	require.NotNil(t, out.Order.Coupon)
	assert.Equal(t, "SAVE10", out.Order.Coupon.Code)
	assert.Equal(t, int64(1000), out.Order.Coupon.MinPurchase)

	usages := f.store.CouponUsages()
	require.Len(t, usages, 1)
	assert.Equal(t, c.ID, usages[0].CouponID)
	assert.Equal(t, out.Order.ID, usages[0].OrderID)

	// 同じクーポンは二度使えない
	f.store.PutCartItem(f.user.ID, p.ID, 2)
	_, err := f.checkout.PlaceOrder(context.Background(), f.user.ID, PlaceOrderInput{
		AddressID: f.address.ID, PaymentMethod: "COD", CouponCode: "SAVE10",
	})
	requireCode(t, err, CodeCouponAlreadyUsed)
	assert.Len(t, f.store.CouponUsages(), 1)
	assert.Equal(t, int64(8), f.store.Product(p.ID).Stock)
}

func TestPlaceOrder_Wallet(t *testing.T) {
	f := newFixture(t)
	p := f.product("Linen Shirt", 1000, 10, 10)
	f.store.PutWalletBalance(f.user.ID, 2000)
	f.store.PutCartItem(f.user.ID, p.ID, 2)

	out := f.place(t, model.PaymentMethodWallet, "")

	assert.Equal(t, "CONFIRMED", out.Order.Status)
	assert.Equal(t, "PAID", out.Order.PaymentStatus)
	assert.Equal(t, int64(200), f.store.Wallet(f.user.ID).Balance)
	assertWalletConsistent(t, f.store, f.user.ID)

	txns := f.store.WalletTransactions(f.user.ID)
	require.Len(t, txns, 2)
	debit := txns[1]
	assert.Equal(t, model.WalletDirectionDebit, debit.Direction)
	assert.Equal(t, model.WalletReasonOrderPayment, debit.Reason)
	require.NotNil(t, debit.OrderID)
	assert.Equal(t, out.Order.ID, *debit.OrderID)

	assert.Equal(t, []string{events.OrderPlaced, events.OrderPaid}, f.publisher.types())
}

func TestPlaceOrder_WalletInsufficientBalance(t *testing.T) {
	f := newFixture(t)
	p := f.product("Desk Lamp", 700, 0, 3)
	f.store.PutWalletBalance(f.user.ID, 500)
	f.store.PutCartItem(f.user.ID, p.ID, 1)

	_, err := f.checkout.PlaceOrder(context.Background(), f.user.ID, PlaceOrderInput{
		AddressID: f.address.ID, PaymentMethod: "wallet",
	})

	he := requireCode(t, err, CodeInsufficientWallet)
	assert.Equal(t, 422, he.Status)
	assert.Equal(t, int64(500), he.Details["balance"])
	assert.Equal(t, int64(700), he.Details["required"])

	assert.Empty(t, f.store.Orders())
	assert.Equal(t, int64(3), f.store.Product(p.ID).Stock)
	assert.Equal(t, int64(500), f.store.Wallet(f.user.ID).Balance)
	assert.Len(t, f.store.WalletTransactions(f.user.ID), 1)
	assert.Len(t, f.store.CartItems(f.user.ID), 1)
	assert.Empty(t, f.publisher.types())
}

func TestPlaceOrder_ZeroTotal(t *testing.T) {
	t.Run("ウォレット払いは引き落としなしで支払済み", func(t *testing.T) {
		f := newFixture(t)
		p := f.product("Freebie", 1000, 100, 10)
		f.store.PutCartItem(f.user.ID, p.ID, 1)

		out := f.place(t, model.PaymentMethodWallet, "")

		assert.Equal(t, int64(0), out.Order.TotalAmount)
		assert.Equal(t, "CONFIRMED", out.Order.Status)
		assert.Equal(t, "PAID", out.Order.PaymentStatus)
		assert.Equal(t, int64(9), f.store.Product(p.ID).Stock)
		assert.Empty(t, f.store.WalletTransactions(f.user.ID))
		assert.Empty(t, f.store.CartItems(f.user.ID))
		assertWalletConsistent(t, f.store, f.user.ID)
	})

	t.Run("ゲートウェイ払いは受け付けない", func(t *testing.T) {
		gw := &gatewayMock{}
		f := newFixtureWithGateway(t, gw)
		p := f.product("Freebie", 1000, 100, 10)
		f.store.PutCartItem(f.user.ID, p.ID, 1)

		_, err := f.checkout.PlaceOrder(context.Background(), f.user.ID, PlaceOrderInput{
			AddressID: f.address.ID, PaymentMethod: "GATEWAY",
		})

		he := requireCode(t, err, CodeValidation)
		assert.Equal(t, 422, he.Status)
		assert.Empty(t, f.store.Orders())
		assert.Equal(t, int64(10), f.store.Product(p.ID).Stock)
		gw.AssertNotCalled(t, "CreateIntent", mock.Anything, mock.Anything)
	})
}

func TestPlaceOrder_ConcurrentLastUnit(t *testing.T) {
	f := newFixture(t)
	p := f.product("Last One", 500, 0, 1)
	other := f.store.PutUser(model.User{Email: "other@example.com"})
	otherAddr := f.addressFor(other.ID)
	f.store.PutCartItem(f.user.ID, p.ID, 1)
	f.store.PutCartItem(other.ID, p.ID, 1)

	buyers := []struct {
		userID, addressID int64
	}{
		{f.user.ID, f.address.ID},
		{other.ID, otherAddr.ID},
	}

	var (
		wg   sync.WaitGroup
		errs = make([]error, len(buyers))
	)
	for i, b := range buyers {
		wg.Add(1)
		go func(i int, userID, addressID int64) {
			defer wg.Done()
			_, errs[i] = f.checkout.PlaceOrder(context.Background(), userID, PlaceOrderInput{
				AddressID: addressID, PaymentMethod: "COD",
			})
		}(i, b.userID, b.addressID)
	}
	wg.Wait()

	var ok, rejected int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		he, isHTTP := AsHTTPError(err)
		require.True(t, isHTTP, "unexpected error: %v", err)
		assert.Contains(t, []string{CodeInsufficientStock, CodeStockConflict, CodeProductUnavailable}, he.Code)
		rejected++
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, rejected)
	assert.Equal(t, int64(0), f.store.Product(p.ID).Stock)
	assert.Len(t, f.store.Orders(), 1)
	assertInventoryConserved(t, f.store, map[int64]int64{p.ID: 1})
}

func TestPlaceOrder_Gateway(t *testing.T) {
	f := newFixture(t)
	p := f.product("Linen Shirt", 1000, 10, 10)
	f.store.PutCartItem(f.user.ID, p.ID, 2)

	out := f.place(t, model.PaymentMethodGateway, "")

	assert.Equal(t, "PENDING", out.Order.Status)
	assert.Equal(t, "PENDING", out.Order.PaymentStatus)
	require.NotNil(t, out.Payment)
	assert.Equal(t, int64(1800), out.Payment.Amount)
	assert.Equal(t, "inr", out.Payment.Currency)

	// 在庫・カートは決済確認まで触らない
	assert.Equal(t, int64(10), f.store.Product(p.ID).Stock)
	assert.Len(t, f.store.CartItems(f.user.ID), 1)
	stored := f.store.Order(out.Order.ID)
	assert.Equal(t, out.Payment.ID, stored.GatewayOrderID)
	assert.False(t, stored.StockCommitted)

	sandbox := f.gateway.(*payment.SandboxGateway)
	req, ok := sandbox.Intent(out.Payment.ID)
	require.True(t, ok)
	assert.Equal(t, out.Order.Code, req.Receipt)
}

func TestPlaceOrder_GatewayIntentFailure(t *testing.T) {
	gw := &gatewayMock{}
	gw.On("CreateIntent", mock.Anything, mock.MatchedBy(func(req payment.IntentRequest) bool {
		return req.Amount == 900 && req.Currency == "inr"
	})).Return(payment.Intent{}, errors.New("connection refused")).Once()

	f := newFixtureWithGateway(t, gw)
	p := f.product("Linen Shirt", 1000, 10, 10)
	f.store.PutCartItem(f.user.ID, p.ID, 1)

	_, err := f.checkout.PlaceOrder(context.Background(), f.user.ID, PlaceOrderInput{
		AddressID: f.address.ID, PaymentMethod: "GATEWAY",
	})

	he := requireCode(t, err, CodeGateway)
	assert.Equal(t, 502, he.Status)
	orders := f.store.Orders()
	require.Len(t, orders, 1)
	assert.Equal(t, model.OrderStatusFailed, orders[0].Status)
	assert.Equal(t, model.PaymentStatusFailed, orders[0].PaymentStatus)
	assert.Equal(t, int64(10), f.store.Product(p.ID).Stock)
	assert.Len(t, f.store.CartItems(f.user.ID), 1)
	assert.Equal(t, []string{events.OrderPlaced, events.OrderPaymentFailed}, f.publisher.types())
	gw.AssertExpectations(t)
}

func TestPlaceOrder_IdempotencyKeyReplays(t *testing.T) {
	f := newFixture(t)
	p := f.product("Linen Shirt", 1000, 10, 10)
	f.store.PutCartItem(f.user.ID, p.ID, 1)
	in := PlaceOrderInput{AddressID: f.address.ID, PaymentMethod: "COD", IdempotencyKey: "key-1"}

	first, err := f.checkout.PlaceOrder(context.Background(), f.user.ID, in)
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	f.store.PutCartItem(f.user.ID, p.ID, 1)
	second, err := f.checkout.PlaceOrder(context.Background(), f.user.ID, in)
	require.NoError(t, err)

	assert.True(t, second.Replayed)
	assert.Equal(t, first.Order.ID, second.Order.ID)
	assert.Len(t, f.store.Orders(), 1)
	assert.Equal(t, int64(9), f.store.Product(p.ID).Stock)
	assert.Len(t, f.store.CartItems(f.user.ID), 1)
}

func TestPlaceOrder_OrderCodeCollisionRetries(t *testing.T) {
	f := newFixture(t)
	p := f.product("Linen Shirt", 1000, 0, 10)
	codes := &fixedCodes{codes: []string{"ORD-A", "ORD-A", "ORD-B"}}
	f.checkout.codes = codes

	f.store.PutCartItem(f.user.ID, p.ID, 1)
	first := f.place(t, model.PaymentMethodCOD, "")
	assert.Equal(t, "ORD-A", first.Order.Code)

	f.store.PutCartItem(f.user.ID, p.ID, 1)
	second := f.place(t, model.PaymentMethodCOD, "")
	assert.Equal(t, "ORD-B", second.Order.Code)
	assert.Equal(t, int64(8), f.store.Product(p.ID).Stock)
}

func TestPlaceOrder_OrderCodeExhausted(t *testing.T) {
	f := newFixture(t)
	p := f.product("Linen Shirt", 1000, 0, 10)
	f.checkout.codes = &fixedCodes{codes: []string{"ORD-A", "ORD-A", "ORD-A", "ORD-A"}}

	f.store.PutCartItem(f.user.ID, p.ID, 1)
	f.place(t, model.PaymentMethodCOD, "")

	f.store.PutCartItem(f.user.ID, p.ID, 1)
	_, err := f.checkout.PlaceOrder(context.Background(), f.user.ID, PlaceOrderInput{AddressID: f.address.ID, PaymentMethod: "COD"})

	he := requireCode(t, err, CodeOrderCodeConflict)
	assert.True(t, he.Retryable())
	assert.Equal(t, int64(9), f.store.Product(p.ID).Stock)
	assert.Len(t, f.store.CartItems(f.user.ID), 1)
}

func TestPlaceOrder_Rejections(t *testing.T) {
	f := newFixture(t)
	p := f.product("Linen Shirt", 1000, 0, 2)
	stranger := f.store.PutUser(model.User{Email: "stranger@example.com"})
	strangerAddr := f.addressFor(stranger.ID)
	ctx := context.Background()

	_, err := f.checkout.PlaceOrder(ctx, f.user.ID, PlaceOrderInput{AddressID: f.address.ID, PaymentMethod: "COD"})
	requireCode(t, err, CodeCartEmpty)

	_, err = f.checkout.PlaceOrder(ctx, f.user.ID, PlaceOrderInput{AddressID: f.address.ID, PaymentMethod: "CARD"})
	requireCode(t, err, CodeValidation)

	_, err = f.checkout.PlaceOrder(ctx, 0, PlaceOrderInput{AddressID: f.address.ID, PaymentMethod: "COD"})
	requireCode(t, err, CodeUnauthorized)

	f.store.PutCartItem(f.user.ID, p.ID, 2)
	_, err = f.checkout.PlaceOrder(ctx, f.user.ID, PlaceOrderInput{AddressID: strangerAddr.ID, PaymentMethod: "COD"})
	requireCode(t, err, CodeForbidden)

	_, err = f.checkout.PlaceOrder(ctx, f.user.ID, PlaceOrderInput{AddressID: 9999, PaymentMethod: "COD"})
	requireCode(t, err, CodeNotFound)

	f.store.UpdateProduct(p.ID, func(p *model.Product) { p.Stock = 0 })
	_, err = f.checkout.PlaceOrder(ctx, f.user.ID, PlaceOrderInput{AddressID: f.address.ID, PaymentMethod: "COD"})
	requireCode(t, err, CodeProductUnavailable)

	f.store.UpdateProduct(p.ID, func(p *model.Product) { p.Stock = 1 })
	_, err = f.checkout.PlaceOrder(ctx, f.user.ID, PlaceOrderInput{AddressID: f.address.ID, PaymentMethod: "COD"})
	he := requireCode(t, err, CodeInsufficientStock)
	assert.Equal(t, int64(1), he.Details["available"])

	assert.Empty(t, f.store.Orders())
}

func TestPlaceOrder_PricesAreFrozen(t *testing.T) {
	f := newFixture(t)
	p := f.product("Linen Shirt", 1000, 10, 10)
	f.store.PutCartItem(f.user.ID, p.ID, 1)
	out := f.place(t, model.PaymentMethodCOD, "")

	f.store.UpdateProduct(p.ID, func(p *model.Product) {
		p.Price = 5000
		p.DiscountPercent = 0
		p.Name = "Renamed"
	})

	detail, err := f.orders.GetMyOrderDetail(context.Background(), f.user.ID, out.Order.ID)
	require.NoError(t, err)
	require.Len(t, detail.Items, 1)
	assert.Equal(t, int64(1000), detail.Items[0].ListPrice)
	assert.Equal(t, int64(900), detail.Items[0].FinalPrice)
	assert.Equal(t, "Linen Shirt", detail.Items[0].Name)
	assert.Equal(t, int64(900), detail.TotalAmount)
}

func TestPlaceOrder_CategoryOfferBeatsProductDiscount(t *testing.T) {
	f := newFixture(t)
	p := f.store.PutProduct(model.Product{CategoryID: 7, Name: "Sneakers", Price: 2500, DiscountPercent: 5, Stock: 4})
	f.store.PutCategoryOffer(model.CategoryOffer{
		CategoryID: 7, DiscountPercent: 15, IsActive: true,
		StartsAt: f.clock.Now().AddDate(0, 0, -1), EndsAt: f.clock.Now().AddDate(0, 0, 1),
	})
	f.store.PutCartItem(f.user.ID, p.ID, 1)

	out := f.place(t, model.PaymentMethodCOD, "")

	require.Len(t, out.Order.Items, 1)
	assert.Equal(t, int64(15), out.Order.Items[0].DiscountPercent)
	assert.Equal(t, "category", out.Order.Items[0].DiscountSource)
	assert.Equal(t, int64(2125), out.Order.TotalAmount)
}

func TestCheckoutPreview(t *testing.T) {
	f := newFixture(t)
	p := f.product("Linen Shirt", 1000, 10, 10)
	f.save10()
	f.store.PutWalletBalance(f.user.ID, 1000)
	f.store.PutCartItem(f.user.ID, p.ID, 2)

	out, err := f.checkout.Preview(context.Background(), f.user.ID)

	require.NoError(t, err)
	assert.Equal(t, int64(1800), out.Cart.Total)
	require.Len(t, out.Coupons, 1)
	assert.Equal(t, int64(150), out.Coupons[0].Discount)
	assert.Equal(t, int64(1000), out.WalletBalance)
	assert.Equal(t, []string{"COD", "GATEWAY"}, out.PaymentMethods)
}

type fixedCodes struct {
	codes []string
	i     int
}

func (g *fixedCodes) NewCode(_ time.Time) string {
	c := g.codes[min(g.i, len(g.codes)-1)]
	g.i++
	return c
}
