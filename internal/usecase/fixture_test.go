package usecase

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storefront/internal/domain/model"
	"storefront/internal/infra/events"
	"storefront/internal/infra/memstore"
	"storefront/internal/payment"
)

const testSecret = "whsec_test"

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type seqCodes struct{ n atomic.Int64 }

func (g *seqCodes) NewCode(time.Time) string {
	return fmt.Sprintf("ORD-TEST-%03d", g.n.Add(1))
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type gatewayMock struct {
	mock.Mock
}

func (m *gatewayMock) CreateIntent(ctx context.Context, req payment.IntentRequest) (payment.Intent, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(payment.Intent), args.Error(1)
}

type fixture struct {
	store     *memstore.Store
	clock     fixedClock
	gateway   payment.Gateway
	verifier  *payment.SignatureVerifier
	publisher *recordingPublisher

	checkout   *CheckoutUsecase
	payments   *PaymentUsecase
	wallets    *WalletUsecase
	reconciler *Reconciler
	admin      *AdminOrderUsecase
	carts      *CartUsecase
	coupons    *CouponUsecase
	orders     *OrderUsecase

	user    model.User
	adminID int64
	address model.Address
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithGateway(t, payment.NewSandboxGateway())
}

func newFixtureWithGateway(t *testing.T, gw payment.Gateway) *fixture {
	t.Helper()

	f := &fixture{
		store:     memstore.New(),
		clock:     fixedClock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
		gateway:   gw,
		verifier:  payment.NewSignatureVerifier(testSecret),
		publisher: &recordingPublisher{},
	}
	f.store.SetClock(f.clock.Now)
	log := zap.NewNop()

	f.checkout = NewCheckoutUsecase(f.store, gw, f.publisher, f.clock, &seqCodes{}, "inr", log)
	f.payments = NewPaymentUsecase(f.store, f.verifier, f.publisher, f.clock, log)
	f.wallets = NewWalletUsecase(f.store, gw, f.verifier, f.publisher, f.clock, "inr",
		ReferralPolicy{SignupBonus: 50, Reward: 100}, log)
	f.reconciler = NewReconciler(f.store, f.publisher, f.clock, log)
	f.admin = NewAdminOrderUsecase(f.store, f.reconciler, f.clock, log)
	f.carts = NewCartUsecase(f.store, f.clock)
	f.coupons = NewCouponUsecase(f.store, f.clock)
	f.orders = NewOrderUsecase(f.store)

	f.user = f.store.PutUser(model.User{Email: "buyer@example.com", ReferralCode: "BUYER"})
	f.adminID = f.store.PutUser(model.User{Email: "admin@example.com", Role: model.RoleAdmin}).ID
	f.address = f.addressFor(f.user.ID)
	return f
}

func (f *fixture) addressFor(userID int64) model.Address {
	return f.store.PutAddress(model.Address{
		UserID: userID, Name: "Buyer", PostalCode: "560001", State: "KA", City: "Bengaluru", Line1: "1 MG Road",
	})
}

func (f *fixture) product(name string, price, discount, stock int64) model.Product {
	return f.store.PutProduct(model.Product{CategoryID: 1, Name: name, Price: price, DiscountPercent: discount, Stock: stock})
}

func (f *fixture) save10() model.Coupon {
	return f.store.PutCoupon(model.Coupon{
		Code: "SAVE10", Kind: model.CouponKindPercentage, Value: 10, MinPurchase: 1000, MaxDiscount: 150,
		IsActive: true, ExpiresAt: f.clock.Now().Add(24 * time.Hour),
	})
}

func (f *fixture) place(t *testing.T, method model.PaymentMethod, coupon string) PlaceOrderOutput {
	t.Helper()
	out, err := f.checkout.PlaceOrder(context.Background(), f.user.ID, PlaceOrderInput{
		AddressID: f.address.ID, PaymentMethod: string(method), CouponCode: coupon,
	})
	require.NoError(t, err)
	return out
}

func (f *fixture) verifyInput(order PlaceOrderOutput) VerifyPaymentInput {
	paymentID := "pay_" + order.Order.Code
	return VerifyPaymentInput{
		OrderID:          order.Order.ID,
		GatewayOrderID:   order.Payment.ID,
		GatewayPaymentID: paymentID,
		Signature:        f.verifier.Sign(order.Payment.ID, paymentID),
	}
}

func requireCode(t *testing.T, err error, code string) *HTTPError {
	t.Helper()
	require.Error(t, err)
	he, ok := AsHTTPError(err)
	require.True(t, ok, "unexpected error: %v", err)
	assert.Equal(t, code, he.Code, he.Message)
	return he
}

// 残高 = 貸方合計 - 借方合計
func assertWalletConsistent(t *testing.T, s *memstore.Store, userID int64) {
	t.Helper()
	var sum int64
	for _, txn := range s.WalletTransactions(userID) {
		assert.Positive(t, txn.Amount)
		if txn.Direction == model.WalletDirectionCredit {
			sum += txn.Amount
		} else {
			sum -= txn.Amount
		}
	}
	assert.Equal(t, sum, s.Wallet(userID).Balance)
	assert.GreaterOrEqual(t, s.Wallet(userID).Balance, int64(0))
}

// 初期在庫 = 現在庫 + キャンセル・返品以外の明細数量
func assertInventoryConserved(t *testing.T, s *memstore.Store, initial map[int64]int64) {
	t.Helper()
	held := map[int64]int64{}
	for _, o := range s.Orders() {
		full := s.Order(o.ID)
		if !full.StockCommitted {
			continue
		}
		for _, it := range full.Items {
			if !it.Status.Terminal() {
				held[it.ProductID] += it.Quantity
			}
		}
	}
	for id, stock := range initial {
		assert.Equal(t, stock, s.Product(id).Stock+held[id], "product %d", id)
	}
}
