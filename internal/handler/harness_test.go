package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"storefront/internal/config"
	"storefront/internal/domain/model"
	"storefront/internal/handler"
	"storefront/internal/infra/events"
	"storefront/internal/infra/memstore"
	"storefront/internal/payment"
	"storefront/internal/server"
	"storefront/internal/usecase"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

type app struct {
	t        *testing.T
	cfg      config.Config
	store    *memstore.Store
	verifier *payment.SignatureVerifier
	srv      http.Handler

	user    model.User
	other   model.User
	admin   model.User
	address model.Address
}

func newApp(t *testing.T, opts ...func(*config.Config)) *app {
	t.Helper()

	cfg := config.Config{
		JWTSecret:             testSecret,
		PaymentCurrency:       "inr",
		PaymentWebhookSecret:  "whsec_test",
		CheckoutRatePerMinute: 30,
		ReferralSignupBonus:   50,
		ReferralReward:        100,
	}
	for _, o := range opts {
		o(&cfg)
	}

	store := memstore.New()
	verifier := payment.NewSignatureVerifier(cfg.PaymentWebhookSecret)
	gateway := payment.NewSandboxGateway()
	publisher := events.NopPublisher{}
	clock := usecase.SystemClock{}
	log := zap.NewNop()

	reconciler := usecase.NewReconciler(store, publisher, clock, log)
	payments := usecase.NewPaymentUsecase(store, verifier, publisher, clock, log)
	wallets := usecase.NewWalletUsecase(store, gateway, verifier, publisher, clock, cfg.PaymentCurrency,
		usecase.ReferralPolicy{SignupBonus: cfg.ReferralSignupBonus, Reward: cfg.ReferralReward}, log)
	checkout := usecase.NewCheckoutUsecase(store, gateway, publisher, clock, usecase.ULIDCodeGenerator{}, cfg.PaymentCurrency, log)

	userRepo := store.UserRepository()
	h := server.Handlers{
		Product:    handler.NewProductHandler(usecase.NewProductUsecase(store, clock)),
		Cart:       handler.NewCartHandler(usecase.NewCartUsecase(store, clock)),
		Address:    handler.NewAddressHandler(usecase.NewAddressUsecase(store)),
		Checkout:   handler.NewCheckoutHandler(checkout, usecase.NewCouponUsecase(store, clock)),
		Payment:    handler.NewPaymentHandler(payments),
		Order:      handler.NewOrderHandler(usecase.NewOrderUsecase(store), reconciler, payments),
		Wallet:     handler.NewWalletHandler(wallets),
		AdminOrder: handler.NewAdminOrderHandler(usecase.NewAdminOrderUsecase(store, reconciler, clock, log), reconciler),
		AdminUser:  handler.NewAdminUserHandler(cfg, userRepo, wallets),
	}

	a := &app{
		t:        t,
		cfg:      cfg,
		store:    store,
		verifier: verifier,
		srv:      server.New(cfg, log, userRepo, h).Handler(),
	}
	a.user = store.PutUser(model.User{Email: "buyer@test.com", ReferralCode: "BUYER"})
	a.other = store.PutUser(model.User{Email: "other@test.com", ReferralCode: "OTHER"})
	a.admin = store.PutUser(model.User{Email: "admin@test.com", Role: model.RoleAdmin, ReferralCode: "ADMIN"})
	a.address = store.PutAddress(model.Address{
		UserID: a.user.ID, Name: "Buyer", PostalCode: "560001", State: "KA",
		City: "Bengaluru", Line1: "1 MG Road", IsDefault: true,
	})
	return a
}

func (a *app) token(u model.User) string {
	a.t.Helper()

	claims := jwt.MapClaims{
		"sub":  u.ID,
		"role": string(u.Role),
		"tv":   u.TokenVersion,
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(a.t, err)
	return s
}

func (a *app) do(method, path string, u *model.User, body any, headers ...string) *httptest.ResponseRecorder {
	a.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if u != nil {
		req.Header.Set("Authorization", "Bearer "+a.token(*u))
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	a.srv.ServeHTTP(rec, req)
	return rec
}

func (a *app) product(name string, price, discount, stock int64) model.Product {
	return a.store.PutProduct(model.Product{CategoryID: 1, Name: name, Price: price, DiscountPercent: discount, Stock: stock})
}

func (a *app) save10() model.Coupon {
	return a.store.PutCoupon(model.Coupon{
		Code: "SAVE10", Kind: model.CouponKindPercentage, Value: 10, MinPurchase: 1000,
		MaxDiscount: 150, IsActive: true, ExpiresAt: time.Now().Add(24 * time.Hour),
	})
}

// カートに入れて注文する
func (a *app) placeOrder(p model.Product, qty int64, method, coupon string) usecase.PlaceOrderOutput {
	a.t.Helper()

	rec := a.do(http.MethodPost, "/cart", &a.user, map[string]any{"product_id": p.ID, "quantity": qty})
	require.Equal(a.t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(http.MethodPost, "/checkout", &a.user, map[string]any{
		"address_id":     a.address.ID,
		"payment_method": method,
		"coupon_code":    coupon,
	})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[usecase.PlaceOrderOutput](a.t, rec)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type errorBody struct {
	Error   string         `json:"error"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details"`
}

func requireError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) errorBody {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	body := decode[errorBody](t, rec)
	require.Equal(t, code, body.Code, rec.Body.String())
	return body
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
