package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"storefront/internal/domain/model"
	"storefront/internal/domain/pricing"
	"storefront/internal/infra/events"
	"storefront/internal/payment"
	repo "storefront/internal/repository"
)

const maxOrderCodeAttempts = 3

var errOrderCodeTaken = errors.New("order code taken")

// CheckoutUsecase はカートから注文を確定する。
// 価格固定・クーポン検証・注文作成までは共通で、その後を支払い方法ごとの settlement に任せる
type CheckoutUsecase struct {
	tx         repo.TransactionManager
	clock      Clock
	codes      OrderCodeGenerator
	events     eventSink
	logger     *zap.Logger
	strategies map[model.PaymentMethod]settlement
}

func NewCheckoutUsecase(
	tx repo.TransactionManager,
	gateway payment.Gateway,
	publisher events.Publisher,
	clock Clock,
	codes OrderCodeGenerator,
	currency string,
	logger *zap.Logger,
) *CheckoutUsecase {
	sink := newEventSink(publisher, logger)
	return &CheckoutUsecase{
		tx:     tx,
		clock:  clock,
		codes:  codes,
		events: sink,
		logger: sink.logger,
		strategies: map[model.PaymentMethod]settlement{
			model.PaymentMethodCOD:    codSettlement{},
			model.PaymentMethodWallet: walletSettlement{},
			model.PaymentMethodGateway: gatewaySettlement{
				tx:       tx,
				gateway:  gateway,
				currency: currency,
				clock:    clock,
				events:   sink,
			},
		},
	}
}

type PlaceOrderInput struct {
	AddressID      int64
	PaymentMethod  string
	CouponCode     string
	IdempotencyKey string
}

type PlaceOrderOutput struct {
	Order   OrderOutput     `json:"order"`
	Payment *payment.Intent `json:"payment,omitempty"`

	// 同じ冪等キーで既存注文を返したとき
	Replayed bool `json:"replayed"`
}

type placement struct {
	order    model.Order
	replayed bool
}

func (u *CheckoutUsecase) PlaceOrder(ctx context.Context, userID int64, in PlaceOrderInput) (PlaceOrderOutput, error) {
	if userID <= 0 {
		return PlaceOrderOutput{}, errUnauthorized()
	}
	if in.AddressID <= 0 {
		return PlaceOrderOutput{}, NewHTTPError(http.StatusBadRequest, "address_id is required")
	}
	method := model.PaymentMethod(strings.ToUpper(strings.TrimSpace(in.PaymentMethod)))
	if !method.Valid() {
		return PlaceOrderOutput{}, NewBusinessError(http.StatusBadRequest, CodeValidation, "invalid payment_method",
			map[string]any{"allowed": []model.PaymentMethod{model.PaymentMethodCOD, model.PaymentMethodWallet, model.PaymentMethodGateway}})
	}
	var key *string
	if k := strings.TrimSpace(in.IdempotencyKey); k != "" {
		if len(k) > 255 {
			return PlaceOrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid idempotency key")
		}
		key = &k
	}
	s := u.strategies[method]

	var (
		res placement
		err error
	)
	for attempt := 1; attempt <= maxOrderCodeAttempts; attempt++ {
		res, err = u.place(ctx, userID, method, in, key, s)
		if !errors.Is(err, errOrderCodeTaken) {
			break
		}
		u.logger.Warn("order code collision", zap.Int64("user_id", userID), zap.Int("attempt", attempt))
	}
	if errors.Is(err, errOrderCodeTaken) {
		return PlaceOrderOutput{}, NewBusinessError(http.StatusConflict, CodeOrderCodeConflict,
			"could not allocate an order code, please retry", map[string]any{"retryable": true})
	}
	if err != nil {
		return PlaceOrderOutput{}, err
	}

	out := PlaceOrderOutput{Order: toOrderOutput(res.order, res.order.Items), Replayed: res.replayed}
	if res.replayed {
		if res.order.GatewayOrderID != "" {
			out.Payment = &payment.Intent{ID: res.order.GatewayOrderID, Amount: res.order.TotalAmount}
		}
		return out, nil
	}

	u.logger.Info("order placed",
		zap.Int64("order_id", res.order.ID),
		zap.String("order_code", res.order.Code),
		zap.String("payment_method", string(method)),
		zap.Int64("total", res.order.TotalAmount),
	)
	u.events.emit(ctx, orderEvent(events.OrderPlaced, res.order, u.clock.Now()))
	if res.order.PaymentStatus == model.PaymentStatusPaid {
		u.events.emit(ctx, orderEvent(events.OrderPaid, res.order, u.clock.Now()))
	}

	intent, err := s.afterCommit(ctx, res.order)
	if err != nil {
		return PlaceOrderOutput{}, err
	}
	out.Payment = intent
	return out, nil
}

func (u *CheckoutUsecase) place(ctx context.Context, userID int64, method model.PaymentMethod, in PlaceOrderInput, key *string, s settlement) (placement, error) {
	var out placement
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if key != nil {
			existing, found, err := r.Orders().FindByIdempotencyKey(ctx, userID, *key)
			if err != nil {
				return dbError(err)
			}
			if found {
				o, err := loadOrder(ctx, r, existing.ID, false)
				if err != nil {
					return err
				}
				out = placement{order: o, replayed: true}
				return nil
			}
		}

		draft, err := u.prepare(ctx, r, userID, method, in, key)
		if err != nil {
			return err
		}
		order, err := s.settle(ctx, r, draft)
		if err != nil {
			return err
		}
		out = placement{order: order}
		return nil
	})
	return out, err
}

// prepare は共通部分。価格を固定し、クーポンを検証して未保存の注文を組み立てる
func (u *CheckoutUsecase) prepare(ctx context.Context, r repo.TxRepos, userID int64, method model.PaymentMethod, in PlaceOrderInput, key *string) (model.Order, error) {
	addr, err := r.Addresses().FindByID(ctx, in.AddressID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Order{}, errNotFound("address")
	}
	if err != nil {
		return model.Order{}, dbError(err)
	}
	if addr.UserID != userID {
		return model.Order{}, errForbidden()
	}

	cart, err := r.Carts().FindActiveByUserID(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Order{}, errCartEmpty()
	}
	if err != nil {
		return model.Order{}, dbError(err)
	}
	cartItems, err := r.CartItems().ListByCartID(ctx, cart.ID)
	if err != nil {
		return model.Order{}, dbError(err)
	}
	if len(cartItems) == 0 {
		return model.Order{}, errCartEmpty()
	}

	now := u.clock.Now()
	items, subtotal, err := lockPrices(ctx, r, cartItems, now)
	if err != nil {
		return model.Order{}, err
	}

	order := model.Order{
		Code:           u.codes.NewCode(now),
		UserID:         userID,
		Shipping:       addr.Snapshot(),
		SubtotalAmount: subtotal,
		TotalAmount:    subtotal,
		PaymentMethod:  method,
		IdempotencyKey: key,
		OrderedAt:      now,
		Items:          items,
	}

	if strings.TrimSpace(in.CouponCode) != "" {
		q, err := validateCoupon(ctx, r.Coupons(), in.CouponCode, userID, subtotal, now)
		if err != nil {
			return model.Order{}, err
		}
		order.Coupon = q.Snapshot()
		order.CouponDiscountAmount = q.Discount
		order.TotalAmount = subtotal - q.Discount
	}
	// 0円のインテントは作れない
	if method == model.PaymentMethodGateway && order.TotalAmount == 0 {
		return model.Order{}, NewBusinessError(http.StatusUnprocessableEntity, CodeValidation,
			"order total is zero, choose COD or WALLET",
			map[string]any{"total": order.TotalAmount, "allowed": []model.PaymentMethod{model.PaymentMethodCOD, model.PaymentMethodWallet}})
	}
	return order, nil
}

// lockPrices はカートの各行を現在の商品情報で値付けして明細のスナップショットにする。
// クライアントが送った価格は使わない
func lockPrices(ctx context.Context, r repo.TxRepos, cartItems []model.CartItem, now time.Time) ([]model.OrderItem, int64, error) {
	ids := make([]int64, 0, len(cartItems))
	for _, ci := range cartItems {
		ids = append(ids, ci.ProductID)
	}
	products, err := r.Products().FindByIDs(ctx, ids)
	if err != nil {
		return nil, 0, dbError(err)
	}
	offers, err := r.CategoryOffers().ActiveDiscounts(ctx, now)
	if err != nil {
		return nil, 0, dbError(err)
	}

	items := make([]model.OrderItem, 0, len(cartItems))
	var subtotal int64
	for _, ci := range cartItems {
		p, ok := products[ci.ProductID]
		if !ok {
			return nil, 0, NewBusinessError(http.StatusUnprocessableEntity, CodeProductUnavailable,
				"product is no longer available", map[string]any{"product_id": ci.ProductID})
		}
		if !p.IsPurchasable() {
			return nil, 0, errProductUnavailable(p)
		}
		if p.Stock < ci.Quantity {
			return nil, 0, errInsufficientStock(p, ci.Quantity)
		}

		q := pricing.ResolveProduct(p, offers)
		it := model.OrderItem{
			ProductID:            p.ID,
			ProductNameSnapshot:  p.Name,
			ProductImageSnapshot: p.ImageURL,
			Quantity:             ci.Quantity,
			ListPrice:            q.ListPrice,
			FinalPrice:           q.UnitPrice,
			DiscountPercent:      q.DiscountPercent,
			DiscountSource:       q.Source,
			Subtotal:             q.UnitPrice * ci.Quantity,
			Status:               model.OrderItemStatusPending,
		}
		items = append(items, it)
		subtotal += it.Subtotal
	}
	return items, subtotal, nil
}

// createOrder は注文と明細を保存する。コード衝突は errOrderCodeTaken（Tx ごとやり直す）
func createOrder(ctx context.Context, r repo.TxRepos, draft model.Order, status model.OrderStatus, paymentStatus model.PaymentStatus, stockCommitted bool) (model.Order, error) {
	draft.Status = status
	draft.PaymentStatus = paymentStatus
	draft.StockCommitted = stockCommitted

	id, err := r.Orders().Create(ctx, draft)
	if errors.Is(err, repo.ErrDuplicateKey) {
		return model.Order{}, errOrderCodeTaken
	}
	if err != nil {
		return model.Order{}, dbError(err)
	}
	draft.ID = id

	items, err := r.OrderItems().CreateBulk(ctx, id, draft.Items)
	if err != nil {
		return model.Order{}, dbError(err)
	}
	draft.Items = items
	return draft, nil
}

type CheckoutPreview struct {
	Cart           PricedCart         `json:"cart"`
	Coupons        []ApplicableCoupon `json:"coupons"`
	WalletBalance  int64              `json:"wallet_balance"`
	PaymentMethods []string           `json:"payment_methods"`
}

// Preview はチェックアウト画面用。カートの自己修復以外は何も書き換えない
func (u *CheckoutUsecase) Preview(ctx context.Context, userID int64) (CheckoutPreview, error) {
	if userID <= 0 {
		return CheckoutPreview{}, errUnauthorized()
	}

	var out CheckoutPreview
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		now := u.clock.Now()
		cart, err := valuateCart(ctx, r, userID, now)
		if err != nil {
			return err
		}
		coupons, err := applicableCoupons(ctx, r, userID, cart.Total, now)
		if err != nil {
			return err
		}
		w, err := r.Wallets().GetOrCreate(ctx, userID)
		if err != nil {
			return dbError(err)
		}

		methods := []string{string(model.PaymentMethodCOD), string(model.PaymentMethodGateway)}
		if cart.Total > 0 && w.Balance >= cart.Total {
			methods = append(methods, string(model.PaymentMethodWallet))
		}
		out = CheckoutPreview{Cart: cart, Coupons: coupons, WalletBalance: w.Balance, PaymentMethods: methods}
		return nil
	})
	if err != nil {
		return CheckoutPreview{}, err
	}
	return out, nil
}

func orderEvent(typ string, o model.Order, now time.Time) events.Event {
	return events.Event{
		Type:      typ,
		OrderID:   o.ID,
		OrderCode: o.Code,
		UserID:    o.UserID,
		Amount:    o.TotalAmount,
		Attributes: map[string]any{
			"status":         o.Status,
			"payment_method": o.PaymentMethod,
			"payment_status": o.PaymentStatus,
		},
		OccurredAt: now,
	}
}
