package payment

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v80"
)

func TestSignatureVerifier(t *testing.T) {
	v := NewSignatureVerifier("whsec_test")
	sig := v.Sign("order_1", "pay_1")

	t.Run("正しい署名", func(t *testing.T) {
		got, err := v.Verify(RawCallback{GatewayOrderID: "order_1", GatewayPaymentID: "pay_1", Signature: sig})
		require.NoError(t, err)
		assert.Equal(t, "order_1", got.GatewayOrderID())
		assert.Equal(t, "pay_1", got.GatewayPaymentID())
	})

	t.Run("大文字の16進も受け付ける", func(t *testing.T) {
		_, err := v.Verify(RawCallback{GatewayOrderID: "order_1", GatewayPaymentID: "pay_1", Signature: strings.ToUpper(sig)})
		assert.NoError(t, err)
	})

	cases := map[string]RawCallback{
		"支払いIDの差し替え": {GatewayOrderID: "order_1", GatewayPaymentID: "pay_2", Signature: sig},
		"注文IDの差し替え":  {GatewayOrderID: "order_2", GatewayPaymentID: "pay_1", Signature: sig},
		"16進でない":      {GatewayOrderID: "order_1", GatewayPaymentID: "pay_1", Signature: "zz"},
		"空の署名":        {GatewayOrderID: "order_1", GatewayPaymentID: "pay_1"},
		"空の支払いID":     {GatewayOrderID: "order_1", Signature: sig},
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(raw)
			assert.ErrorIs(t, err, ErrSignatureMismatch)
		})
	}

	t.Run("別の鍵", func(t *testing.T) {
		other := NewSignatureVerifier("another")
		_, err := other.Verify(RawCallback{GatewayOrderID: "order_1", GatewayPaymentID: "pay_1", Signature: sig})
		assert.ErrorIs(t, err, ErrSignatureMismatch)
	})
}

type intentAPIMock struct {
	mock.Mock
}

func (m *intentAPIMock) New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	args := m.Called(params)
	pi, _ := args.Get(0).(*stripe.PaymentIntent)
	return pi, args.Error(1)
}

func TestStripeGateway_CreateIntent(t *testing.T) {
	api := new(intentAPIMock)
	g := newStripeGatewayWithAPI(api)

	api.On("New", mock.MatchedBy(func(p *stripe.PaymentIntentParams) bool {
		return *p.Amount == 165000 && *p.Currency == "inr" && p.Metadata["receipt"] == "ORD-1"
	})).Return(&stripe.PaymentIntent{ID: "pi_123", Currency: "inr", ClientSecret: "secret"}, nil)

	intent, err := g.CreateIntent(context.Background(), IntentRequest{Amount: 1650, Currency: "INR", Receipt: "ORD-1"})

	require.NoError(t, err)
	assert.Equal(t, Intent{ID: "pi_123", Amount: 1650, Currency: "inr", ClientSecret: "secret"}, intent)
	api.AssertExpectations(t)
}

func TestStripeGateway_CreateIntentErrors(t *testing.T) {
	api := new(intentAPIMock)
	g := newStripeGatewayWithAPI(api)

	_, err := g.CreateIntent(context.Background(), IntentRequest{Amount: 0, Currency: "inr"})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	api.On("New", mock.Anything).Return(nil, errors.New("card_declined"))
	_, err = g.CreateIntent(context.Background(), IntentRequest{Amount: 10, Currency: "inr"})
	assert.ErrorContains(t, err, "stripe: create payment intent")
}

func TestSandboxGateway(t *testing.T) {
	g := NewSandboxGateway()

	intent, err := g.CreateIntent(context.Background(), IntentRequest{Amount: 700, Currency: "inr", Receipt: "ORD-9"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(intent.ID, "sbx_"))

	req, ok := g.Intent(intent.ID)
	require.True(t, ok)
	assert.Equal(t, "ORD-9", req.Receipt)

	_, err = g.CreateIntent(context.Background(), IntentRequest{Amount: -1})
	assert.ErrorIs(t, err, ErrInvalidAmount)
}
