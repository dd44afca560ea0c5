package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/client"
)

type stripeIntentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

type StripeGateway struct {
	intents stripeIntentAPI
}

func NewStripeGateway(secretKey string) (*StripeGateway, error) {
	secretKey = strings.TrimSpace(secretKey)
	if secretKey == "" {
		return nil, errors.New("stripe: secret key is required")
	}
	sc := client.New(secretKey, nil)
	return &StripeGateway{intents: sc.PaymentIntents}, nil
}

func newStripeGatewayWithAPI(api stripeIntentAPI) *StripeGateway {
	return &StripeGateway{intents: api}
}

func (g *StripeGateway) CreateIntent(ctx context.Context, req IntentRequest) (Intent, error) {
	if req.Amount <= 0 {
		return Intent{}, ErrInvalidAmount
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.Amount * 100),
		Currency: stripe.String(strings.ToLower(req.Currency)),
	}
	params.Context = ctx
	if req.Receipt != "" {
		params.AddMetadata("receipt", req.Receipt)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := g.intents.New(params)
	if err != nil {
		return Intent{}, fmt.Errorf("stripe: create payment intent: %w", err)
	}

	return Intent{
		ID:           pi.ID,
		Amount:       req.Amount,
		Currency:     string(pi.Currency),
		ClientSecret: pi.ClientSecret,
	}, nil
}
