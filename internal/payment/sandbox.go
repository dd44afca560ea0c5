package payment

import (
	"context"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
)

// SandboxGateway は外部に出ずにインテントIDを払い出す（ローカル・テスト用）。
// 完了コールバックは Signer で自前署名して送る
type SandboxGateway struct {
	mu      sync.Mutex
	intents map[string]IntentRequest
}

func NewSandboxGateway() *SandboxGateway {
	return &SandboxGateway{intents: map[string]IntentRequest{}}
}

func (g *SandboxGateway) CreateIntent(_ context.Context, req IntentRequest) (Intent, error) {
	if req.Amount <= 0 {
		return Intent{}, ErrInvalidAmount
	}
	id := "sbx_" + strings.ToLower(ulid.Make().String())

	g.mu.Lock()
	g.intents[id] = req
	g.mu.Unlock()

	return Intent{ID: id, Amount: req.Amount, Currency: req.Currency}, nil
}

func (g *SandboxGateway) Intent(id string) (IntentRequest, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	req, ok := g.intents[id]
	return req, ok
}
