package usecase

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"storefront/internal/infra/events"
	"storefront/internal/payment"
)

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// 人が読める注文コード。一意性は保存時の一意制約で担保する
type OrderCodeGenerator interface {
	NewCode(now time.Time) string
}

type ULIDCodeGenerator struct{}

func (ULIDCodeGenerator) NewCode(now time.Time) string {
	return "ORD-" + ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()
}

// 署名検証の境界。検証済みの型しか返さない
type CallbackVerifier interface {
	Verify(raw payment.RawCallback) (payment.VerifiedCallback, error)
}

// コミット後のイベント送信。失敗はログのみ
type eventSink struct {
	publisher events.Publisher
	logger    *zap.Logger
}

func newEventSink(p events.Publisher, logger *zap.Logger) eventSink {
	if p == nil {
		p = events.NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return eventSink{publisher: p, logger: logger}
}

func (s eventSink) emit(ctx context.Context, evs ...events.Event) {
	for _, ev := range evs {
		if err := s.publisher.Publish(ctx, ev); err != nil {
			s.logger.Warn("publish event failed",
				zap.String("event", ev.Type),
				zap.Int64("order_id", ev.OrderID),
				zap.Error(err),
			)
		}
	}
}

func pageOrDefault(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
