package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

func TestWithinTx_RollsBackOnError(t *testing.T) {
	s := New()
	p := s.PutProduct(model.Product{Name: "P", Price: 100, Stock: 3})
	boom := errors.New("boom")

	err := s.WithinTx(context.Background(), func(r repo.TxRepos) error {
		ok, err := r.Inventory().DecreaseStockIfEnough(context.Background(), p.ID, 2)
		require.NoError(t, err)
		require.True(t, ok)
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int64(3), s.Product(p.ID).Stock)
}

func TestWithinTx_CanceledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.WithinTx(ctx, func(r repo.TxRepos) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestInventory_ConditionalDecrement(t *testing.T) {
	s := New()
	p := s.PutProduct(model.Product{Name: "P", Price: 100, Stock: 1})

	var first, second bool
	_ = s.WithinTx(context.Background(), func(r repo.TxRepos) error {
		first, _ = r.Inventory().DecreaseStockIfEnough(context.Background(), p.ID, 1)
		second, _ = r.Inventory().DecreaseStockIfEnough(context.Background(), p.ID, 1)
		return nil
	})

	assert.True(t, first)
	assert.False(t, second)
	assert.Equal(t, int64(0), s.Product(p.ID).Stock)
}

func TestOrders_CreateRejectsDuplicateCode(t *testing.T) {
	s := New()
	ctx := context.Background()

	err := s.WithinTx(ctx, func(r repo.TxRepos) error {
		if _, err := r.Orders().Create(ctx, model.Order{Code: "ORD-1", UserID: 1}); err != nil {
			return err
		}
		_, err := r.Orders().Create(ctx, model.Order{Code: "ORD-1", UserID: 2})
		return err
	})

	assert.ErrorIs(t, err, repo.ErrDuplicateKey)
	assert.Empty(t, s.Orders())
}

func TestCoupons_MarkUsedOncePerUser(t *testing.T) {
	s := New()
	ctx := context.Background()

	var first, second, other bool
	require.NoError(t, s.WithinTx(ctx, func(r repo.TxRepos) error {
		first, _ = r.Coupons().MarkUsed(ctx, model.CouponUsage{CouponID: 1, UserID: 1, OrderID: 10})
		second, _ = r.Coupons().MarkUsed(ctx, model.CouponUsage{CouponID: 1, UserID: 1, OrderID: 11})
		other, _ = r.Coupons().MarkUsed(ctx, model.CouponUsage{CouponID: 1, UserID: 2, OrderID: 12})
		return nil
	}))

	assert.True(t, first)
	assert.False(t, second)
	assert.True(t, other)
}

func TestProducts_SoftDeletedAreHidden(t *testing.T) {
	s := New()
	p := s.PutProduct(model.Product{Name: "P", Price: 100, Stock: 1})
	s.UpdateProduct(p.ID, func(p *model.Product) { p.DeletedAt.Valid = true })

	err := s.WithinTx(context.Background(), func(r repo.TxRepos) error {
		_, err := r.Products().FindByID(context.Background(), p.ID)
		return err
	})
	assert.ErrorIs(t, err, repo.ErrNotFound)
}
