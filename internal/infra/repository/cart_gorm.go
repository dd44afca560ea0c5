package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

// CartGormRepository は CartRepository と CartItemRepository を兼ねる
type CartGormRepository struct {
	db *gorm.DB
}

func NewCartGormRepository(db *gorm.DB) *CartGormRepository {
	return &CartGormRepository{db: db}
}

func (r *CartGormRepository) GetOrCreateActiveByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	var cart model.Cart
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where(model.Cart{UserID: userID, Status: model.CartStatusActive}).
		Order("id desc").
		FirstOrCreate(&cart).Error
	if err != nil {
		return model.Cart{}, fmt.Errorf("get or create cart: %w", translate(err))
	}
	return cart, nil
}

func (r *CartGormRepository) FindActiveByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	var cart model.Cart
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, model.CartStatusActive).
		Order("id desc").
		First(&cart).Error
	if err != nil {
		return model.Cart{}, translate(err)
	}
	return cart, nil
}

func (r *CartGormRepository) Clear(ctx context.Context, cartID int64) error {
	if err := r.db.WithContext(ctx).Where("cart_id = ?", cartID).Delete(&model.CartItem{}).Error; err != nil {
		return fmt.Errorf("clear cart %d: %w", cartID, err)
	}
	return nil
}

func (r *CartGormRepository) ListByCartID(ctx context.Context, cartID int64) ([]model.CartItem, error) {
	var items []model.CartItem
	if err := r.db.WithContext(ctx).Where("cart_id = ?", cartID).Order("id asc").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list cart items: %w", err)
	}
	return items, nil
}

// (cart_id, product_id) の一意索引で1文にまとめる。既存行は LEAST で上限に丸める
func (r *CartGormRepository) UpsertByCartAndProduct(ctx context.Context, cartID, productID, addQty, maxQty int64) error {
	if addQty <= 0 || maxQty <= 0 {
		return fmt.Errorf("upsert cart item: invalid quantity %d (max %d)", addQty, maxQty)
	}
	item := model.CartItem{CartID: cartID, ProductID: productID, Quantity: min(addQty, maxQty)}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "cart_id"}, {Name: "product_id"}},
			DoUpdates: clause.Set{{
				Column: clause.Column{Name: "quantity"},
				Value:  gorm.Expr("LEAST(cart_items.quantity + ?, ?)", addQty, maxQty),
			}},
		}).
		Create(&item).Error
	if err != nil {
		return fmt.Errorf("upsert cart item: %w", translate(err))
	}
	return nil
}

func (r *CartGormRepository) UpdateQuantity(ctx context.Context, cartItemID int64, qty int64) error {
	res := r.db.WithContext(ctx).Model(&model.CartItem{}).Where("id = ?", cartItemID).Update("quantity", qty)
	return affectedOne(res, "update cart item")
}

func (r *CartGormRepository) DeleteByID(ctx context.Context, cartItemID int64) error {
	return affectedOne(r.db.WithContext(ctx).Delete(&model.CartItem{}, cartItemID), "delete cart item")
}

func (r *CartGormRepository) FindByID(ctx context.Context, cartItemID int64) (model.CartItem, error) {
	var item model.CartItem
	if err := r.db.WithContext(ctx).First(&item, cartItemID).Error; err != nil {
		return model.CartItem{}, translate(err)
	}
	return item, nil
}

// 明細が本人の ACTIVE カートのものか
func (r *CartGormRepository) IsOwnedByUser(ctx context.Context, cartItemID int64, userID int64) (bool, error) {
	active := r.db.Model(&model.Cart{}).Select("id").
		Where("user_id = ? AND status = ?", userID, model.CartStatusActive)

	var count int64
	err := r.db.WithContext(ctx).Model(&model.CartItem{}).
		Where("id = ? AND cart_id IN (?)", cartItemID, active).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check cart item owner: %w", err)
	}
	return count > 0, nil
}

func affectedOne(res *gorm.DB, op string) error {
	if res.Error != nil {
		return fmt.Errorf("%s: %w", op, translate(res.Error))
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}
