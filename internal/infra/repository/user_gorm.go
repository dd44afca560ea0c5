package repository

import (
	"context"

	"gorm.io/gorm"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

type userGormRepository struct {
	db *gorm.DB
}

// DI
func NewUserGormRepository(db *gorm.DB) repo.UserRepository {
	return &userGormRepository{db: db}
}

func (r *userGormRepository) FindByID(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (r *userGormRepository) FindByReferralCode(ctx context.Context, code string) (*model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).Where("referral_code = ?", code).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

// 紹介元は一度だけ設定できる
func (r *userGormRepository) SetReferredBy(ctx context.Context, userID, referrerID int64) error {
	res := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ? AND referred_by_user_id IS NULL", userID).
		Update("referred_by_user_id", referrerID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrDuplicateKey
	}
	return nil
}
