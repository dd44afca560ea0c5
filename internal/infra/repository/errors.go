package repository

import (
	"errors"

	"gorm.io/gorm"

	repo "storefront/internal/repository"
)

// gorm のエラーを repository の番兵エラーへ寄せる
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return repo.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return repo.ErrDuplicateKey
	}
	return err
}

func pageOffset(page, limit int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return (page - 1) * limit, limit
}
