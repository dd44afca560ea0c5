package repository

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// 一意制約違反（注文コード衝突、同一キーの二重登録など）
	ErrDuplicateKey = errors.New("duplicate key")
)
