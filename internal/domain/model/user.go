package model

import "time"

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// 認証そのものは外部サービスが担う。ここではロールとトークン世代、紹介関係だけを参照する
type User struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	Email        string `gorm:"uniqueIndex;not null"`
	Role         Role   `gorm:"type:varchar(20);not null;default:'USER'"`
	TokenVersion int    `gorm:"not null;default:0"`
	IsActive     bool   `gorm:"not null;default:true"`

	//紹介コード（自分が配るもの）
	ReferralCode string `gorm:"type:varchar(32);uniqueIndex"`

	//紹介してくれたユーザー
	ReferredByUserID *int64 `gorm:"index"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
