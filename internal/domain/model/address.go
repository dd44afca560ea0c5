package model

import "time"

// 住所帳そのものの管理は外部。注文時に読み取ってスナップショットを作るだけ
type Address struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     int64     `gorm:"not null;index" json:"user_id"`
	Name       string    `gorm:"type:varchar(255);not null" json:"name"`
	Phone      string    `gorm:"type:varchar(30)" json:"phone"`
	PostalCode string    `gorm:"type:varchar(20);not null" json:"postal_code"`
	State      string    `gorm:"type:varchar(100);not null" json:"state"`
	City       string    `gorm:"type:varchar(255);not null" json:"city"`
	Line1      string    `gorm:"type:varchar(255);not null" json:"line1"`
	Line2      string    `gorm:"type:varchar(255)" json:"line2"`
	IsDefault  bool      `gorm:"not null;default:false" json:"is_default"`
	CreatedAt  time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time `gorm:"not null" json:"updated_at"`
}

// 注文に埋め込む住所のコピー。住所帳が後で変わっても注文側は変わらない
type ShippingAddress struct {
	Name       string `gorm:"type:varchar(255)" json:"name"`
	Phone      string `gorm:"type:varchar(30)" json:"phone"`
	PostalCode string `gorm:"type:varchar(20)" json:"postal_code"`
	State      string `gorm:"type:varchar(100)" json:"state"`
	City       string `gorm:"type:varchar(255)" json:"city"`
	Line1      string `gorm:"type:varchar(255)" json:"line1"`
	Line2      string `gorm:"type:varchar(255)" json:"line2"`
}

func (a Address) Snapshot() ShippingAddress {
	return ShippingAddress{
		Name:       a.Name,
		Phone:      a.Phone,
		PostalCode: a.PostalCode,
		State:      a.State,
		City:       a.City,
		Line1:      a.Line1,
		Line2:      a.Line2,
	}
}
