package usecase

import (
	"context"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

// 住所帳の参照。注文時に選ぶ address_id を返す
type AddressUsecase struct {
	tx repo.TransactionManager
}

func NewAddressUsecase(tx repo.TransactionManager) *AddressUsecase {
	return &AddressUsecase{tx: tx}
}

type AddressOutput struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Phone      string `json:"phone,omitempty"`
	PostalCode string `json:"postal_code"`
	State      string `json:"state"`
	City       string `json:"city"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	IsDefault  bool   `json:"is_default"`
}

func toAddressOutput(a model.Address) AddressOutput {
	return AddressOutput{
		ID:         a.ID,
		Name:       a.Name,
		Phone:      a.Phone,
		PostalCode: a.PostalCode,
		State:      a.State,
		City:       a.City,
		Line1:      a.Line1,
		Line2:      a.Line2,
		IsDefault:  a.IsDefault,
	}
}

func (u *AddressUsecase) List(ctx context.Context, userID int64) ([]AddressOutput, error) {
	if userID <= 0 {
		return nil, errUnauthorized()
	}

	out := []AddressOutput{}
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		rows, err := r.Addresses().ListByUserID(ctx, userID)
		if err != nil {
			return dbError(err)
		}
		for _, a := range rows {
			out = append(out, toAddressOutput(a))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
