package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/usecase"
)

type sampleRequest struct {
	AddressID     int64  `json:"address_id" validate:"required,gt=0"`
	PaymentMethod string `json:"payment_method" validate:"required"`
	CouponCode    string `json:"coupon_code" validate:"omitempty,max=32"`
}

func TestValidate_OK(t *testing.T) {
	v := New()

	err := v.Validate(&sampleRequest{AddressID: 1, PaymentMethod: "cod"})

	assert.NoError(t, err)
}

func TestValidate_FieldsUseJSONNames(t *testing.T) {
	v := New()

	err := v.Validate(&sampleRequest{CouponCode: "THIS-COUPON-CODE-IS-WAY-TOO-LONG-TO-ACCEPT"})

	he, ok := usecase.AsHTTPError(err)
	require.True(t, ok)
	assert.Equal(t, 400, he.Status)
	assert.Equal(t, usecase.CodeValidation, he.Code)

	fields, ok := he.Details["fields"].(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "required", fields["address_id"])
	assert.Equal(t, "required", fields["payment_method"])
	assert.Equal(t, "max=32", fields["coupon_code"])
}
