// Package validator は echo の Validator として go-playground/validator を使う。
package validator

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"storefront/internal/usecase"
)

type RequestValidator struct {
	v *validator.Validate
}

func New() *RequestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// エラーのフィールド名は json タグに合わせる
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return &RequestValidator{v: v}
}

// Validate は違反フィールドを details.fields に詰めた VALIDATION_ERROR を返す
func (rv *RequestValidator) Validate(i any) error {
	err := rv.v.Struct(i)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return usecase.NewBusinessError(http.StatusBadRequest, usecase.CodeValidation, "invalid body", nil)
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = rule(fe)
	}
	return usecase.NewBusinessError(http.StatusBadRequest, usecase.CodeValidation, "invalid body",
		map[string]any{"fields": fields})
}

func rule(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}
