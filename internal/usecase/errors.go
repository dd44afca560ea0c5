package usecase

import (
	"errors"
	"fmt"
	"net/http"
)

// 業務エラーの理由コード（レスポンスの code）
const (
	CodeValidation               = "VALIDATION_ERROR"
	CodeUnauthorized             = "UNAUTHORIZED"
	CodeForbidden                = "FORBIDDEN"
	CodeNotFound                 = "NOT_FOUND"
	CodeInternal                 = "INTERNAL_ERROR"
	CodeCartEmpty                = "CART_EMPTY"
	CodeProductUnavailable       = "PRODUCT_UNAVAILABLE"
	CodeInsufficientStock        = "INSUFFICIENT_STOCK"
	CodeStockConflict            = "STOCK_CONFLICT"
	CodeInvalidOrExpiredCoupon   = "INVALID_OR_EXPIRED_COUPON"
	CodeBelowMinimumPurchase     = "BELOW_MINIMUM_PURCHASE"
	CodeCouponAlreadyUsed        = "COUPON_ALREADY_USED"
	CodeCouponExceedsTotal       = "COUPON_EXCEEDS_TOTAL"
	CodeInsufficientWallet       = "INSUFFICIENT_WALLET_BALANCE"
	CodePaymentVerification      = "PAYMENT_VERIFICATION_FAILED"
	CodeOrderNotAwaitingPayment  = "ORDER_NOT_AWAITING_PAYMENT"
	CodePostCaptureInconsistency = "POST_CAPTURE_INCONSISTENCY"
	CodeInvalidState             = "INVALID_STATE"
	CodeGateway                  = "GATEWAY_ERROR"
	CodeOrderCodeConflict        = "ORDER_CODE_CONFLICT"
)

type HTTPError struct {
	Status  int
	Code    string
	Message string
	Details map[string]any

	cause error
}

func (e *HTTPError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%d: %s: %v", e.Status, e.Message, e.cause)
	}
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func (e *HTTPError) Unwrap() error {
	return e.cause
}

// 再試行してよいエラーか（在庫競合・注文コード衝突）
func (e *HTTPError) Retryable() bool {
	v, _ := e.Details["retryable"].(bool)
	return v
}

func NewHTTPError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Code:    codeForStatus(status),
		Message: message,
	}
}

func NewBusinessError(status int, code, message string, details map[string]any) error {
	return &HTTPError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

// 原因を保持した500（ログ用）
func dbError(err error) error {
	return &HTTPError{
		Status:  http.StatusInternalServerError,
		Code:    CodeInternal,
		Message: "db error",
		cause:   err,
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return CodeValidation
	case http.StatusUnauthorized:
		return CodeUnauthorized
	case http.StatusForbidden:
		return CodeForbidden
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusConflict:
		return CodeInvalidState
	}
	return CodeInternal
}

func errUnauthorized() error { return NewHTTPError(http.StatusUnauthorized, "unauthorized") }
func errForbidden() error    { return NewHTTPError(http.StatusForbidden, "forbidden") }
func errNotFound(what string) error {
	return NewHTTPError(http.StatusNotFound, what+" not found")
}

func errInvalidState(message string, details map[string]any) error {
	return NewBusinessError(http.StatusConflict, CodeInvalidState, message, details)
}

func errStockConflict(productID int64) error {
	return NewBusinessError(http.StatusConflict, CodeStockConflict, "stock changed during checkout, please retry",
		map[string]any{"product_id": productID, "retryable": true})
}
