package usecase

import (
	"errors"
	"fmt"

	"github.com/Ayflow350/Ice-empire/internal/domain/model"
)

// エラーの種類（handlerはHTTPErrorのStatusだけ見る）
var (
	ErrValidation           = errors.New("validation error")
	ErrGateway              = errors.New("gateway error")
	ErrVerificationMismatch = errors.New("verification mismatch")
	ErrSignature            = errors.New("invalid signature")
	ErrOrderNotFound        = errors.New("order not found")
)

type HTTPError struct {
	Status  int
	Message string
	Err     error
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

func NewHTTPError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Message: message,
	}
}

// 種類つき（errors.Is で判定できる）
func newKindError(kind error, status int, message string) error {
	return &HTTPError{
		Status:  status,
		Message: message,
		Err:     kind,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

// 決済エラーに注文の情報を添える（handlerがレスポンスに含める）
type PaymentError struct {
	Err       error
	Reference string       //ゲートウェイ失敗時の再試行用
	Order     *model.Order //照合NGで確定した注文
}

func (e *PaymentError) Error() string {
	return e.Err.Error()
}

func (e *PaymentError) Unwrap() error {
	return e.Err
}

func withReference(err error, reference string) error {
	return &PaymentError{Err: err, Reference: reference}
}

func withOrder(err error, o model.Order) error {
	return &PaymentError{Err: err, Order: &o}
}

func AsPaymentError(err error) (*PaymentError, bool) {
	var pe *PaymentError
	ok := errors.As(err, &pe)
	return pe, ok
}
