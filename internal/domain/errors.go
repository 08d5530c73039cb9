package domain

import "errors"

var (
	ErrInvalidDuration     = errors.New("duration must be positive")
	ErrAccrualDisabled     = errors.New("reward rate is disabled")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidMode         = errors.New("operation not allowed in current mode")
	ErrNegativeAmount      = errors.New("amount must not be negative")
)

// Reason returns a stable machine-readable code for a rejected operation,
// or "" when err is not one of the domain rejections.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidDuration):
		return "invalid_duration"
	case errors.Is(err, ErrAccrualDisabled):
		return "accrual_disabled"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrInvalidMode):
		return "invalid_mode"
	case errors.Is(err, ErrNegativeAmount):
		return "negative_amount"
	default:
		return ""
	}
}
