package validator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"shop/internal/domain/model"
	"shop/internal/usecase"
)

var (
	// request is malformed
	ErrInvalidInput = errors.New("invalid input")

	// claimed total is under the configured minimum
	ErrAmountTooSmall = errors.New("amount below minimum")
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type orderValidator struct {
	minAmount model.Money
}

// NewOrderValidator returns the validator the order usecase is built with.
func NewOrderValidator(minAmount int64) usecase.OrderValidator {
	return &orderValidator{minAmount: model.Money(minAmount)}
}

func (v *orderValidator) ValidatePlace(in usecase.PlaceOrderInput) error {
	if strings.TrimSpace(in.CustomerName) == "" {
		return invalid("customer name is required")
	}
	if strings.TrimSpace(in.CustomerPhone) == "" {
		return invalid("customer phone is required")
	}
	if strings.TrimSpace(in.CustomerAddress) == "" {
		return invalid("customer address is required")
	}
	if err := validateEmail(in.CustomerEmail); err != nil {
		return err
	}

	switch in.PaymentMethod {
	case model.PaymentMethodCOD, model.PaymentMethodRedirect:
	default:
		return invalid(fmt.Sprintf("unknown payment method %q", in.PaymentMethod))
	}

	if err := validateItems(in.Items); err != nil {
		return err
	}

	if in.TotalAmount < v.minAmount {
		return fmt.Errorf("%w: total %s is below %s", ErrAmountTooSmall, in.TotalAmount, v.minAmount)
	}
	return nil
}

func (v *orderValidator) ValidateEdit(in usecase.EditOrderInput) error {
	for field, value := range map[string]*string{
		"customer name":    in.CustomerName,
		"customer phone":   in.CustomerPhone,
		"customer address": in.CustomerAddress,
	} {
		if value != nil && strings.TrimSpace(*value) == "" {
			return invalid(field + " must not be empty")
		}
	}
	if in.CustomerEmail != nil {
		if err := validateEmail(*in.CustomerEmail); err != nil {
			return err
		}
	}
	if in.Items != nil {
		return validateItems(in.Items)
	}
	return nil
}

func validateItems(items []usecase.ItemInput) error {
	if len(items) == 0 {
		return invalid("at least one item is required")
	}
	for i, it := range items {
		if it.ProductID < 1 {
			return invalid(fmt.Sprintf("items[%d]: productId must be positive", i))
		}
		if it.Quantity < 1 {
			return invalid(fmt.Sprintf("items[%d]: quantity must be at least 1", i))
		}
	}
	return nil
}

// email is optional
func validateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil
	}
	if !emailPattern.MatchString(email) {
		return invalid("customer email is malformed")
	}
	return nil
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}
