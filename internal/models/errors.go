package models

import "errors"

var (
	// ErrInvalid matches every validation error declared in this package
	// or built with NewValidationError.
	ErrInvalid = errors.New("invalid input")
	// ErrConflict matches uniqueness and referential conflicts.
	ErrConflict = errors.New("conflict")
)

type validationError string

func (e validationError) Error() string        { return string(e) }
func (e validationError) Is(target error) bool { return target == ErrInvalid }

type conflictError string

func (e conflictError) Error() string        { return string(e) }
func (e conflictError) Is(target error) bool { return target == ErrConflict }

// NewValidationError returns an error that matches ErrInvalid.
func NewValidationError(msg string) error {
	return validationError(msg)
}

var (
	ErrLoginRequired    = NewValidationError("login is required")
	ErrLoginFormat      = NewValidationError("login must contain only latin letters and digits")
	ErrLoginTooLong     = NewValidationError("login must not exceed 50 characters")
	ErrFullNameRequired = NewValidationError("full name is required")
	ErrFullNameTooLong  = NewValidationError("full name must not exceed 150 characters")
	ErrInvalidRole      = NewValidationError("role must be Admin or User")
	ErrSelfDelete       = NewValidationError("you cannot delete your own account")

	ErrCategoryNameRequired = NewValidationError("category name is required")
	ErrCategoryNameLength   = NewValidationError("category name must be between 2 and 50 characters")

	ErrPaymentDateRequired     = NewValidationError("payment date is required")
	ErrPaymentUserRequired     = NewValidationError("payment user is required")
	ErrPaymentCategoryRequired = NewValidationError("payment category is required")
	ErrPaymentNameRequired     = NewValidationError("payment name is required")
	ErrPaymentNameTooLong      = NewValidationError("payment name must not exceed 200 characters")
	ErrQuantityNotPositive     = NewValidationError("quantity must be greater than 0")
	ErrQuantityTooLarge        = NewValidationError("quantity is too large")
	ErrPriceNotPositive        = NewValidationError("price must be greater than 0")
	ErrPriceTooLarge           = NewValidationError("price is too large")

	ErrPeriodRequired = NewValidationError("start and end dates are required")
	ErrPeriodOrder    = NewValidationError("start date cannot be after end date")
)

var (
	ErrUserExists          error = conflictError("user already exists")
	ErrCategoryExists      error = conflictError("category already exists")
	ErrUserHasPayments     error = conflictError("user has payments and cannot be deleted")
	ErrCategoryHasPayments error = conflictError("category has payments and cannot be deleted")
)
