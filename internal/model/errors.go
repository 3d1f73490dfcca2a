package model

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases.
// Use errors.Is() to check against these.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrCatalogFetch      = errors.New("catalog fetch failed")
	ErrStorage           = errors.New("storage failure")
)

// APIError represents a structured error for API responses.
// Implements error interface and supports unwrapping.
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"` // HTTP status, not serialized
	Err        error  `json:"-"` // Wrapped error, not serialized
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// NewNotFoundError creates a 404 error for missing resources.
func NewNotFoundError(resource string) *APIError {
	return &APIError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: 404,
		Err:        ErrNotFound,
	}
}

// NewValidationError creates a 400 error for invalid input.
func NewValidationError(field, reason string) *APIError {
	return &APIError{
		Code:       "VALIDATION_ERROR",
		Message:    fmt.Sprintf("invalid %s: %s", field, reason),
		StatusCode: 400,
		Err:        ErrInvalidRequest,
	}
}

// NewStockError creates a 409 error for insufficient inventory.
// The message names the remaining quantity so it can be displayed to the
// shopper without further formatting.
func NewStockError(productName string, remaining int) *APIError {
	if remaining < 0 {
		remaining = 0
	}
	var msg string
	switch remaining {
	case 0:
		msg = fmt.Sprintf("%s is out of stock", productName)
	case 1:
		msg = fmt.Sprintf("only 1 unit of %s left in stock", productName)
	default:
		msg = fmt.Sprintf("only %d units of %s left in stock", remaining, productName)
	}
	return &APIError{
		Code:       "INSUFFICIENT_STOCK",
		Message:    msg,
		StatusCode: 409,
		Err:        ErrInsufficientStock,
	}
}

// NewCatalogError creates a 502 error for catalog backend failures.
func NewCatalogError(err error) *APIError {
	return &APIError{
		Code:       "CATALOG_UNAVAILABLE",
		Message:    "product catalog is temporarily unavailable",
		StatusCode: 502,
		Err:        fmt.Errorf("%w: %v", ErrCatalogFetch, err),
	}
}

// NewStorageError creates a 500 error for persistence failures.
// op names the failed operation ("load", "save", "clear").
func NewStorageError(op string, err error) *APIError {
	return &APIError{
		Code:       "STORAGE_ERROR",
		Message:    fmt.Sprintf("could not %s the saved cart", op),
		StatusCode: 500,
		Err:        fmt.Errorf("%w: %v", ErrStorage, err),
	}
}

// NewInternalError creates a 500 error for unexpected failures.
func NewInternalError(err error) *APIError {
	return &APIError{
		Code:       "INTERNAL_ERROR",
		Message:    "an internal error occurred",
		StatusCode: 500,
		Err:        err,
	}
}
