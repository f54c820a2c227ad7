package errors

import (
	"fmt"
	"net/http"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

const (
	CodeValidation          = "E100"
	CodeDatabase            = "E200"
	CodeUpstreamDelivery    = "E300"
	CodeUnauthorized        = "E401"
	CodeItemNotFound        = "E404"
	CodeBotNotFound         = "E405"
	CodeNotConfigured       = "E410"
	CodeInsufficientEnergy  = "E411"
	CodeInsufficientBalance = "E412"
	CodeWrongCurrency       = "E413"
	CodeRateLimited         = "E429"
)

type AppError struct {
	Code        string
	Message     string
	UserMessage string
	// MessageKey is the i18n key of UserMessage.
	MessageKey string
	HTTPStatus int
	Severity   Severity
	Retryable  bool
	cause      error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}

	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.cause
}

func (e *AppError) Cause() error {
	return e.Unwrap()
}

// Is matches any AppError carrying the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok || e == nil || t == nil {
		return false
	}

	return e.Code == t.Code
}

// Status returns the HTTP status for e, defaulting to 500.
func (e *AppError) Status() int {
	if e == nil || e.HTTPStatus == 0 {
		return http.StatusInternalServerError
	}

	return e.HTTPStatus
}

// Sentinels for errors.Is checks.
var (
	ErrNotConfigured       = NewNotConfiguredError()
	ErrInsufficientEnergy  = NewInsufficientEnergyError()
	ErrInsufficientBalance = NewInsufficientBalanceError()
	ErrItemNotFound        = NewItemNotFoundError(0)
	ErrWrongCurrency       = NewWrongCurrencyError("")
	ErrBotNotFound         = NewBotNotFoundError(0)
	ErrUnauthorized        = NewUnauthorizedError("")
	ErrUpstreamDelivery    = NewUpstreamDeliveryError("", nil)
	ErrValidation          = NewValidationError("")
	ErrRateLimited         = NewRateLimitedError()
)

func NewValidationError(msg string) *AppError {
	return &AppError{
		Code:        CodeValidation,
		Message:     msg,
		UserMessage: msg,
		MessageKey:  "errors.validation",
		HTTPStatus:  http.StatusBadRequest,
		Severity:    SeverityLow,
		Retryable:   false,
		cause:       nil,
	}
}

func NewDatabaseError(cause error) *AppError {
	var underlyingMsg string
	if cause != nil {
		underlyingMsg = cause.Error()
	}

	return &AppError{
		Code:        CodeDatabase,
		Message:     fmt.Sprintf("Database error: %s", underlyingMsg),
		UserMessage: "Temporary problem, please try again later",
		MessageKey:  "errors.internal",
		HTTPStatus:  http.StatusInternalServerError,
		Severity:    SeverityHigh,
		Retryable:   true,
		cause:       cause,
	}
}

func NewUpstreamDeliveryError(apiName string, cause error) *AppError {
	return &AppError{
		Code:        CodeUpstreamDelivery,
		Message:     fmt.Sprintf("Upstream delivery failed: %s", apiName),
		UserMessage: "Service temporarily unavailable",
		MessageKey:  "errors.internal",
		HTTPStatus:  http.StatusBadGateway,
		Severity:    SeverityMedium,
		Retryable:   true,
		cause:       cause,
	}
}

func NewUnauthorizedError(msg string) *AppError {
	return &AppError{
		Code:        CodeUnauthorized,
		Message:     fmt.Sprintf("Unauthorized: %s", msg),
		UserMessage: "Unauthorized",
		MessageKey:  "errors.unauthorized",
		HTTPStatus:  http.StatusUnauthorized,
		Severity:    SeverityLow,
		Retryable:   false,
		cause:       nil,
	}
}

func NewItemNotFoundError(itemID int64) *AppError {
	return &AppError{
		Code:        CodeItemNotFound,
		Message:     fmt.Sprintf("shop item %d not found", itemID),
		UserMessage: "Item not found",
		MessageKey:  "economy.item_not_found",
		HTTPStatus:  http.StatusNotFound,
		Severity:    SeverityLow,
		Retryable:   false,
		cause:       nil,
	}
}

func NewBotNotFoundError(botID int64) *AppError {
	return &AppError{
		Code:        CodeBotNotFound,
		Message:     fmt.Sprintf("bot %d not found", botID),
		UserMessage: "Bot not found",
		MessageKey:  "errors.bot_not_found",
		HTTPStatus:  http.StatusNotFound,
		Severity:    SeverityLow,
		Retryable:   false,
		cause:       nil,
	}
}

func NewNotConfiguredError() *AppError {
	return &AppError{
		Code:        CodeNotConfigured,
		Message:     "mining settings are not configured",
		UserMessage: "Mining not configured",
		MessageKey:  "economy.not_configured",
		HTTPStatus:  http.StatusBadRequest,
		Severity:    SeverityLow,
		Retryable:   false,
		cause:       nil,
	}
}

func NewInsufficientEnergyError() *AppError {
	return &AppError{
		Code:        CodeInsufficientEnergy,
		Message:     "insufficient energy",
		UserMessage: "No energy",
		MessageKey:  "economy.no_energy",
		HTTPStatus:  http.StatusBadRequest,
		Severity:    SeverityLow,
		Retryable:   false,
		cause:       nil,
	}
}

func NewInsufficientBalanceError() *AppError {
	return &AppError{
		Code:        CodeInsufficientBalance,
		Message:     "insufficient coin balance",
		UserMessage: "Insufficient coins",
		MessageKey:  "economy.insufficient_coins",
		HTTPStatus:  http.StatusBadRequest,
		Severity:    SeverityLow,
		Retryable:   false,
		cause:       nil,
	}
}

func NewWrongCurrencyError(currency string) *AppError {
	return &AppError{
		Code:        CodeWrongCurrency,
		Message:     fmt.Sprintf("item currency %q cannot be settled in coins", currency),
		UserMessage: "This item requires TON payment",
		MessageKey:  "economy.requires_ton",
		HTTPStatus:  http.StatusBadRequest,
		Severity:    SeverityLow,
		Retryable:   false,
		cause:       nil,
	}
}

func NewRateLimitedError() *AppError {
	return &AppError{
		Code:        CodeRateLimited,
		Message:     "rate limit exceeded",
		UserMessage: "Too many requests, slow down",
		MessageKey:  "errors.rate_limited",
		HTTPStatus:  http.StatusTooManyRequests,
		Severity:    SeverityLow,
		Retryable:   true,
		cause:       nil,
	}
}
