package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Виды ошибок. Конкретные ошибки ниже оборачивают один из видов, поэтому errors.Is срабатывает и на вид,
// и на конкретную ошибку.
var (
	ErrValidation      = errors.New("validation error")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrPolicyViolation = errors.New("policy violation")
	ErrUpstreamFailure = errors.New("upstream failure")
	ErrPartialFailure  = errors.New("partial failure")
)

// Ошибки слоя репозитория.
var (
	ErrRecordNotFound = fmt.Errorf("record %w", ErrNotFound)
	ErrDuplicateKey   = fmt.Errorf("duplicate key: %w", ErrConflict)
	ErrForeignKey     = errors.New("foreign key violation")
	ErrCheckViolation = errors.New("check constraint violation")
	ErrUnknown        = errors.New("unknown error")
)

var ErrCacheMiss = errors.New("cache miss")

var (
	ErrPackageNotFound    = fmt.Errorf("package %w", ErrNotFound)
	ErrInvestmentNotFound = fmt.Errorf("investment %w", ErrNotFound)
	ErrUserNotFound       = fmt.Errorf("user %w", ErrNotFound)
	ErrDetailsNotFound    = fmt.Errorf("user details %w", ErrNotFound)

	ErrDuplicateTransaction = fmt.Errorf("investment with same payment transaction reference exists: %w", ErrConflict)
	ErrDuplicateTitle       = fmt.Errorf("package with same title exists: %w", ErrConflict)
	ErrDuplicateEmail       = fmt.Errorf("user with same email exists: %w", ErrConflict)
	ErrDetailsPresent       = fmt.Errorf("user details present: %w", ErrConflict)
	ErrDuplicatePayout      = fmt.Errorf("payout with same transaction reference exists: %w", ErrConflict)
	ErrPackageInUse         = fmt.Errorf("package has investments: %w", ErrConflict)
	ErrInvestmentHasPayouts = fmt.Errorf("investment has payouts: %w", ErrConflict)

	ErrInsufficientUnits        = fmt.Errorf("insufficient units: %w", ErrPolicyViolation)
	ErrCancellationWindowClosed = fmt.Errorf("too late to cancel investment: %w", ErrPolicyViolation)
	ErrPaymentRejected          = fmt.Errorf("payment rejected: %w", ErrPolicyViolation)

	ErrRefundFailed = fmt.Errorf("investment cancellation failed: %w", ErrUpstreamFailure)

	ErrForbidden         = errors.New("forbidden")
	ErrPasswordMissMatch = errors.New("password mismatch")
)

// ValidationError ошибка входных данных с детализацией по полям.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError(fields map[string]string) *ValidationError {
	return &ValidationError{Fields: fields}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return fmt.Sprintf("validation error: %s", strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// PaymentRejectedError платеж не прошел правило приема. Reason описывает, какое условие не выполнилось.
type PaymentRejectedError struct {
	Reason string
}

func NewPaymentRejectedError(reason string) error {
	return &PaymentRejectedError{Reason: reason}
}

func (e *PaymentRejectedError) Error() string {
	return fmt.Sprintf("invalid transaction: %s", e.Reason)
}

func (e *PaymentRejectedError) Unwrap() error {
	return ErrPaymentRejected
}

// PartialFailureError последовательность изменений прервалась посередине. Состояние требует сверки оператором.
type PartialFailureError struct {
	Op           string
	InvestmentID int64
	TxRef        string
	Err          error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf(
		"%s: investment %d (tx %s) requires reconciliation: %s",
		e.Op,
		e.InvestmentID,
		e.TxRef,
		e.Err,
	)
}

func (e *PartialFailureError) Unwrap() []error {
	return []error{ErrPartialFailure, e.Err}
}

// GatewayError платежный шлюз ответил отказом. Message берется из тела ответа шлюза.
type GatewayError struct {
	StatusCode int
	Message    string
}

func NewGatewayError(statusCode int, message string) *GatewayError {
	return &GatewayError{StatusCode: statusCode, Message: message}
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway responded with status %d: %s", e.StatusCode, e.Message)
}

func (e *GatewayError) Unwrap() error {
	return ErrUpstreamFailure
}

// IsClientError шлюз отклонил запрос как некорректный (4xx), например из-за неизвестной транзакции.
func (e *GatewayError) IsClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}
