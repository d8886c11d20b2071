package core

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorValidationFailed = "INBOX_VALIDATION_FAILED"
	ErrorMessageNotFound  = "INBOX_MESSAGE_NOT_FOUND"
	ErrorUnknownEvent     = "INBOX_UNKNOWN_EVENT"
	ErrorStorageFailed    = "INBOX_STORAGE_FAILED"
	ErrorBadInput         = "INBOX_BAD_INPUT"
	ErrorInternal         = "INBOX_INTERNAL_ERROR"
)

// ErrorKind is the processing classification of an ingestion failure.
type ErrorKind string

const (
	ErrorKindNone         ErrorKind = ""
	ErrorKindValidation   ErrorKind = "validation"
	ErrorKindNotFound     ErrorKind = "not_found"
	ErrorKindUnknownEvent ErrorKind = "unknown_event"
	ErrorKindStorage      ErrorKind = "storage"
	ErrorKindInternal     ErrorKind = "internal"
)

func NewValidationError(message string, fields ...goerrors.FieldError) error {
	if strings.TrimSpace(message) == "" {
		message = "validation failed"
	}
	sort.SliceStable(fields, func(i, j int) bool { return fields[i].Field < fields[j].Field })
	return goerrors.NewValidation(message, fields...).
		WithCode(http.StatusUnprocessableEntity).
		WithTextCode(ErrorValidationFailed).
		WithSeverity(goerrors.SeverityError)
}

// NewFieldValidationError builds a validation error from a field path to
// reasons map.
func NewFieldValidationError(message string, fields map[string][]string) error {
	out := make([]goerrors.FieldError, 0, len(fields))
	for field, reasons := range fields {
		for _, reason := range reasons {
			out = append(out, goerrors.FieldError{Field: field, Message: reason})
		}
	}
	return NewValidationError(message, out...)
}

func NewNotFoundError(message string, metadata map[string]any) error {
	err := goerrors.New(message, goerrors.CategoryNotFound).
		WithCode(http.StatusNotFound).
		WithTextCode(ErrorMessageNotFound)
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}

func NewUnknownEventError(envelopeType string, eventType string) error {
	return goerrors.New("unknown webhook event type", goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorUnknownEvent).
		WithMetadata(map[string]any{
			"type":       envelopeType,
			"event_type": eventType,
		})
}

func WrapStorageError(err error, message string) error {
	if err == nil {
		return nil
	}
	return goerrors.Wrap(err, goerrors.CategoryOperation, message).
		WithCode(http.StatusServiceUnavailable).
		WithTextCode(ErrorStorageFailed)
}

func NewBadInputError(message string) error {
	return goerrors.New(message, goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorBadInput)
}

func NewInternalError(message string) error {
	return goerrors.New(message, goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(ErrorInternal)
}

// ErrorKindOf classifies err. Errors that carry no inbox classification are
// treated as storage failures, the only retryable kind.
func ErrorKindOf(err error) ErrorKind {
	if err == nil {
		return ErrorKindNone
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return ErrorKindStorage
	}
	switch rich.TextCode {
	case ErrorValidationFailed, ErrorBadInput:
		return ErrorKindValidation
	case ErrorMessageNotFound:
		return ErrorKindNotFound
	case ErrorUnknownEvent:
		return ErrorKindUnknownEvent
	case ErrorStorageFailed:
		return ErrorKindStorage
	case ErrorInternal:
		return ErrorKindInternal
	}
	switch rich.Category {
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return ErrorKindValidation
	case goerrors.CategoryNotFound:
		return ErrorKindNotFound
	case goerrors.CategoryInternal:
		return ErrorKindInternal
	default:
		return ErrorKindStorage
	}
}

func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return ErrorKindOf(err) == ErrorKindStorage
}

// IsPermanent reports classified failures that must not be retried.
func IsPermanent(err error) bool {
	switch ErrorKindOf(err) {
	case ErrorKindValidation, ErrorKindNotFound, ErrorKindUnknownEvent:
		return true
	default:
		return false
	}
}

// ValidationFields rebuilds the field path to reasons map of a validation
// error. It returns nil for any other error.
func ValidationFields(err error) map[string][]string {
	var rich *goerrors.Error
	if err == nil || !goerrors.As(err, &rich) {
		return nil
	}
	fieldErrors := rich.AllValidationErrors()
	if len(fieldErrors) == 0 {
		return nil
	}
	out := make(map[string][]string, len(fieldErrors))
	for _, fieldErr := range fieldErrors {
		out[fieldErr.Field] = append(out[fieldErr.Field], fieldErr.Message)
	}
	return out
}

// MapError converts any error into a go-errors envelope with inbox text codes.
func MapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return ensureErrorEnvelope(rich)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ensureErrorEnvelope(goerrors.Wrap(err, goerrors.CategoryOperation, "operation timed out").
			WithTextCode(ErrorStorageFailed))
	}
	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureErrorEnvelope(mapped)
}

func ensureErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = httpStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryValidation:
		return ErrorValidationFailed
	case goerrors.CategoryBadInput:
		return ErrorBadInput
	case goerrors.CategoryNotFound:
		return ErrorMessageNotFound
	case goerrors.CategoryOperation, goerrors.CategoryExternal:
		return ErrorStorageFailed
	default:
		return ErrorInternal
	}
}

func httpStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryValidation:
		return http.StatusUnprocessableEntity
	case goerrors.CategoryBadInput:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryOperation, goerrors.CategoryExternal:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
