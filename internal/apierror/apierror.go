package apierror

import (
	"errors"
	"net/http"
	"strings"

	catalogdomain "github.com/smallbiznis/catalog/internal/catalog/domain"
	typedomain "github.com/smallbiznis/catalog/internal/catalogtype/domain"
	"github.com/smallbiznis/catalog/pkg/db/pagination"
	"gorm.io/gorm"
)

type Kind string

const (
	KindNotFound   Kind = "not_found"
	KindDisabled   Kind = "disabled"
	KindValidation Kind = "validation_error"
	KindConflict   Kind = "conflict"
	KindInternal   Kind = "internal_error"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

func NewValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

type Payload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

// Error is the external rendering of a failed operation.
type Error struct {
	Kind    Kind    `json:"-"`
	Status  int     `json:"-"`
	Payload Payload `json:"error"`
}

var (
	ErrInvalidRequest = errors.New("invalid_request")
	ErrInternal       = errors.New("internal_error")
)

func Map(err error) Error {
	if err == nil {
		return internal()
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return Error{
			Kind:   KindValidation,
			Status: http.StatusBadRequest,
			Payload: Payload{
				Type:    string(KindValidation),
				Message: "validation error",
				Errors:  vErr.Errors,
			},
		}
	}

	switch {
	case isValidationError(err):
		code := err.Error()
		return Error{
			Kind:   KindValidation,
			Status: http.StatusBadRequest,
			Payload: Payload{
				Type:    string(KindValidation),
				Message: "validation error",
				Errors: []ValidationError{
					{
						Field:   validationErrorField(code),
						Code:    code,
						Message: validationErrorMessage(code),
					},
				},
			},
		}
	case isNotFoundError(err):
		return Error{
			Kind:    KindNotFound,
			Status:  http.StatusNotFound,
			Payload: Payload{Type: string(KindNotFound), Message: err.Error()},
		}
	case isDisabledError(err):
		return Error{
			Kind:    KindDisabled,
			Status:  http.StatusNotFound,
			Payload: Payload{Type: string(KindDisabled), Message: err.Error()},
		}
	case isConflictError(err):
		return Error{
			Kind:    KindConflict,
			Status:  http.StatusConflict,
			Payload: Payload{Type: string(KindConflict), Message: err.Error()},
		}
	default:
		return internal()
	}
}

func internal() Error {
	return Error{
		Kind:   KindInternal,
		Status: http.StatusInternalServerError,
		Payload: Payload{
			Type:    string(KindInternal),
			Message: "internal server error",
		},
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, pagination.ErrInvalidPage),
		errors.Is(err, pagination.ErrInvalidPageSize),
		errors.Is(err, catalogdomain.ErrInvalidID),
		errors.Is(err, catalogdomain.ErrInvalidParentID),
		errors.Is(err, catalogdomain.ErrInvalidName),
		errors.Is(err, catalogdomain.ErrInvalidSortOrder),
		errors.Is(err, catalogdomain.ErrInvalidThumb),
		errors.Is(err, catalogdomain.ErrTypeRequired),
		errors.Is(err, catalogdomain.ErrTypeMismatch),
		errors.Is(err, catalogdomain.ErrCyclicMove),
		errors.Is(err, catalogdomain.ErrPathTooLong),
		errors.Is(err, catalogdomain.ErrInvalidMaxLevel),
		errors.Is(err, catalogdomain.ErrInvalidOrderBy),
		errors.Is(err, catalogdomain.ErrInvalidOrderDir),
		errors.Is(err, typedomain.ErrInvalidID),
		errors.Is(err, typedomain.ErrInvalidCode),
		errors.Is(err, typedomain.ErrInvalidName),
		errors.Is(err, typedomain.ErrInvalidOrderBy),
		errors.Is(err, typedomain.ErrInvalidOrderDir):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, catalogdomain.ErrNotFound),
		errors.Is(err, catalogdomain.ErrParentNotFound),
		errors.Is(err, typedomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isDisabledError(err error) bool {
	switch {
	case errors.Is(err, catalogdomain.ErrDisabled),
		errors.Is(err, catalogdomain.ErrParentDisabled),
		errors.Is(err, typedomain.ErrDisabled):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, catalogdomain.ErrMoveInProgress),
		errors.Is(err, typedomain.ErrCodeTaken),
		errors.Is(err, typedomain.ErrInUse),
		errors.Is(err, gorm.ErrDuplicatedKey):
		return true
	default:
		return false
	}
}

func validationErrorField(code string) string {
	switch code {
	case "invalid_request":
		return "request"
	case "catalog_type_required", "catalog_type_mismatch":
		return "type"
	case "catalog_cyclic_move":
		return "parent_id"
	case "catalog_path_too_long":
		return "path"
	}
	field := strings.TrimPrefix(code, "invalid_")
	field = strings.TrimSuffix(field, "_id")
	switch {
	case strings.HasPrefix(field, "catalog_type_"):
		field = strings.TrimPrefix(field, "catalog_type_")
	case strings.HasPrefix(field, "catalog_"):
		field = strings.TrimPrefix(field, "catalog_")
	}
	if strings.HasSuffix(code, "_id") {
		return field + "_id"
	}
	return field
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "catalog_cyclic_move":
		return "a catalog cannot move under itself or its descendants"
	case "catalog_type_mismatch":
		return "parent belongs to a different catalog type"
	default:
		return "invalid value"
	}
}
