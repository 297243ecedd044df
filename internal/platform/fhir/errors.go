package fhir

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/ehr/fhirbridge/internal/platform/search"
)

var (
	// ErrNotFound means the id does not resolve to a live record.
	ErrNotFound = errors.New("resource not found")
	// ErrIDMismatch means a resource's own id disagrees with the request id.
	ErrIDMismatch = errors.New("resource id does not match request id")
	// ErrMissingID means an update carried a resource without an id.
	ErrMissingID = errors.New("resource id is required")
)

// ValidationError reports a resource that failed structural validation.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	var verrs validator.ValidationErrors
	if !errors.As(e.Err, &verrs) {
		return "invalid resource: " + e.Err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return "invalid resource: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() error { return e.Err }

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks a resource against its struct tags.
func Validate(resource interface{}) error {
	if err := validate.Struct(resource); err != nil {
		return &ValidationError{Err: err}
	}
	return nil
}

// StatusFor maps an error to the HTTP status of its OperationOutcome.
func StatusFor(err error) int {
	var verr *ValidationError
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrIDMismatch), errors.Is(err, ErrMissingID),
		errors.Is(err, search.ErrInvalidParameter), errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// ErrorResponse writes err as an OperationOutcome.
func ErrorResponse(c echo.Context, err error, resourceType, id string) error {
	status := StatusFor(err)
	switch status {
	case http.StatusNotFound:
		return c.JSON(status, NotFoundOutcome(resourceType, id))
	case http.StatusBadRequest:
		return c.JSON(status, InvalidOutcome(err.Error()))
	case http.StatusGatewayTimeout:
		return c.JSON(status, NewOperationOutcome(IssueSeverityError, IssueTypeTimeout, "request processing exceeded the allowed time"))
	default:
		return c.JSON(status, ErrorOutcome(err.Error()))
	}
}
