package orders

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/storebridge/storebridge/internal/platform/httpx"
	"github.com/storebridge/storebridge/internal/platform/remote"
	"github.com/storebridge/storebridge/internal/threedcart"
)

// CustomerNotFoundError is returned when a pass-through order has no
// matching store customer in the ERP. It needs a human decision.
type CustomerNotFoundError struct {
	OrderID int64
	Email   string
	Company string
}

func (e *CustomerNotFoundError) Error() string {
	return fmt.Sprintf("orders: no store customer for order %d (email %q, company %q)", e.OrderID, e.Email, e.Company)
}

// ValidationError lists problems with an order's shape.
type ValidationError struct {
	OrderID int64
	Fields  []string
}

func (e *ValidationError) Error() string {
	if e.OrderID == 0 {
		return "invalid request: " + strings.Join(e.Fields, ", ")
	}
	return fmt.Sprintf("order %d is incomplete: %s", e.OrderID, strings.Join(e.Fields, ", "))
}

// Unwrap ties the error to the shared validation sentinel.
func (e *ValidationError) Unwrap() error {
	return httpx.ErrValidation
}

// IsCustomerNotFound reports whether err routes to manual action.
func IsCustomerNotFound(err error) bool {
	var cnf *CustomerNotFoundError
	return errors.As(err, &cnf)
}

// Retryable reports whether repeating a creation may succeed. Validation,
// authentication and missing-customer failures are final.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, httpx.ErrValidation), IsCustomerNotFound(err), errors.Is(err, threedcart.ErrOrderNotFound):
		return false
	case remote.IsStatus(err, http.StatusUnauthorized), remote.IsStatus(err, http.StatusForbidden):
		return false
	}
	return true
}
