package entitlement

import (
	"errors"
	"fmt"
)

// NotFoundError reports a museum or bundle that does not exist in the
// catalog.  Resource is "museum" or "bundle".
type NotFoundError struct {
	Resource string
	ID       uint64
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}

// Is matches any NotFoundError when the target carries no resource, so
// errors.Is(err, ErrNotFound) works for every kind.  A target with a
// resource only matches the same resource.
func (e NotFoundError) Is(target error) bool {
	var t NotFoundError
	switch v := target.(type) {
	case NotFoundError:
		t = v
	case *NotFoundError:
		if v == nil {
			return false
		}
		t = *v
	default:
		return false
	}
	return t.Resource == "" || t.Resource == e.Resource
}

// ErrNotFound is the sentinel for missing catalog entries.
var ErrNotFound = NotFoundError{}

// ErrDuplicatePayment is returned by a Ledger when a row with the same
// payment reference already exists.
var ErrDuplicatePayment = errors.New("duplicate payment reference")

// ErrPaymentRefRequired is returned when a purchase is recorded without
// a payment reference.
var ErrPaymentRefRequired = errors.New("payment reference required")

// StorageError wraps a failure of the underlying ledger or catalog.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return "storage: " + e.Op + ": " + e.Err.Error() }

func (e *StorageError) Unwrap() error { return e.Err }

// PriceMismatchError is returned when the amount paid differs from the
// current catalog price of the item.
type PriceMismatchError struct {
	Want int64
	Got  int64
}

func (e *PriceMismatchError) Error() string {
	return fmt.Sprintf("price mismatch: catalog %d cents, paid %d cents", e.Want, e.Got)
}

func storageErr(op string, err error) error {
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
