/*
errors.go - Centralized error types for the slot ledger

PURPOSE:
  All error kinds in one place. Every business-rule failure is surfaced to
  the caller synchronously and carries enough context to fix the request
  (the headroom or balance that was actually available).

ERROR KINDS:
  validation               Malformed or missing field
  not_found                Establishment, course, municipality or manager absent
  mismatched_region        Establishment/UF not in the claimed municipality
  foreign_course           Course id belongs to another establishment
  ceiling_exceeded         Increase does not fit in the headroom
  no_requested_balance     Decrease on a course with nothing requested
  decrease_exceeds_balance Decrease larger than the requested balance
  multiple_establishments  Course change spanning establishments
  unbalanced_change        Course change that creates or destroys slots
  invalid_quantity         Quantity not a positive integer
  internal                 Store failure

USAGE:
  if errors.Is(err, vagas.ErrCeilingExceeded) { ... }

  var ce *vagas.CeilingExceededError
  if errors.As(err, &ce) {
      fmt.Println("only", ce.Available, "left")
  }

SEE ALSO:
  - api/errors.go: Maps kinds to HTTP status codes
*/
package vagas

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrValidation             = errors.New("validation error")
	ErrNotFound               = errors.New("not found")
	ErrMismatchedRegion       = errors.New("mismatched region")
	ErrForeignCourse          = errors.New("course belongs to another establishment")
	ErrCeilingExceeded        = errors.New("ceiling exceeded")
	ErrNoRequestedBalance     = errors.New("no requested balance")
	ErrDecreaseExceedsBalance = errors.New("decrease exceeds requested balance")
	ErrMultipleEstablishments = errors.New("course change spans multiple establishments")
	ErrUnbalancedChange       = errors.New("unbalanced course change")
	ErrInvalidQuantity        = errors.New("invalid quantity")
	ErrInternal               = errors.New("internal error")

	// ErrConcurrentModification is returned when the store aborts a
	// transaction because a concurrent one touched the same rows.
	ErrConcurrentModification = fmt.Errorf("%w: concurrent modification detected", ErrInternal)
)

// Finer-grained not-found sentinels. A NotFoundError matches both ErrNotFound
// and the sentinel of its resource.
var (
	ErrEstablishmentNotFound = errors.New("establishment not found")
	ErrCourseNotFound        = errors.New("course not found")
	ErrMunicipalityNotFound  = errors.New("municipality not found")
	ErrManagerNotFound       = errors.New("manager not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports a malformed or missing request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Resource names used by NotFoundError.
const (
	ResourceEstablishment = "establishment"
	ResourceCourse        = "course"
	ResourceMunicipality  = "municipality"
	ResourceManager       = "manager"
)

// NotFoundError reports a referenced record that does not exist.
type NotFoundError struct {
	Resource string
	Ref      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.Ref)
}

func (e *NotFoundError) Unwrap() []error {
	errs := []error{ErrNotFound}
	switch e.Resource {
	case ResourceEstablishment:
		errs = append(errs, ErrEstablishmentNotFound)
	case ResourceCourse:
		errs = append(errs, ErrCourseNotFound)
	case ResourceMunicipality:
		errs = append(errs, ErrMunicipalityNotFound)
	case ResourceManager:
		errs = append(errs, ErrManagerNotFound)
	}
	return errs
}

// MismatchedRegionError reports an establishment or UF outside the claimed
// municipality.
type MismatchedRegionError struct {
	Message string
}

func (e *MismatchedRegionError) Error() string { return e.Message }
func (e *MismatchedRegionError) Unwrap() error { return ErrMismatchedRegion }

// ForeignCourseError reports a course id owned by another establishment.
type ForeignCourseError struct {
	CourseID        CourseID
	EstablishmentID EstablishmentID
}

func (e *ForeignCourseError) Error() string {
	return fmt.Sprintf("course %d does not belong to establishment %d", e.CourseID, e.EstablishmentID)
}

func (e *ForeignCourseError) Unwrap() error { return ErrForeignCourse }

// CeilingExceededError reports an increase that does not fit.
type CeilingExceededError struct {
	CourseID  CourseID
	Ceiling   int64
	Requested int64 // balance before the action
	Available int64 // headroom before the action
	Quantity  int64
}

func (e *CeilingExceededError) Error() string {
	if e.Available <= 0 {
		return fmt.Sprintf("no ceiling headroom left for course %d (ceiling %d, requested %d)",
			e.CourseID, e.Ceiling, e.Requested)
	}
	return fmt.Sprintf("course %d can only increase by up to %d (requested %d)",
		e.CourseID, e.Available, e.Quantity)
}

func (e *CeilingExceededError) Unwrap() error { return ErrCeilingExceeded }

// NoRequestedBalanceError reports a decrease on a course with balance 0.
type NoRequestedBalanceError struct {
	CourseID CourseID
}

func (e *NoRequestedBalanceError) Error() string {
	return fmt.Sprintf("course %d has no requested slots to decrease", e.CourseID)
}

func (e *NoRequestedBalanceError) Unwrap() error { return ErrNoRequestedBalance }

// DecreaseExceedsBalanceError reports a decrease larger than the balance.
type DecreaseExceedsBalanceError struct {
	CourseID CourseID
	Balance  int64
	Quantity int64
}

func (e *DecreaseExceedsBalanceError) Error() string {
	return fmt.Sprintf("course %d can only decrease by up to %d (requested %d)",
		e.CourseID, e.Balance, e.Quantity)
}

func (e *DecreaseExceedsBalanceError) Unwrap() error { return ErrDecreaseExceedsBalance }

// MultipleEstablishmentsError lists the distinct codes found in a course change.
type MultipleEstablishmentsError struct {
	Codes []string
}

func (e *MultipleEstablishmentsError) Error() string {
	if len(e.Codes) == 0 {
		return "course change must reference exactly one establishment code (none given)"
	}
	return fmt.Sprintf("course change must reference exactly one establishment code (got %v)", e.Codes)
}

func (e *MultipleEstablishmentsError) Unwrap() error { return ErrMultipleEstablishments }

// UnbalancedChangeError reports a course change whose totals differ.
type UnbalancedChangeError struct {
	TotalRemove int64
	TotalAdd    int64
}

func (e *UnbalancedChangeError) Error() string {
	return fmt.Sprintf("course change must keep the slot total: remove=%d add=%d",
		e.TotalRemove, e.TotalAdd)
}

func (e *UnbalancedChangeError) Unwrap() error { return ErrUnbalancedChange }

// InvalidQuantityError reports a non-positive or fractional quantity.
type InvalidQuantityError struct {
	CourseRef string
	Quantity  string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("invalid quantity %s for course %q", e.Quantity, e.CourseRef)
}

func (e *InvalidQuantityError) Unwrap() error { return ErrInvalidQuantity }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// Kind is the stable, machine-readable name of an error category.
type Kind string

const (
	KindValidation             Kind = "validation"
	KindNotFound               Kind = "not_found"
	KindMismatchedRegion       Kind = "mismatched_region"
	KindForeignCourse          Kind = "foreign_course"
	KindCeilingExceeded        Kind = "ceiling_exceeded"
	KindNoRequestedBalance     Kind = "no_requested_balance"
	KindDecreaseExceedsBalance Kind = "decrease_exceeds_balance"
	KindMultipleEstablishments Kind = "multiple_establishments"
	KindUnbalancedChange       Kind = "unbalanced_change"
	KindInvalidQuantity        Kind = "invalid_quantity"
	KindInternal               Kind = "internal"
)

var kinds = []struct {
	sentinel error
	kind     Kind
}{
	{ErrValidation, KindValidation},
	{ErrNotFound, KindNotFound},
	{ErrMismatchedRegion, KindMismatchedRegion},
	{ErrForeignCourse, KindForeignCourse},
	{ErrCeilingExceeded, KindCeilingExceeded},
	{ErrNoRequestedBalance, KindNoRequestedBalance},
	{ErrDecreaseExceedsBalance, KindDecreaseExceedsBalance},
	{ErrMultipleEstablishments, KindMultipleEstablishments},
	{ErrUnbalancedChange, KindUnbalancedChange},
	{ErrInvalidQuantity, KindInvalidQuantity},
}

// KindOf classifies err. Anything that is not a business-rule error is
// internal.
func KindOf(err error) Kind {
	for _, k := range kinds {
		if errors.Is(err, k.sentinel) {
			return k.kind
		}
	}
	return KindInternal
}

// IsClientError returns true if the caller can fix the request.
func IsClientError(err error) bool {
	return err != nil && KindOf(err) != KindInternal
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// storeErr wraps a store failure so KindOf reports it as internal while
// keeping the cause reachable through errors.Is/As.
func storeErr(op string, err error) error {
	if errors.Is(err, ErrInternal) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrInternal, err)
}
