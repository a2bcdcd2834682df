/*
validator.go - Per-type acceptance rules

PURPOSE:
  Decides whether an action may be written given the balance computed in
  the same transaction. Pure: no reads, no writes.

RULES:
  INCLUDE_ENHANCEMENT   free, never checks balance or ceiling
  INCREASE, ADHESION    headroom > 0 and quantity <= headroom
  DECREASE              balance > 0 and quantity <= balance
  WITHDRAW              reason required, quantity forced to 0

  Every type except WITHDRAW requires quantity > 0.
*/
package vagas

import (
	"strconv"
	"strings"
)

// Validate applies the rule of t to quantity against b.
func Validate(t ActionType, quantity int64, b Balance) error {
	if t == ActionWithdraw {
		return nil
	}
	if quantity <= 0 {
		return &InvalidQuantityError{
			CourseRef: strconv.FormatInt(int64(b.CourseID), 10),
			Quantity:  strconv.FormatInt(quantity, 10),
		}
	}

	switch {
	case t == ActionIncludeEnhancement:
		return nil

	case t.ConsumesCeiling():
		available := b.Headroom()
		if available <= 0 || quantity > available {
			return &CeilingExceededError{
				CourseID:  b.CourseID,
				Ceiling:   b.Ceiling,
				Requested: b.Requested(),
				Available: available,
				Quantity:  quantity,
			}
		}
		return nil

	case t == ActionDecrease:
		balance := b.Requested()
		if balance <= 0 {
			return &NoRequestedBalanceError{CourseID: b.CourseID}
		}
		if quantity > balance {
			return &DecreaseExceedsBalanceError{
				CourseID: b.CourseID,
				Balance:  balance,
				Quantity: quantity,
			}
		}
		return nil
	}

	return &ValidationError{Field: "tipoAcao", Message: "action type " + string(t) + " cannot be written directly"}
}

// ValidateWithdrawal checks the fields a withdrawal needs before any read.
func ValidateWithdrawal(reason string, course CourseRef) error {
	if strings.TrimSpace(reason) == "" {
		return &ValidationError{Field: "motivoDescredenciar", Message: "a reason is required to withdraw"}
	}
	if course.IsZero() {
		return &ValidationError{Field: "curso_id", Message: "a course is required to withdraw"}
	}
	return nil
}
