package vagas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bal(ceiling, inc, dec int64) Balance {
	return Balance{CourseID: 1, EstablishmentID: 1, Ceiling: ceiling, Totals: Totals{Increased: inc, Decreased: dec}}
}

func TestBalance_Projections(t *testing.T) {
	tests := []struct {
		name      string
		b         Balance
		requested int64
		headroom  int64
	}{
		{"empty", bal(10, 0, 0), 0, 10},
		{"partially used", bal(10, 7, 0), 7, 3},
		{"net of decreases", bal(10, 7, 5), 2, 8},
		{"at ceiling", bal(10, 10, 0), 10, 0},
		{"over ceiling after a ceiling cut", bal(4, 6, 0), 6, 0},
		{"negative raw balance is floored", bal(10, 2, 5), 0, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.requested, tt.b.Requested())
			assert.Equal(t, tt.headroom, tt.b.Headroom())
		})
	}
	assert.Equal(t, int64(-3), bal(10, 2, 5).Raw())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		t       ActionType
		qty     int64
		b       Balance
		wantErr error
	}{
		{"increase fits", ActionIncrease, 3, bal(10, 7, 0), nil},
		{"increase over headroom", ActionIncrease, 4, bal(10, 7, 0), ErrCeilingExceeded},
		{"increase with no headroom", ActionIncrease, 1, bal(10, 10, 0), ErrCeilingExceeded},
		{"increase on zero ceiling", ActionIncrease, 1, bal(0, 0, 0), ErrCeilingExceeded},
		{"adhesion consumes ceiling", ActionEdictAdhesion, 11, bal(10, 0, 0), ErrCeilingExceeded},
		{"adhesion fits", ActionEdictAdhesion, 10, bal(10, 0, 0), nil},
		{"enhancement is free", ActionIncludeEnhancement, 50, bal(0, 0, 0), nil},
		{"decrease within balance", ActionDecrease, 7, bal(10, 7, 0), nil},
		{"decrease with nothing requested", ActionDecrease, 1, bal(10, 0, 0), ErrNoRequestedBalance},
		{"decrease with floored balance", ActionDecrease, 1, bal(10, 2, 5), ErrNoRequestedBalance},
		{"decrease over balance", ActionDecrease, 8, bal(10, 7, 0), ErrDecreaseExceedsBalance},
		{"zero quantity", ActionIncrease, 0, bal(10, 0, 0), ErrInvalidQuantity},
		{"negative quantity", ActionDecrease, -1, bal(10, 5, 0), ErrInvalidQuantity},
		{"enhancement still needs a quantity", ActionIncludeEnhancement, 0, bal(0, 0, 0), ErrInvalidQuantity},
		{"withdraw has no quantity rule", ActionWithdraw, 0, bal(0, 0, 0), nil},
		{"course change is not a row type", ActionChangeCourse, 1, bal(10, 0, 0), ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.t, tt.qty, tt.b)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidate_ErrorContext(t *testing.T) {
	err := Validate(ActionIncrease, 4, bal(10, 7, 0))
	var ce *CeilingExceededError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, int64(10), ce.Ceiling)
	assert.Equal(t, int64(7), ce.Requested)
	assert.Equal(t, int64(3), ce.Available)

	err = Validate(ActionDecrease, 9, bal(10, 7, 0))
	var de *DecreaseExceedsBalanceError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, int64(7), de.Balance)
	assert.Equal(t, int64(9), de.Quantity)
}

func TestValidateWithdrawal(t *testing.T) {
	assert.NoError(t, ValidateWithdrawal("sem preceptor", CourseRef{ID: "3"}))
	assert.ErrorIs(t, ValidateWithdrawal("   ", CourseRef{ID: "3"}), ErrValidation)
	assert.ErrorIs(t, ValidateWithdrawal("sem preceptor", CourseRef{}), ErrValidation)
}
