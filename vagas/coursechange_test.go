package vagas_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/vagas-engine/vagas"
)

func byName(name string, qty int64) vagas.LineItem {
	return vagas.LineItem{Course: vagas.CourseRef{Name: name}, Quantity: qty}
}

func (f *fixture) change(toRemove, toAdd []vagas.LineItem) (*vagas.CourseChangeResult, error) {
	return f.svc.SubmitCourseChange(context.Background(), vagas.CourseChangeRequest{
		ManagerID:         1,
		Region:            saoPaulo,
		EstablishmentCode: codeHC,
		ToRemove:          toRemove,
		ToAdd:             toAdd,
	})
}

func TestSubmitCourseChange_MovesSlots(t *testing.T) {
	f := newFixture(t)
	_, err := f.submit(vagas.ActionIncrease, item(cardiologia, 5))
	require.NoError(t, err)

	// WHEN: 5 slots move from cardiologia to pediatria, split in two entries
	res, err := f.change(
		[]vagas.LineItem{item(cardiologia, 5)},
		[]vagas.LineItem{byName("Pediatria", 3), {Course: vagas.CourseRef{ID: "2"}, Quantity: 2}},
	)
	require.NoError(t, err)

	// THEN: one decrease and one merged increase share the reference
	assert.Equal(t, vagas.EstablishmentID(1), res.EstablishmentID)
	assert.Equal(t, vagas.ManagerID(1), res.Manager.ID)
	require.Len(t, res.ActionIDs, 2)

	rows := f.mem.Actions()[1:]
	require.Len(t, rows, 2)
	assert.Equal(t, vagas.ActionDecrease, rows[0].Type)
	assert.Equal(t, cardiologia, rows[0].CourseID)
	assert.Equal(t, int64(5), rows[0].Quantity)
	assert.Equal(t, vagas.ActionIncrease, rows[1].Type)
	assert.Equal(t, pediatria, rows[1].CourseID)
	assert.Equal(t, int64(5), rows[1].Quantity)
	assert.Equal(t, res.ReferenceID, rows[0].ReferenceID)
	assert.Equal(t, res.ReferenceID, rows[1].ReferenceID)

	assert.Equal(t, int64(0), f.balance(t, 1, cardiologia).RequestedBalance)
	assert.Equal(t, int64(5), f.balance(t, 1, pediatria).RequestedBalance)
}

func TestSubmitCourseChange_DecreasesRunFirst(t *testing.T) {
	f := newFixture(t)
	_, err := f.submit(vagas.ActionIncrease, item(cardiologia, 10), item(pediatria, 10))
	require.NoError(t, err)

	// GIVEN: both courses at their ceiling
	// WHEN: slots are swapped between the two
	_, err = f.change(
		[]vagas.LineItem{item(cardiologia, 2), item(pediatria, 2)},
		[]vagas.LineItem{item(pediatria, 2), item(cardiologia, 2)},
	)

	// THEN: the swap fits because every decrease lands before any increase
	require.NoError(t, err)
	rows := f.mem.Actions()[2:]
	require.Len(t, rows, 4)
	types := []vagas.ActionType{rows[0].Type, rows[1].Type, rows[2].Type, rows[3].Type}
	assert.Equal(t, []vagas.ActionType{vagas.ActionDecrease, vagas.ActionDecrease, vagas.ActionIncrease, vagas.ActionIncrease}, types)
	assert.Equal(t, int64(10), f.balance(t, 1, cardiologia).RequestedBalance)
	assert.Equal(t, int64(10), f.balance(t, 1, pediatria).RequestedBalance)
}

func TestSubmitCourseChange_FailureWritesNothing(t *testing.T) {
	f := newFixture(t)
	_, err := f.submit(vagas.ActionIncrease, item(cardiologia, 5))
	require.NoError(t, err)
	require.NoError(t, f.mem.SetCourseCeiling(context.Background(), pediatria, 3))

	// WHEN: the increase half does not fit under pediatria's ceiling
	_, err = f.change(
		[]vagas.LineItem{item(cardiologia, 5)},
		[]vagas.LineItem{item(pediatria, 5)},
	)

	// THEN: the decrease that was already written is rolled back
	var ce *vagas.CeilingExceededError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, int64(3), ce.Available)
	assert.Len(t, f.mem.Actions(), 1)
	assert.Equal(t, int64(5), f.balance(t, 1, cardiologia).RequestedBalance)
}

func TestSubmitCourseChange_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		toRemove []vagas.LineItem
		toAdd    []vagas.LineItem
		want     error
	}{
		{
			name: "empty",
			code: codeHC,
			want: vagas.ErrValidation,
		},
		{
			name:     "unbalanced",
			code:     codeHC,
			toRemove: []vagas.LineItem{item(cardiologia, 5)},
			toAdd:    []vagas.LineItem{item(pediatria, 3)},
			want:     vagas.ErrUnbalancedChange,
		},
		{
			name:     "two establishments",
			toRemove: []vagas.LineItem{item(cardiologia, 1)},
			toAdd:    []vagas.LineItem{{Course: vagas.CourseRef{Name: "Anestesiologia"}, Quantity: 1, EstablishmentCode: codeInCor}},
			want:     vagas.ErrMultipleEstablishments,
		},
		{
			name:     "no establishment code",
			toRemove: []vagas.LineItem{byName("Cardiologia", 1)},
			toAdd:    []vagas.LineItem{byName("Pediatria", 1)},
			want:     vagas.ErrMultipleEstablishments,
		},
		{
			name:     "establishment in another municipality",
			code:     codeCampinas,
			toRemove: []vagas.LineItem{byName("Cardiologia", 1)},
			toAdd:    []vagas.LineItem{byName("Pediatria", 1)},
			want:     vagas.ErrMismatchedRegion,
		},
		{
			name:     "non-positive quantity",
			code:     codeHC,
			toRemove: []vagas.LineItem{byName("Cardiologia", 0)},
			toAdd:    []vagas.LineItem{byName("Pediatria", 0)},
			want:     vagas.ErrInvalidQuantity,
		},
		{
			name:     "course is never created",
			code:     codeHC,
			toRemove: []vagas.LineItem{byName("Cardiologia", 1)},
			toAdd:    []vagas.LineItem{byName("Geriatria", 1)},
			want:     vagas.ErrCourseNotFound,
		},
		{
			name:     "course of another establishment",
			code:     codeHC,
			toRemove: []vagas.LineItem{item(cardiologia, 1)},
			toAdd:    []vagas.LineItem{{Course: vagas.CourseRef{ID: "3"}, Quantity: 1}},
			want:     vagas.ErrForeignCourse,
		},
		{
			name:     "nothing requested to move",
			code:     codeHC,
			toRemove: []vagas.LineItem{byName("Cardiologia", 1)},
			toAdd:    []vagas.LineItem{byName("Pediatria", 1)},
			want:     vagas.ErrNoRequestedBalance,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			_, err := f.svc.SubmitCourseChange(context.Background(), vagas.CourseChangeRequest{
				ManagerID:         1,
				Region:            saoPaulo,
				EstablishmentCode: tt.code,
				ToRemove:          tt.toRemove,
				ToAdd:             tt.toAdd,
			})

			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, f.mem.Actions())
		})
	}
}

func TestSubmitCourseChange_RegionChecked(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.SubmitCourseChange(context.Background(), vagas.CourseChangeRequest{
		ManagerID:         1,
		Region:            vagas.RegionRef{UF: "MG", MunicipalityID: 3550308},
		EstablishmentCode: codeHC,
		ToRemove:          []vagas.LineItem{item(cardiologia, 1)},
		ToAdd:             []vagas.LineItem{item(pediatria, 1)},
	})
	assert.ErrorIs(t, err, vagas.ErrMismatchedRegion)

	_, err = f.svc.SubmitCourseChange(context.Background(), vagas.CourseChangeRequest{
		Region:            saoPaulo,
		EstablishmentCode: codeHC,
		ToRemove:          []vagas.LineItem{item(cardiologia, 1)},
		ToAdd:             []vagas.LineItem{item(pediatria, 1)},
	})
	assert.ErrorIs(t, err, vagas.ErrValidation)
}

func TestNormalizeLegacyItems(t *testing.T) {
	toRemove, toAdd := vagas.NormalizeLegacyItems([]vagas.TaggedItem{
		{LineItem: byName("Cardiologia", 2), Operation: "REMOVER"},
		{LineItem: byName("Pediatria", 1), Operation: " adicionar "},
		{LineItem: byName("Pediatria", 1), Operation: "ADD"},
		{LineItem: byName("Anestesiologia", 9), Operation: "TRANSFERIR"},
	})

	assert.Equal(t, []vagas.LineItem{byName("Cardiologia", 2)}, toRemove)
	assert.Equal(t, []vagas.LineItem{byName("Pediatria", 1), byName("Pediatria", 1)}, toAdd)
}

func TestSubmitCourseChange_LegacyList(t *testing.T) {
	f := newFixture(t)
	_, err := f.submit(vagas.ActionIncrease, item(cardiologia, 2))
	require.NoError(t, err)

	toRemove, toAdd := vagas.NormalizeLegacyItems([]vagas.TaggedItem{
		{LineItem: vagas.LineItem{Course: vagas.CourseRef{ID: "1"}, Quantity: 2, EstablishmentCode: codeHC}, Operation: "REMOVER"},
		{LineItem: vagas.LineItem{Course: vagas.CourseRef{ID: "2"}, Quantity: 2, EstablishmentCode: codeHC}, Operation: "ADICIONAR"},
	})
	res, err := f.svc.SubmitCourseChange(context.Background(), vagas.CourseChangeRequest{
		ManagerID: 1, Region: saoPaulo, ToRemove: toRemove, ToAdd: toAdd,
	})

	require.NoError(t, err)
	assert.Len(t, res.ActionIDs, 2)
	assert.Equal(t, int64(2), f.balance(t, 1, pediatria).RequestedBalance)
}

func TestSubmitCourseChange_QuantitySumsMustNotOverflow(t *testing.T) {
	const quarter = int64(1) << 62

	tests := []struct {
		name     string
		toRemove []vagas.LineItem
		toAdd    []vagas.LineItem
	}{
		{
			// 4*2^62 + 5 wraps to 5 and would match the add side
			name: "wraps to the add total",
			toRemove: []vagas.LineItem{
				item(cardiologia, quarter), item(cardiologia, quarter),
				item(cardiologia, quarter), item(cardiologia, quarter),
				item(cardiologia, 5),
			},
			toAdd: []vagas.LineItem{item(pediatria, 5)},
		},
		{
			name: "wraps to zero with nothing added",
			toRemove: []vagas.LineItem{
				item(cardiologia, quarter), item(cardiologia, quarter),
				item(cardiologia, quarter), item(cardiologia, quarter),
			},
		},
		{
			name:     "overflows across courses",
			toRemove: []vagas.LineItem{item(cardiologia, math.MaxInt64), item(pediatria, 1)},
			toAdd:    []vagas.LineItem{item(pediatria, 5)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.submit(vagas.ActionIncrease, item(cardiologia, 5))
			require.NoError(t, err)

			_, err = f.change(tt.toRemove, tt.toAdd)

			assert.ErrorIs(t, err, vagas.ErrInvalidQuantity)
			assert.Len(t, f.mem.Actions(), 1)
			assert.Equal(t, int64(5), f.balance(t, 1, cardiologia).RequestedBalance)
			assert.Equal(t, int64(0), f.balance(t, 1, pediatria).RequestedBalance)
		})
	}
}
