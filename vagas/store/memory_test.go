package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/vagas-engine/vagas"
)

func seeded(t *testing.T) *Memory {
	t.Helper()
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.SaveState(ctx, vagas.State{ID: 35, UF: " sp ", Name: "São Paulo"}))
	require.NoError(t, m.SaveMunicipality(ctx, vagas.Municipality{ID: 3550308, Name: "São Paulo", StateID: 35}))
	require.NoError(t, m.SaveEstablishment(ctx, vagas.Establishment{ID: 1, Code: " 2078015 ", MunicipalityID: 3550308}))
	require.NoError(t, m.SaveEstablishment(ctx, vagas.Establishment{ID: 2, Code: "2077485", MunicipalityID: 3550308}))
	_, err := m.SaveCourse(ctx, vagas.Course{ID: 7, Name: "Pediatria", Ceiling: 5, EstablishmentID: 1})
	require.NoError(t, err)
	return m
}

func TestMemory_Lookups(t *testing.T) {
	m := seeded(t)
	ctx := context.Background()

	err := m.WithTx(ctx, func(tx vagas.Tx) error {
		mu, err := tx.MunicipalityByName(ctx, "SÃO PAULO")
		require.NoError(t, err)
		require.NotNil(t, mu)
		assert.Equal(t, "SP", mu.UF)

		est, err := tx.EstablishmentByCode(ctx, "2078015")
		require.NoError(t, err)
		require.NotNil(t, est)
		assert.Equal(t, vagas.EstablishmentID(1), est.ID)

		missing, err := tx.EstablishmentByCode(ctx, "02078015")
		require.NoError(t, err)
		assert.Nil(t, missing)

		c, err := tx.Course(ctx, 99)
		require.NoError(t, err)
		assert.Nil(t, c)
		return nil
	})
	require.NoError(t, err)
}

func TestMemory_CreateCourseAssignsFreshID(t *testing.T) {
	m := seeded(t)
	ctx := context.Background()

	var id vagas.CourseID
	require.NoError(t, m.WithTx(ctx, func(tx vagas.Tx) error {
		var err error
		id, err = tx.CreateCourse(ctx, vagas.Course{ID: 7, Name: "Geriatria", EstablishmentID: 1})
		return err
	}))

	assert.Equal(t, vagas.CourseID(8), id)
}

func TestMemory_RollbackDiscardsWrites(t *testing.T) {
	m := seeded(t)
	ctx := context.Background()
	boom := errors.New("boom")

	// WHEN: a transaction writes and then fails
	err := m.WithTx(ctx, func(tx vagas.Tx) error {
		if _, err := tx.CreateCourse(ctx, vagas.Course{Name: "Geriatria", EstablishmentID: 1}); err != nil {
			return err
		}
		if _, err := tx.AppendAction(ctx, vagas.Action{EstablishmentID: 1, CourseID: 7, Type: vagas.ActionIncrease, Quantity: 2}); err != nil {
			return err
		}
		return boom
	})

	// THEN: the error comes back unchanged and nothing is published
	assert.Same(t, boom, err)
	assert.Empty(t, m.Actions())
	require.NoError(t, m.WithTx(ctx, func(tx vagas.Tx) error {
		courses, err := tx.CoursesByEstablishment(ctx, 1)
		assert.Len(t, courses, 1)
		return err
	}))
}

func TestMemory_ActionTotals(t *testing.T) {
	m := seeded(t)
	ctx := context.Background()
	m.AppendRaw(vagas.Action{EstablishmentID: 1, CourseID: 7, Type: vagas.ActionIncrease, Quantity: 4})
	m.AppendRaw(vagas.Action{EstablishmentID: 1, CourseID: 7, Type: "AUMENTAR VAGAS", Quantity: 1})
	m.AppendRaw(vagas.Action{EstablishmentID: 1, CourseID: 7, Type: "DIMINUIR VAGAS", Quantity: 2})
	m.AppendRaw(vagas.Action{EstablishmentID: 1, CourseID: 7, Type: vagas.ActionIncludeEnhancement, Quantity: 9})
	m.AppendRaw(vagas.Action{EstablishmentID: 2, CourseID: 7, Type: vagas.ActionIncrease, Quantity: 9})

	require.NoError(t, m.WithTx(ctx, func(tx vagas.Tx) error {
		totals, err := tx.ActionTotals(ctx, 7, 1)
		assert.Equal(t, vagas.Totals{Increased: 5, Decreased: 2}, totals)
		return err
	}))
}

func TestMemory_ListActionsAndCopies(t *testing.T) {
	m := seeded(t)
	ctx := context.Background()
	m.AppendRaw(vagas.Action{EstablishmentID: 1, CourseID: 7, Type: vagas.ActionIncrease, Quantity: 1})
	m.AppendRaw(vagas.Action{EstablishmentID: 2, CourseID: 7, Type: vagas.ActionIncrease, Quantity: 1})
	m.AppendRaw(vagas.Action{EstablishmentID: 1, CourseID: 7, Type: vagas.ActionDecrease, Quantity: 1})

	list, err := m.ListActions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, []vagas.ActionID{1, 3}, []vagas.ActionID{list[0].ID, list[1].ID})

	// Returned slices are copies
	all := m.Actions()
	all[0].Quantity = 100
	assert.Equal(t, int64(1), m.Actions()[0].Quantity)
}

func TestMemory_SetCourseCeiling(t *testing.T) {
	m := seeded(t)
	ctx := context.Background()

	require.NoError(t, m.SetCourseCeiling(ctx, 7, 12))
	require.NoError(t, m.WithTx(ctx, func(tx vagas.Tx) error {
		c, err := tx.Course(ctx, 7)
		require.NotNil(t, c)
		assert.Equal(t, int64(12), c.Ceiling)
		return err
	}))

	assert.ErrorIs(t, m.SetCourseCeiling(ctx, 99, 1), vagas.ErrCourseNotFound)
}

func TestMemory_CanceledContext(t *testing.T) {
	m := seeded(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := m.WithTx(ctx, func(vagas.Tx) error { called = true; return nil })

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
