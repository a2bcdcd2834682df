package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/vagas-engine/vagas"
)

// Integration tests run only when POSTGRES_TEST_DSN points at a scratch database.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}
	s, err := New(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestClassify_SerializationFailure(t *testing.T) {
	err := classify(&pgconn.PgError{Code: "40001", Message: "could not serialize access"})
	assert.ErrorIs(t, err, vagas.ErrConcurrentModification)
	assert.ErrorIs(t, err, vagas.ErrInternal)
	assert.Equal(t, vagas.KindInternal, vagas.KindOf(err))

	plain := errors.New("boom")
	assert.Same(t, plain, classify(plain))

	ve := &vagas.ValidationError{Message: "bad"}
	assert.ErrorIs(t, classify(ve), vagas.ErrValidation)
}

func TestStore_AppendAndTotals(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Ids unique per run; the log cannot be cleaned up.
	base := time.Now().UnixNano() % 1_000_000_000
	estID := vagas.EstablishmentID(base)
	munID := vagas.MunicipalityID(base)
	code := "T" + time.Now().Format("150405.000000")

	require.NoError(t, s.SaveState(ctx, vagas.State{ID: 9001, UF: "zz", Name: "Teste"}))
	require.NoError(t, s.SaveMunicipality(ctx, vagas.Municipality{ID: munID, Name: "Teste", StateID: 9001}))
	require.NoError(t, s.SaveEstablishment(ctx, vagas.Establishment{ID: estID, Code: code, Name: "Teste", MunicipalityID: munID}))
	require.NoError(t, s.SaveManager(ctx, vagas.Manager{ID: 9001, Name: "Teste"}))
	courseID, err := s.SaveCourse(ctx, vagas.Course{Name: "Clínica Médica", Ceiling: 10, EstablishmentID: estID})
	require.NoError(t, err)

	err = s.WithTx(ctx, func(tx vagas.Tx) error {
		e, err := tx.EstablishmentByCode(ctx, code)
		require.NoError(t, err)
		require.NotNil(t, e)

		for _, a := range []vagas.Action{
			{Type: vagas.ActionIncrease, Quantity: 6},
			{Type: "DIMINUIR VAGAS", Quantity: 2},
		} {
			a.CourseID, a.EstablishmentID, a.ManagerID = courseID, estID, 9001
			a.Region = vagas.Region{UF: "ZZ", MunicipalityID: munID}
			a.CreatedAt = time.Now()
			if _, err := tx.AppendAction(ctx, a); err != nil {
				return err
			}
		}
		totals, err := tx.ActionTotals(ctx, courseID, estID)
		require.NoError(t, err)
		assert.Equal(t, vagas.Totals{Increased: 6, Decreased: 2}, totals)
		return nil
	})
	require.NoError(t, err)

	_, err = s.pool.Exec(ctx, `DELETE FROM recursos.acoes_vagas WHERE estabelecimento_id = $1`, estID)
	assert.ErrorContains(t, err, "append-only")

	actions, err := s.ListActions(ctx, estID)
	require.NoError(t, err)
	assert.Len(t, actions, 2)
}
