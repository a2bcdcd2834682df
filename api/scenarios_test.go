package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListScenarios(t *testing.T) {
	s := newTestServer(t, RouterOptions{})

	rec := s.do(t, http.MethodGet, "/api/scenarios", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]ScenarioDTO](t, rec)
	require.Len(t, list, len(scenarios))
	for _, sc := range list {
		_, ok := scenarioData(sc.ID)
		assert.True(t, ok, "scenario %s has no dataset", sc.ID)
	}
}

func TestLoadScenario_Unknown(t *testing.T) {
	s := newTestServer(t, RouterOptions{})

	rec := s.do(t, http.MethodPost, "/api/scenarios/load", map[string]string{"scenario_id": "nope"})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLoadScenario_HistoryAddedOnce(t *testing.T) {
	// GIVEN: a fresh store
	s := newTestServer(t, RouterOptions{})

	// WHEN: the scenario with history is loaded twice
	for i := 0; i < 2; i++ {
		rec := s.do(t, http.MethodPost, "/api/scenarios/load", map[string]string{"scenario_id": "saldo-em-uso"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	// THEN: the history rows exist once and balances reflect them
	actions, err := s.store.ListActions(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, actions, 2)

	assert.Equal(t, int64(3), balanceOf(t, s, 101).SaldoDisponivel)
	assert.Equal(t, int64(0), balanceOf(t, s, 103).SaldoDisponivel)

	current := decode[ScenarioDTO](t, s.do(t, http.MethodGet, "/api/scenarios/current", nil))
	assert.Equal(t, "saldo-em-uso", current.ID)
}

func TestLoadScenario_SecondRegion(t *testing.T) {
	s := newTestServer(t, RouterOptions{})
	require.Equal(t, http.StatusOK,
		s.do(t, http.MethodPost, "/api/scenarios/load", map[string]string{"scenario_id": "mg-interior"}).Code)

	rec := s.do(t, http.MethodPost, "/api/acoes-vagas", map[string]any{
		"tipoAcao":             "ADESAO_EDITAL",
		"gestorId":             2,
		"ufSelecionada":        "mg",
		"municipioSelecionado": "Uberlândia",
		"cnes":                 "2146355",
		"cursos":               []map[string]any{{"nome": "Psiquiatria", "quantidade": 3}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/estabelecimentos/3/cursos", nil)
	list := decode[[]CourseBalanceDTO](t, rec)
	require.Len(t, list, 2)
	assert.Equal(t, "Psiquiatria", list[1].Nome)
	// Adhesion is checked against the headroom but does not count towards
	// the requested balance.
	assert.Equal(t, int64(0), list[1].SaldoSolicitado)
	assert.Equal(t, int64(3), list[1].SaldoDisponivel)

	// A fourth adhesion slot does not fit under the ceiling of 3.
	rec = s.do(t, http.MethodPost, "/api/acoes-vagas", map[string]any{
		"tipoAcao": "ADESÃO POR PERDA DE PRAZO", "gestorId": 2, "ufSelecionada": "MG",
		"municipio_id": 3170206, "cnes": "2146355",
		"cursos": []map[string]any{{"nome": "Psiquiatria", "quantidade": 4}},
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}
