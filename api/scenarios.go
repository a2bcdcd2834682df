/*
scenarios.go - Demo datasets for testing and demonstrations

PURPOSE:
  Populates the reference tables (states, municipalities, establishments,
  managers, courses) with small realistic datasets so the API can be
  exercised without an external import.

AVAILABLE SCENARIOS:
  sp-capital:      Two hospitals in São Paulo, one manager
  mg-interior:     One university hospital in Uberlândia
  saldo-em-uso:    sp-capital plus accepted requests, one course at its ceiling

HOW SCENARIOS WORK:
  1. Save reference records with fixed ids (re-loading overwrites them and
     resets ceilings)
  2. Optionally submit actions through vagas.Service, so history obeys the
     same rules as live traffic. History is only added to an
     establishment whose log is still empty.

  Scenarios never delete anything: the action log is append-only.

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "sp-capital"}

SEE ALSO:
  - handlers.go: Handler
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/warp/vagas-engine/vagas"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "sp-capital",
		Name:        "São Paulo - Capital",
		Description: "Two hospitals in São Paulo with cardiology, internal medicine, pediatrics, anesthesiology and surgery slots",
	},
	{
		ID:          "mg-interior",
		Name:        "Minas Gerais - Interior",
		Description: "University hospital in Uberlândia with family medicine and psychiatry slots",
	},
	{
		ID:          "saldo-em-uso",
		Name:        "Saldo em uso",
		Description: "sp-capital with accepted increases: Cardiologia 7/10, Pediatria 6/6",
	},
}

type dataset struct {
	states         []vagas.State
	municipalities []vagas.Municipality
	establishments []vagas.Establishment
	managers       []vagas.Manager
	courses        []vagas.Course
	history        []vagas.ActionRequest
}

func spCapital() dataset {
	return dataset{
		states:         []vagas.State{{ID: 35, UF: "SP", Name: "São Paulo"}},
		municipalities: []vagas.Municipality{{ID: 3550308, Name: "São Paulo", IBGE: "355030", StateID: 35}},
		establishments: []vagas.Establishment{
			{ID: 1, Code: "2078015", Name: "Hospital das Clínicas da FMUSP", MunicipalityID: 3550308},
			{ID: 2, Code: "2077485", Name: "Hospital São Paulo", MunicipalityID: 3550308},
		},
		managers: []vagas.Manager{{ID: 1, Name: "Maria Souza", CPF: "00000000191", Email: "maria.souza@example.org"}},
		courses: []vagas.Course{
			{ID: 101, Name: "Cardiologia", Ceiling: 10, EstablishmentID: 1},
			{ID: 102, Name: "Clínica Médica", Ceiling: 8, EstablishmentID: 1},
			{ID: 103, Name: "Pediatria", Ceiling: 6, EstablishmentID: 1},
			{ID: 201, Name: "Anestesiologia", Ceiling: 4, EstablishmentID: 2},
			{ID: 202, Name: "Cirurgia Geral", Ceiling: 5, EstablishmentID: 2},
		},
	}
}

func mgInterior() dataset {
	return dataset{
		states:         []vagas.State{{ID: 31, UF: "MG", Name: "Minas Gerais"}},
		municipalities: []vagas.Municipality{{ID: 3170206, Name: "Uberlândia", IBGE: "317020", StateID: 31}},
		establishments: []vagas.Establishment{
			{ID: 3, Code: "2146355", Name: "Hospital de Clínicas de Uberlândia", MunicipalityID: 3170206},
		},
		managers: []vagas.Manager{{ID: 2, Name: "João Lima", Email: "joao.lima@example.org"}},
		courses: []vagas.Course{
			{ID: 301, Name: "Medicina de Família e Comunidade", Ceiling: 12, EstablishmentID: 3},
			{ID: 302, Name: "Psiquiatria", Ceiling: 3, EstablishmentID: 3},
		},
	}
}

func saldoEmUso() dataset {
	d := spCapital()
	region := vagas.RegionRef{UF: "SP", MunicipalityID: 3550308}
	d.history = []vagas.ActionRequest{
		{
			Type:      vagas.ActionIncrease,
			ManagerID: 1,
			Region:    region,
			Items: []vagas.LineItem{
				{Course: vagas.CourseRef{ID: "101"}, Quantity: 7, EstablishmentCode: "2078015"},
				{Course: vagas.CourseRef{ID: "103"}, Quantity: 6, EstablishmentCode: "2078015"},
			},
		},
	}
	return d
}

func scenarioData(id string) (dataset, bool) {
	switch id {
	case "sp-capital":
		return spCapital(), true
	case "mg-interior":
		return mgInterior(), true
	case "saldo-em-uso":
		return saldoEmUso(), true
	}
	return dataset{}, false
}

// =============================================================================
// HANDLERS
// =============================================================================

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the last loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario loads a demo dataset.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	if err := h.loadScenario(r.Context(), req.ScenarioID); err != nil {
		writeError(w, err)
		return
	}

	h.mu.Lock()
	h.currentScenario = req.ScenarioID
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"scenario": req.ScenarioID,
	})
}

func (h *Handler) loadScenario(ctx context.Context, id string) error {
	d, ok := scenarioData(id)
	if !ok {
		return &vagas.NotFoundError{Resource: "scenario", Ref: id}
	}

	for _, s := range d.states {
		if err := h.Ref.SaveState(ctx, s); err != nil {
			return fmt.Errorf("scenario %s: %w", id, err)
		}
	}
	for _, m := range d.municipalities {
		if err := h.Ref.SaveMunicipality(ctx, m); err != nil {
			return fmt.Errorf("scenario %s: %w", id, err)
		}
	}
	for _, e := range d.establishments {
		if err := h.Ref.SaveEstablishment(ctx, e); err != nil {
			return fmt.Errorf("scenario %s: %w", id, err)
		}
	}
	for _, m := range d.managers {
		if err := h.Ref.SaveManager(ctx, m); err != nil {
			return fmt.Errorf("scenario %s: %w", id, err)
		}
	}
	for _, c := range d.courses {
		if _, err := h.Ref.SaveCourse(ctx, c); err != nil {
			return fmt.Errorf("scenario %s: %w", id, err)
		}
	}

	if len(d.history) > 0 {
		if err := h.loadHistory(ctx, d); err != nil {
			return fmt.Errorf("scenario %s: %w", id, err)
		}
	}

	h.Log.Info("scenario loaded", "scenario", id,
		"establishments", len(d.establishments), "courses", len(d.courses))
	return nil
}

// loadHistory submits d.history unless any establishment already has rows.
func (h *Handler) loadHistory(ctx context.Context, d dataset) error {
	for _, e := range d.establishments {
		rows, err := h.Ref.ListActions(ctx, e.ID)
		if err != nil {
			return err
		}
		if len(rows) > 0 {
			h.Log.Debug("scenario history skipped", "establishment_id", e.ID, "existing_rows", len(rows))
			return nil
		}
	}
	for _, req := range d.history {
		if _, err := h.Service.SubmitAction(ctx, req); err != nil {
			return err
		}
	}
	return nil
}
