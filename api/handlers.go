/*
handlers.go - HTTP API handlers for the slot ledger

PURPOSE:
  Exposes vagas.Service over REST. Handlers decode the body, convert it to
  a service request, and map the result or error to JSON. No business rule
  lives here.

ENDPOINTS:
  Actions:
    POST   /api/acoes-vagas                      Submit an action (any type)
    POST   /api/acoes-vagas/mudanca-curso        Submit a course change

  Establishments:
    GET    /api/estabelecimentos/cursos?estabelecimento_id=N  Course balances
    GET    /api/estabelecimentos/{id}/cursos     Course balances
    GET    /api/estabelecimentos/{id}/acoes      Action log

  Admin:
    PUT    /api/admin/cursos/{id}/vagas          Set a course ceiling

  Scenarios:
    GET    /api/scenarios                        List demo datasets
    GET    /api/scenarios/current                Last loaded dataset
    POST   /api/scenarios/load                   Load a demo dataset

  Health:
    GET    /healthz

ERROR HANDLING:
  See errors.go. Body is always {ok:false, error, kind}.

SECURITY NOTE:
  No authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo datasets
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/warp/vagas-engine/logger"
	"github.com/warp/vagas-engine/vagas"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// ReferenceData is the store surface used outside the ledger operations.
type ReferenceData interface {
	vagas.ReferenceStore
	vagas.ActionLog
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *vagas.Service
	Ref     ReferenceData
	Log     *logger.Logger

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a handler. log may be nil.
func NewHandler(svc *vagas.Service, ref ReferenceData, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Handler{Service: svc, Ref: ref, Log: log}
}

// =============================================================================
// ACTION HANDLERS
// =============================================================================

// SubmitAction accepts every action type. MUDANCA_CURSO is routed to the
// course change flow.
func (h *Handler) SubmitAction(w http.ResponseWriter, r *http.Request) {
	var body ActionSubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	t, err := vagas.ParseActionType(body.TipoAcao)
	if err != nil {
		writeError(w, err)
		return
	}
	if t == vagas.ActionChangeCourse {
		h.courseChange(w, r, body)
		return
	}

	req, err := body.toActionRequest(t)
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := h.Service.SubmitAction(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := ActionResponseDTO{
		OK:         true,
		AcaoIDs:    toActionIDs(result.ActionIDs),
		Referencia: result.ReferenceID,
		Gestor:     toGestorDTO(result.Manager),
		Message:    "Ação de vagas criada com sucesso",
	}
	if t == vagas.ActionWithdraw && len(resp.AcaoIDs) == 1 {
		resp.AcaoID = &resp.AcaoIDs[0]
		resp.Message = "Desistência registrada com sucesso"
	}
	writeJSON(w, http.StatusCreated, resp)
}

// SubmitCourseChange accepts a course change body; tipoAcao is ignored.
func (h *Handler) SubmitCourseChange(w http.ResponseWriter, r *http.Request) {
	var body ActionSubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	h.courseChange(w, r, body)
}

func (h *Handler) courseChange(w http.ResponseWriter, r *http.Request, body ActionSubmitRequest) {
	req, err := body.toCourseChangeRequest()
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := h.Service.SubmitCourseChange(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ActionResponseDTO{
		OK:                true,
		AcaoIDs:           toActionIDs(result.ActionIDs),
		EstabelecimentoID: int64(result.EstablishmentID),
		Referencia:        result.ReferenceID,
		Gestor:            toGestorDTO(result.Manager),
		Message:           "Mudança de curso processada com sucesso (diminuir/aumentar gerados).",
	})
}

// =============================================================================
// ESTABLISHMENT HANDLERS
// =============================================================================

// ListCourseBalances reads the establishment id from the query string.
func (h *Handler) ListCourseBalances(w http.ResponseWriter, r *http.Request) {
	h.courseBalances(w, r, r.URL.Query().Get("estabelecimento_id"))
}

// GetCourseBalances reads the establishment id from the path.
func (h *Handler) GetCourseBalances(w http.ResponseWriter, r *http.Request) {
	h.courseBalances(w, r, chi.URLParam(r, "id"))
}

func (h *Handler) courseBalances(w http.ResponseWriter, r *http.Request, rawID string) {
	id, err := parseID("estabelecimento_id", rawID)
	if err != nil {
		writeError(w, err)
		return
	}
	balances, err := h.Service.CourseBalances(r.Context(), vagas.EstablishmentID(id))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCourseBalanceDTOs(balances))
}

// ListActions returns the action log of an establishment.
func (h *Handler) ListActions(w http.ResponseWriter, r *http.Request) {
	id, err := parseID("estabelecimento_id", chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	actions, err := h.Ref.ListActions(r.Context(), vagas.EstablishmentID(id))
	if err != nil {
		h.Log.Error("list actions failed", "establishment_id", id, "error", err)
		writeError(w, err)
		return
	}
	dtos := make([]ActionDTO, len(actions))
	for i, a := range actions {
		dtos[i] = toActionDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// SetCourseCeiling replaces the ceiling (vagas) of a course.
func (h *Handler) SetCourseCeiling(w http.ResponseWriter, r *http.Request) {
	id, err := parseID("curso_id", chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	var body SetCeilingRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	if body.Vagas == nil || body.Vagas.LessThan(decimal.Zero) || !body.Vagas.IsInteger() {
		writeError(w, &vagas.ValidationError{Field: "vagas", Message: "ceiling must be a non-negative integer"})
		return
	}
	ceiling, err := vagas.QuantityFromDecimal(strconv.FormatInt(id, 10), *body.Vagas)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.Ref.SetCourseCeiling(r.Context(), vagas.CourseID(id), ceiling); err != nil {
		writeError(w, err)
		return
	}
	h.Log.Info("course ceiling updated", "course_id", id, "ceiling", ceiling)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "curso_id": id, "vagas": ceiling})
}

// =============================================================================
// HELPERS
// =============================================================================

func parseID(field, raw string) (int64, error) {
	if raw == "" {
		return 0, &vagas.ValidationError{Field: field, Message: "is required"}
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &vagas.ValidationError{Field: field, Message: "invalid id " + strconv.Quote(raw)}
	}
	return id, nil
}
