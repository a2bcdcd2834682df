/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON shapes of the HTTP surface. Field names follow the form posted by
  the existing front end (Portuguese, mixed camelCase/snake_case), so the
  DTOs keep them and convert to vagas types in one place.

NAMING CONVENTION:
  - *Request: Request body types from clients
  - *DTO:     Response types returned to clients

LENIENT DECODING:
  Ids and codes arrive as strings or numbers (FlexString). Quantities are
  decoded as decimals so "2.5" or 2.5 is rejected as invalid_quantity
  instead of being truncated.

SEE ALSO:
  - handlers.go: Uses these types
  - vagas/service.go: ActionRequest, CourseChangeRequest
*/
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/vagas-engine/vagas"
)

// =============================================================================
// LENIENT SCALARS
// =============================================================================

// FlexString decodes a JSON string or number into its trimmed text form.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", b)
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) String() string { return string(f) }

// Int64 parses the value as a base-10 integer. ok is false when empty or
// not an integer.
func (f FlexString) Int64() (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(string(f)), 10, 64)
	return n, err == nil
}

// =============================================================================
// REQUEST TYPES
// =============================================================================

// CourseItemRequest is one entry of cursos, cursosRemover or cursosAdicionar.
type CourseItemRequest struct {
	ID         FlexString       `json:"id"`
	CursoID    FlexString       `json:"curso_id"`
	Nome       string           `json:"nome"`
	Quantidade *decimal.Decimal `json:"quantidade"`
	CNES       FlexString       `json:"cnes"`
	Operacao   string           `json:"operacao"`
}

func (c CourseItemRequest) courseRef() vagas.CourseRef {
	id := c.ID
	if id == "" {
		id = c.CursoID
	}
	return vagas.CourseRef{ID: id.String(), Name: strings.TrimSpace(c.Nome)}
}

// lineItem converts the entry. Quantity is only decoded when withQuantity
// is set; WITHDRAW rows always store 0.
func (c CourseItemRequest) lineItem(withQuantity bool) (vagas.LineItem, error) {
	item := vagas.LineItem{
		Course:            c.courseRef(),
		EstablishmentCode: c.CNES.String(),
	}
	if !withQuantity || c.Quantidade == nil {
		return item, nil
	}
	q, err := vagas.QuantityFromDecimal(item.Course.String(), *c.Quantidade)
	if err != nil {
		return vagas.LineItem{}, err
	}
	item.Quantity = q
	return item, nil
}

// ActionSubmitRequest is the body of POST /api/acoes-vagas.
type ActionSubmitRequest struct {
	TipoAcao             string              `json:"tipoAcao"`
	MotivoDescredenciar  string              `json:"motivoDescredenciar"`
	UFSelecionada        string              `json:"ufSelecionada"`
	MunicipioSelecionado FlexString          `json:"municipioSelecionado"`
	MunicipioID          FlexString          `json:"municipio_id"`
	Cursos               []CourseItemRequest `json:"cursos"`
	CursosRemover        []CourseItemRequest `json:"cursosRemover"`
	CursosAdicionar      []CourseItemRequest `json:"cursosAdicionar"`
	GestorID             FlexString          `json:"gestorId"`
	CNES                 FlexString          `json:"cnes"`
	CursoID              FlexString          `json:"curso_id"`
	CursoNome            string              `json:"curso_nome"`
}

// region picks the municipality by id when either field is numeric,
// otherwise by name.
func (r ActionSubmitRequest) region() vagas.RegionRef {
	ref := vagas.RegionRef{UF: r.UFSelecionada}
	if id, ok := r.MunicipioID.Int64(); ok {
		ref.MunicipalityID = vagas.MunicipalityID(id)
		return ref
	}
	if id, ok := r.MunicipioSelecionado.Int64(); ok {
		ref.MunicipalityID = vagas.MunicipalityID(id)
		return ref
	}
	ref.MunicipalityName = r.MunicipioSelecionado.String()
	if ref.MunicipalityName == "" {
		ref.MunicipalityName = r.MunicipioID.String()
	}
	return ref
}

func (r ActionSubmitRequest) managerID() (vagas.ManagerID, error) {
	if r.GestorID == "" {
		return 0, &vagas.ValidationError{Field: "gestorId", Message: "manager id is required"}
	}
	id, ok := r.GestorID.Int64()
	if !ok || id <= 0 {
		return 0, &vagas.ValidationError{Field: "gestorId", Message: "invalid manager id " + r.GestorID.String()}
	}
	return vagas.ManagerID(id), nil
}

// toActionRequest converts a non course-change body.
func (r ActionSubmitRequest) toActionRequest(t vagas.ActionType) (vagas.ActionRequest, error) {
	managerID, err := r.managerID()
	if err != nil {
		return vagas.ActionRequest{}, err
	}
	req := vagas.ActionRequest{
		Type:      t,
		ManagerID: managerID,
		Region:    r.region(),
		Reason:    r.MotivoDescredenciar,
	}

	withQuantity := t != vagas.ActionWithdraw
	for _, c := range r.Cursos {
		item, err := c.lineItem(withQuantity)
		if err != nil {
			return vagas.ActionRequest{}, err
		}
		if item.EstablishmentCode == "" {
			item.EstablishmentCode = r.CNES.String()
		}
		req.Items = append(req.Items, item)
	}

	// WITHDRAW is usually posted as one course at the top level.
	if len(req.Items) == 0 && t == vagas.ActionWithdraw {
		ref := vagas.CourseRef{ID: r.CursoID.String(), Name: strings.TrimSpace(r.CursoNome)}
		if !ref.IsZero() {
			req.Items = append(req.Items, vagas.LineItem{Course: ref, EstablishmentCode: r.CNES.String()})
		}
	}
	return req, nil
}

// toCourseChangeRequest converts a MUDANCA_CURSO body. The tagged cursos
// list is only read when both explicit lists are empty.
func (r ActionSubmitRequest) toCourseChangeRequest() (vagas.CourseChangeRequest, error) {
	managerID, err := r.managerID()
	if err != nil {
		return vagas.CourseChangeRequest{}, err
	}
	req := vagas.CourseChangeRequest{
		ManagerID:         managerID,
		Region:            r.region(),
		EstablishmentCode: r.CNES.String(),
	}

	if len(r.CursosRemover) == 0 && len(r.CursosAdicionar) == 0 {
		tagged := make([]vagas.TaggedItem, 0, len(r.Cursos))
		for _, c := range r.Cursos {
			item, err := c.lineItem(true)
			if err != nil {
				return vagas.CourseChangeRequest{}, err
			}
			tagged = append(tagged, vagas.TaggedItem{LineItem: item, Operation: c.Operacao})
		}
		req.ToRemove, req.ToAdd = vagas.NormalizeLegacyItems(tagged)
		return req, nil
	}

	if req.ToRemove, err = lineItems(r.CursosRemover); err != nil {
		return vagas.CourseChangeRequest{}, err
	}
	if req.ToAdd, err = lineItems(r.CursosAdicionar); err != nil {
		return vagas.CourseChangeRequest{}, err
	}
	return req, nil
}

func lineItems(in []CourseItemRequest) ([]vagas.LineItem, error) {
	out := make([]vagas.LineItem, 0, len(in))
	for _, c := range in {
		item, err := c.lineItem(true)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

// SetCeilingRequest is the body of PUT /api/admin/cursos/{id}/vagas.
type SetCeilingRequest struct {
	Vagas *decimal.Decimal `json:"vagas"`
}

// LoadScenarioRequest is the body of POST /api/scenarios/load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// ActionResponseDTO is returned for every accepted submission. AcaoID is
// set only for a withdraw, which always writes one row.
type ActionResponseDTO struct {
	OK                bool      `json:"ok"`
	AcaoID            *int64    `json:"acao_id,omitempty"`
	AcaoIDs           []int64   `json:"acao_ids"`
	EstabelecimentoID int64     `json:"estabelecimento_id,omitempty"`
	Referencia        string    `json:"referencia"`
	Gestor            GestorDTO `json:"gestor"`
	Message           string    `json:"message"`
}

// GestorDTO echoes the manager that filed the submission.
type GestorDTO struct {
	ID    int64  `json:"id"`
	CPF   string `json:"cpf"`
	Nome  string `json:"nome"`
	Email string `json:"email"`
}

// CourseBalanceDTO is one course in the balances listing.
type CourseBalanceDTO struct {
	ID              int64  `json:"id"`
	Nome            string `json:"nome"`
	Vagas           int64  `json:"vagas"`
	SaldoSolicitado int64  `json:"saldo_solicitado"`
	SaldoDisponivel int64  `json:"saldo_disponivel"`
}

// ActionDTO is one row of the action log.
type ActionDTO struct {
	ID                      int64  `json:"id"`
	GestorID                int64  `json:"gestor_id"`
	TipoAcao                string `json:"tipo_acao"`
	UF                      string `json:"uf"`
	MunicipioID             int64  `json:"municipio_id"`
	EstabelecimentoID       int64  `json:"estabelecimento_id"`
	CursoID                 int64  `json:"curso_id"`
	Quantidade              int64  `json:"quantidade"`
	MotivoDescredenciamento string `json:"motivo_descredenciamento,omitempty"`
	Referencia              string `json:"referencia,omitempty"`
	DataCriacao             string `json:"data_criacao"`
}

// ScenarioDTO describes a demo dataset.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toGestorDTO(m vagas.Manager) GestorDTO {
	return GestorDTO{ID: int64(m.ID), CPF: m.CPF, Nome: m.Name, Email: m.Email}
}

func toActionIDs(ids []vagas.ActionID) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}

func toCourseBalanceDTOs(in []vagas.CourseBalance) []CourseBalanceDTO {
	out := make([]CourseBalanceDTO, len(in))
	for i, b := range in {
		out[i] = CourseBalanceDTO{
			ID:              int64(b.CourseID),
			Nome:            b.Name,
			Vagas:           b.Ceiling,
			SaldoSolicitado: b.RequestedBalance,
			SaldoDisponivel: b.CeilingHeadroom,
		}
	}
	return out
}

func toActionDTO(a vagas.Action) ActionDTO {
	return ActionDTO{
		ID:                      int64(a.ID),
		GestorID:                int64(a.ManagerID),
		TipoAcao:                string(a.Type),
		UF:                      a.Region.UF,
		MunicipioID:             int64(a.Region.MunicipalityID),
		EstabelecimentoID:       int64(a.EstablishmentID),
		CursoID:                 int64(a.CourseID),
		Quantidade:              a.Quantity,
		MotivoDescredenciamento: a.WithdrawalReason,
		Referencia:              a.ReferenceID,
		DataCriacao:             a.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}
