/*
types.go - Core types for the slot (vaga) ledger

PURPOSE:
  Defines the vocabulary shared by every component of the engine:
  actions, courses, establishments and the reference records they point to.

KEY CONCEPTS:
  Action:        One immutable ledger row. Balances are derived from these.
  Course:        Owns a ceiling (teto). Ceiling changes only by admin update.
  Establishment: Reference data, looked up by its external (CNES-like) code.

ACTION TYPES:
  Stored names follow the names the rows already carry in production data:

    AUMENTAR_VAGAS         INCREASE            consumes ceiling, counts in balance
    DIMINUIR_VAGAS         DECREASE            bounded by balance, counts in balance
    MUDANCA_CURSO          CHANGE_COURSE       never stored, decomposed
    INCLUIR_APRIMORAMENTO  INCLUDE_ENHANCEMENT free, may create the course
    ADESAO_EDITAL          EDICT_ADHESION      consumes ceiling
    DESCREDENCIAR_VAGA     WITHDRAW            quantity 0, requires a reason

SEE ALSO:
  - balance.go: Requested balance and headroom
  - validator.go: Per-type rules
*/
package vagas

import (
	"regexp"
	"strings"
	"time"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type (
	ActionID        int64
	CourseID        int64
	EstablishmentID int64
	MunicipalityID  int64
	ManagerID       int64
)

// =============================================================================
// ACTION TYPES
// =============================================================================

// ActionType is the stored name of a ledger action.
type ActionType string

const (
	ActionIncrease           ActionType = "AUMENTAR_VAGAS"
	ActionDecrease           ActionType = "DIMINUIR_VAGAS"
	ActionChangeCourse       ActionType = "MUDANCA_CURSO"
	ActionIncludeEnhancement ActionType = "INCLUIR_APRIMORAMENTO"
	ActionEdictAdhesion      ActionType = "ADESAO_EDITAL"
	ActionWithdraw           ActionType = "DESCREDENCIAR_VAGA"
)

// Spellings written by older clients. They still count toward the balance.
const (
	legacyIncrease = "AUMENTAR VAGAS"
	legacyDecrease = "DIMINUIR VAGAS"
)

// IncreaseNames and DecreaseNames list every stored spelling that adds to or
// subtracts from the requested balance. Stores use them in their SUM queries.
var (
	IncreaseNames = []string{string(ActionIncrease), legacyIncrease}
	DecreaseNames = []string{string(ActionDecrease), legacyDecrease}
)

var actionAliases = map[string]ActionType{
	"AUMENTAR VAGAS":            ActionIncrease,
	"AUMENTAR_VAGAS":            ActionIncrease,
	"DIMINUIR VAGAS":            ActionDecrease,
	"DIMINUIR_VAGAS":            ActionDecrease,
	"MUDANCA_CURSO":             ActionChangeCourse,
	"MUDANCA CURSO":             ActionChangeCourse,
	"MUDANÇA DE CURSO":          ActionChangeCourse,
	"MUDANCA DE CURSO":          ActionChangeCourse,
	"INCLUIR_APRIMORAMENTO":     ActionIncludeEnhancement,
	"INCLUIR APRIMORAMENTO":     ActionIncludeEnhancement,
	"ADESAO_EDITAL":             ActionEdictAdhesion,
	"ADESAO EDITAL":             ActionEdictAdhesion,
	"ADESÃO POR PERDA DE PRAZO": ActionEdictAdhesion,
	"DESCREDENCIAR VAGA":        ActionWithdraw,
	"DESCREDENCIAR_VAGA":        ActionWithdraw,
	"DESISTIR DA ADESAO":        ActionWithdraw,
}

var spaces = regexp.MustCompile(`\s+`)

// normalizeUpper trims, collapses inner whitespace and upper-cases.
func normalizeUpper(s string) string {
	return strings.ToUpper(spaces.ReplaceAllString(strings.TrimSpace(s), " "))
}

// ParseActionType maps a client-supplied action name onto its stored type.
func ParseActionType(raw string) (ActionType, error) {
	v := normalizeUpper(raw)
	if v == "" {
		return "", &ValidationError{Field: "tipoAcao", Message: "action type is required"}
	}
	t, ok := actionAliases[v]
	if !ok {
		return "", &ValidationError{Field: "tipoAcao", Message: "unknown action type " + v}
	}
	return t, nil
}

// ConsumesCeiling reports whether accepted actions of this type must fit in
// the course headroom.
func (t ActionType) ConsumesCeiling() bool {
	return t == ActionIncrease || t == ActionEdictAdhesion
}

// CanCreateCourse reports whether an unknown course name is created on the fly.
func (t ActionType) CanCreateCourse() bool {
	return t == ActionIncludeEnhancement
}

// =============================================================================
// LEDGER ROW
// =============================================================================

// Region is the state + municipality an action was filed under.
type Region struct {
	UF             string
	MunicipalityID MunicipalityID
}

// Action is one immutable ledger entry. Once committed it is never updated
// or deleted.
type Action struct {
	ID               ActionID
	EstablishmentID  EstablishmentID
	CourseID         CourseID
	ManagerID        ManagerID
	Type             ActionType
	Quantity         int64
	Region           Region
	WithdrawalReason string
	ReferenceID      string // shared by every row of one accepted request
	CreatedAt        time.Time
}

// =============================================================================
// REFERENCE RECORDS
// =============================================================================

// Course is a training course offered by one establishment.
type Course struct {
	ID              CourseID
	Name            string
	Ceiling         int64
	EstablishmentID EstablishmentID
}

// Establishment is a health establishment identified externally by Code.
type Establishment struct {
	ID             EstablishmentID
	Code           string
	MunicipalityID MunicipalityID
	Name           string
}

// Municipality carries the UF of its state.
type Municipality struct {
	ID      MunicipalityID
	Name    string
	IBGE    string
	StateID int64
	UF      string
}

// State is a federative unit.
type State struct {
	ID   int64
	UF   string
	Name string
}

// Manager (gestor) files actions. The engine checks it exists and echoes
// it back on every accepted submission.
type Manager struct {
	ID    ManagerID
	Name  string
	CPF   string
	Email string
}
