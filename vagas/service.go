/*
service.go - Public operations of the slot ledger

PURPOSE:
  The three operations callers use. Each one runs in exactly one store
  transaction, so the balance a decision is based on is the balance the
  write lands on.

OPERATIONS:
  SubmitAction        INCREASE, DECREASE, INCLUDE_ENHANCEMENT,
                      EDICT_ADHESION and WITHDRAW, one row per item
  SubmitCourseChange  See coursechange.go
  CourseBalances      Read-only projection per course

FLOW (SubmitAction):
  1. Shape checks (type, manager id, UF, items, withdrawal reason)
  2. BEGIN
  3. Manager exists, region resolves
  4. Per item: establishment -> course -> balance -> Validate -> Append
  5. COMMIT, or ROLLBACK on the first error

CONCURRENCY:
  Service holds no mutable state. Two requests racing on the same course
  are serialized by the store's transaction isolation.
*/
package vagas

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/warp/vagas-engine/logger"
)

// ActionRequest is the input of SubmitAction.
type ActionRequest struct {
	Type      ActionType
	ManagerID ManagerID
	Region    RegionRef
	Items     []LineItem
	Reason    string // WITHDRAW only
}

// ActionResult lists the rows SubmitAction wrote.
type ActionResult struct {
	ActionIDs   []ActionID
	ReferenceID string
	Manager     Manager
}

// Service exposes the ledger operations over an explicitly passed Store.
type Service struct {
	store Store
	log   *logger.Logger
	now   func() time.Time
	newID func() string
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the clock that stamps created_at.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithReferenceIDs overrides the generator of per-request reference ids.
func WithReferenceIDs(gen func() string) Option {
	return func(s *Service) { s.newID = gen }
}

func NewService(store Store, log *logger.Logger, opts ...Option) *Service {
	s := &Service{
		store: store,
		log:   log,
		now:   time.Now,
		newID: func() string { return uuid.NewString() },
	}
	if s.log == nil {
		s.log = logger.NewNop()
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// =============================================================================
// SUBMIT ACTION
// =============================================================================

// SubmitAction validates and writes one action row per item, atomically.
func (s *Service) SubmitAction(ctx context.Context, req ActionRequest) (*ActionResult, error) {
	if err := checkActionShape(req); err != nil {
		s.reject("submit_action", req.Type, err)
		return nil, err
	}

	result := &ActionResult{ReferenceID: s.newID()}
	err := s.store.WithTx(ctx, func(tx Tx) error {
		resolver := NewResolver(tx)
		calc := NewCalculator(tx)
		writer := NewWriter(tx, s.now)

		manager, err := resolver.Manager(ctx, req.ManagerID)
		if err != nil {
			return err
		}
		result.Manager = *manager
		region, err := resolver.Region(ctx, req.Region)
		if err != nil {
			return err
		}

		for _, item := range req.Items {
			id, err := s.applyItem(ctx, resolver, calc, writer, req, region, item, result.ReferenceID)
			if err != nil {
				return err
			}
			result.ActionIDs = append(result.ActionIDs, id)
		}
		return nil
	})
	if err != nil {
		s.reject("submit_action", req.Type, err)
		return nil, err
	}

	s.log.Info("action accepted",
		"type", req.Type,
		"manager_id", req.ManagerID,
		"action_ids", result.ActionIDs,
		"reference_id", result.ReferenceID,
	)
	return result, nil
}

func (s *Service) applyItem(ctx context.Context, resolver *Resolver, calc *Calculator, writer *Writer,
	req ActionRequest, region Region, item LineItem, referenceID string) (ActionID, error) {

	if req.Type != ActionWithdraw && item.Quantity <= 0 {
		return 0, &InvalidQuantityError{CourseRef: item.Course.String(), Quantity: strconv.FormatInt(item.Quantity, 10)}
	}

	est, err := resolver.Establishment(ctx, item.EstablishmentCode, region.MunicipalityID)
	if err != nil {
		return 0, err
	}
	courseID, err := resolver.Course(ctx, req.Type, item.Course, est.ID)
	if err != nil {
		return 0, err
	}
	b, err := calc.Balance(ctx, courseID, est.ID)
	if err != nil {
		return 0, err
	}
	if err := Validate(req.Type, item.Quantity, b); err != nil {
		return 0, err
	}

	a := Action{
		EstablishmentID: est.ID,
		CourseID:        courseID,
		ManagerID:       req.ManagerID,
		Type:            req.Type,
		Quantity:        item.Quantity,
		Region:          region,
		ReferenceID:     referenceID,
	}
	if req.Type == ActionWithdraw {
		a.WithdrawalReason = strings.TrimSpace(req.Reason)
	}
	return writer.Append(ctx, a)
}

func checkActionShape(req ActionRequest) error {
	if req.Type == "" {
		return &ValidationError{Field: "tipoAcao", Message: "action type is required"}
	}
	if req.Type == ActionChangeCourse {
		return &ValidationError{Field: "tipoAcao", Message: "course changes are submitted with SubmitCourseChange"}
	}
	if req.ManagerID <= 0 {
		return &ValidationError{Field: "gestorId", Message: "manager id is required"}
	}
	if normalizeUpper(req.Region.UF) == "" {
		return &ValidationError{Field: "ufSelecionada", Message: "UF is required"}
	}
	if len(req.Items) == 0 {
		return &ValidationError{Field: "cursos", Message: "at least one course is required"}
	}
	if req.Type == ActionWithdraw {
		for _, it := range req.Items {
			if err := ValidateWithdrawal(req.Reason, it.Course); err != nil {
				return err
			}
		}
	}
	return nil
}

// =============================================================================
// SUBMIT COURSE CHANGE
// =============================================================================

// SubmitCourseChange applies a conservation-checked course change atomically.
func (s *Service) SubmitCourseChange(ctx context.Context, req CourseChangeRequest) (*CourseChangeResult, error) {
	if req.ManagerID <= 0 {
		err := &ValidationError{Field: "gestorId", Message: "manager id is required"}
		s.reject("submit_course_change", ActionChangeCourse, err)
		return nil, err
	}

	var result *CourseChangeResult
	err := s.store.WithTx(ctx, func(tx Tx) error {
		resolver := NewResolver(tx)
		manager, err := resolver.Manager(ctx, req.ManagerID)
		if err != nil {
			return err
		}
		region, err := resolver.Region(ctx, req.Region)
		if err != nil {
			return err
		}

		o := NewChangeOrchestrator(resolver, NewCalculator(tx), NewWriter(tx, s.now))
		if result, err = o.Apply(ctx, req, region, s.newID()); err != nil {
			return err
		}
		result.Manager = *manager
		return nil
	})
	if err != nil {
		s.reject("submit_course_change", ActionChangeCourse, err)
		return nil, err
	}

	s.log.Info("course change accepted",
		"manager_id", req.ManagerID,
		"establishment_id", result.EstablishmentID,
		"action_ids", result.ActionIDs,
		"reference_id", result.ReferenceID,
	)
	return result, nil
}

// =============================================================================
// COURSE BALANCES
// =============================================================================

// CourseBalances returns ceiling, requested balance and headroom for every
// course of the establishment.
func (s *Service) CourseBalances(ctx context.Context, establishmentID EstablishmentID) ([]CourseBalance, error) {
	if establishmentID <= 0 {
		return nil, &ValidationError{Field: "estabelecimento_id", Message: "invalid establishment id"}
	}

	var out []CourseBalance
	err := s.store.WithTx(ctx, func(tx Tx) error {
		var err error
		out, err = NewCalculator(tx).CourseBalances(ctx, establishmentID)
		return err
	})
	if err != nil {
		s.log.Error("course balances failed", "establishment_id", establishmentID, "error", err)
		return nil, err
	}
	return out, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Service) reject(op string, t ActionType, err error) {
	kind := KindOf(err)
	if kind == KindInternal {
		s.log.Error("action failed", "op", op, "type", t, "error", err)
		return
	}
	s.log.Warn("action rejected", "op", op, "type", t, "kind", kind, "error", err.Error())
}
