/*
coursechange.go - Course change decomposition and atomic apply

PURPOSE:
  A course change moves N slots from some courses to others inside one
  establishment. It never stores a MUDANCA_CURSO row: it is broken into
  DIMINUIR_VAGAS and AUMENTAR_VAGAS rows written in one transaction.

ALGORITHM:
  1. Two lists, ToRemove and ToAdd (the legacy tagged list is converted by
     NormalizeLegacyItems before it gets here).
  2. Both empty: rejected.
  3. Exactly one distinct establishment code across both lists.
  4. The establishment must be in the request's municipality.
  5. Each item: quantity > 0, course resolved (never created). Quantities
     are summed per course, so duplicate references merge. A sum that
     does not fit in an int64 is InvalidQuantity.
  6. sum(ToRemove) == sum(ToAdd), else UnbalancedChange.
  7. DECREASE ops run before INCREASE ops (stable).
  8. Each op is validated against the live balance of the transaction
     and written. Any failure aborts the whole change.

STATES:
  RECEIVED -> NORMALIZED -> VALIDATED -> APPLYING -> COMMITTED | ABORTED

  Only COMMITTED is visible to other transactions. ABORTED leaves the store
  exactly as it was.
*/
package vagas

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"
)

// =============================================================================
// INPUT
// =============================================================================

// LineItem is one course entry of a request.
type LineItem struct {
	Course            CourseRef
	Quantity          int64
	EstablishmentCode string
}

// Operation tags used by the legacy single-list encoding.
const (
	OperationRemove = "REMOVER"
	OperationAdd    = "ADICIONAR"
)

// TaggedItem is a line item from the legacy encoding, where one list holds
// both sides of the change.
type TaggedItem struct {
	LineItem
	Operation string
}

// NormalizeLegacyItems splits a tagged list into the two canonical lists.
// Items with an unknown tag are dropped.
func NormalizeLegacyItems(items []TaggedItem) (toRemove, toAdd []LineItem) {
	for _, it := range items {
		switch normalizeUpper(it.Operation) {
		case OperationRemove, "REMOVE":
			toRemove = append(toRemove, it.LineItem)
		case OperationAdd, "ADD":
			toAdd = append(toAdd, it.LineItem)
		}
	}
	return toRemove, toAdd
}

// CourseChangeRequest is the canonical course change input.
type CourseChangeRequest struct {
	ManagerID ManagerID
	Region    RegionRef

	// EstablishmentCode fills items that carry no code of their own.
	EstablishmentCode string

	ToRemove []LineItem
	ToAdd    []LineItem
}

// CourseChangeResult lists the rows a committed change wrote.
type CourseChangeResult struct {
	ActionIDs       []ActionID
	EstablishmentID EstablishmentID
	ReferenceID     string
	Manager         Manager
}

// =============================================================================
// ORCHESTRATOR
// =============================================================================

type changeOp struct {
	Type     ActionType
	CourseID CourseID
	Quantity int64
}

// courseTotals sums quantities per course, remembering first-seen order.
type courseTotals struct {
	order []CourseID
	qty   map[CourseID]int64
}

// add rejects a sum that would not fit in an int64. q is positive.
func (t *courseTotals) add(id CourseID, q int64) error {
	if t.qty == nil {
		t.qty = make(map[CourseID]int64)
	}
	cur, ok := t.qty[id]
	if cur > math.MaxInt64-q {
		return &InvalidQuantityError{
			CourseRef: strconv.FormatInt(int64(id), 10),
			Quantity:  "sum exceeds " + strconv.FormatInt(math.MaxInt64, 10),
		}
	}
	if !ok {
		t.order = append(t.order, id)
	}
	t.qty[id] = cur + q
	return nil
}

func (t *courseTotals) total() (int64, error) {
	var sum int64
	for _, id := range t.order {
		q := t.qty[id]
		if sum > math.MaxInt64-q {
			return 0, &InvalidQuantityError{
				CourseRef: strconv.FormatInt(int64(id), 10),
				Quantity:  "sum exceeds " + strconv.FormatInt(math.MaxInt64, 10),
			}
		}
		sum += q
	}
	return sum, nil
}

// ChangeOrchestrator applies course changes inside one transaction.
type ChangeOrchestrator struct {
	resolver *Resolver
	calc     *Calculator
	writer   *Writer
}

func NewChangeOrchestrator(resolver *Resolver, calc *Calculator, writer *Writer) *ChangeOrchestrator {
	return &ChangeOrchestrator{resolver: resolver, calc: calc, writer: writer}
}

// Apply runs steps 2-9 for req. region has already been resolved; every row
// is stamped with managerID, region and referenceID.
func (o *ChangeOrchestrator) Apply(ctx context.Context, req CourseChangeRequest, region Region, referenceID string) (*CourseChangeResult, error) {
	toRemove := withDefaultCode(req.ToRemove, req.EstablishmentCode)
	toAdd := withDefaultCode(req.ToAdd, req.EstablishmentCode)

	if len(toRemove) == 0 && len(toAdd) == 0 {
		return nil, &ValidationError{Field: "cursos", Message: "course change needs at least one course to remove or add"}
	}

	code, err := singleEstablishmentCode(toRemove, toAdd)
	if err != nil {
		return nil, err
	}

	est, err := o.resolver.Establishment(ctx, code, region.MunicipalityID)
	if err != nil {
		return nil, err
	}

	removed, err := o.aggregate(ctx, toRemove, est.ID)
	if err != nil {
		return nil, err
	}
	added, err := o.aggregate(ctx, toAdd, est.ID)
	if err != nil {
		return nil, err
	}

	totalRemove, err := removed.total()
	if err != nil {
		return nil, err
	}
	totalAdd, err := added.total()
	if err != nil {
		return nil, err
	}
	if totalRemove != totalAdd {
		return nil, &UnbalancedChangeError{TotalRemove: totalRemove, TotalAdd: totalAdd}
	}

	ops := make([]changeOp, 0, len(removed.order)+len(added.order))
	for _, id := range removed.order {
		ops = append(ops, changeOp{Type: ActionDecrease, CourseID: id, Quantity: removed.qty[id]})
	}
	for _, id := range added.order {
		ops = append(ops, changeOp{Type: ActionIncrease, CourseID: id, Quantity: added.qty[id]})
	}
	sort.SliceStable(ops, func(i, j int) bool {
		return ops[i].Type == ActionDecrease && ops[j].Type != ActionDecrease
	})

	result := &CourseChangeResult{EstablishmentID: est.ID, ReferenceID: referenceID}
	for _, op := range ops {
		if op.Quantity == 0 {
			continue
		}
		b, err := o.calc.Balance(ctx, op.CourseID, est.ID)
		if err != nil {
			return nil, err
		}
		if err := Validate(op.Type, op.Quantity, b); err != nil {
			return nil, err
		}
		id, err := o.writer.Append(ctx, Action{
			EstablishmentID: est.ID,
			CourseID:        op.CourseID,
			ManagerID:       req.ManagerID,
			Type:            op.Type,
			Quantity:        op.Quantity,
			Region:          region,
			ReferenceID:     referenceID,
		})
		if err != nil {
			return nil, err
		}
		result.ActionIDs = append(result.ActionIDs, id)
	}
	return result, nil
}

func (o *ChangeOrchestrator) aggregate(ctx context.Context, items []LineItem, establishmentID EstablishmentID) (*courseTotals, error) {
	totals := &courseTotals{}
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, &InvalidQuantityError{
				CourseRef: it.Course.String(),
				Quantity:  strconv.FormatInt(it.Quantity, 10),
			}
		}
		id, err := o.resolver.Course(ctx, ActionChangeCourse, it.Course, establishmentID)
		if err != nil {
			return nil, err
		}
		if err := totals.add(id, it.Quantity); err != nil {
			return nil, err
		}
	}
	return totals, nil
}

func withDefaultCode(items []LineItem, code string) []LineItem {
	if strings.TrimSpace(code) == "" {
		return items
	}
	out := make([]LineItem, len(items))
	for i, it := range items {
		if strings.TrimSpace(it.EstablishmentCode) == "" {
			it.EstablishmentCode = code
		}
		out[i] = it
	}
	return out
}

// singleEstablishmentCode returns the one distinct non-empty code used by
// both lists.
func singleEstablishmentCode(lists ...[]LineItem) (string, error) {
	seen := make(map[string]bool)
	var codes []string
	for _, items := range lists {
		for _, it := range items {
			c := strings.TrimSpace(it.EstablishmentCode)
			if c == "" || seen[c] {
				continue
			}
			seen[c] = true
			codes = append(codes, c)
		}
	}
	if len(codes) != 1 {
		return "", &MultipleEstablishmentsError{Codes: codes}
	}
	return codes[0], nil
}
