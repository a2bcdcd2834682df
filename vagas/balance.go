/*
balance.go - Requested balance and ceiling headroom

PURPOSE:
  Derives, from the action log, how many slots a course currently has
  requested at an establishment and how many more fit under its ceiling.
  Nothing here is persisted: both numbers are projections that are
  recomputed inside the transaction that will act on them.

FORMULAS:
  Requested = max(sum(INCREASE) - sum(DECREASE), 0)
  Headroom  = max(Ceiling - Requested, 0)

FLOOR AT ZERO:
  A negative raw balance can only come from rows inserted outside the
  engine. It is clamped to 0 and not reported.

SEE ALSO:
  - validator.go: Consumes Balance
  - store.go: Tx.ActionTotals
*/
package vagas

import (
	"context"
	"sort"
	"strconv"
)

// Balance is the ledger state of one course at one establishment.
type Balance struct {
	CourseID        CourseID
	EstablishmentID EstablishmentID
	Ceiling         int64
	Totals
}

// Raw is the signed balance before clamping.
func (b Balance) Raw() int64 {
	return b.Increased - b.Decreased
}

// Requested is the net number of slots requested, never negative.
func (b Balance) Requested() int64 {
	return max(b.Raw(), 0)
}

// Headroom is how many slots can still be requested under the ceiling.
func (b Balance) Headroom() int64 {
	return max(b.Ceiling-b.Requested(), 0)
}

// CourseBalance is one row of getCourseBalances.
type CourseBalance struct {
	CourseID         CourseID
	Name             string
	Ceiling          int64
	RequestedBalance int64
	CeilingHeadroom  int64
}

// Calculator computes balances inside a transaction.
type Calculator struct {
	tx Tx
}

func NewCalculator(tx Tx) *Calculator {
	return &Calculator{tx: tx}
}

// Balance reads the course ceiling and the action totals for the pair.
func (c *Calculator) Balance(ctx context.Context, courseID CourseID, establishmentID EstablishmentID) (Balance, error) {
	course, err := c.tx.Course(ctx, courseID)
	if err != nil {
		return Balance{}, storeErr("load course", err)
	}
	if course == nil {
		return Balance{}, &NotFoundError{Resource: ResourceCourse, Ref: strconv.FormatInt(int64(courseID), 10)}
	}
	return c.balanceOf(ctx, *course, establishmentID)
}

func (c *Calculator) balanceOf(ctx context.Context, course Course, establishmentID EstablishmentID) (Balance, error) {
	totals, err := c.tx.ActionTotals(ctx, course.ID, establishmentID)
	if err != nil {
		return Balance{}, storeErr("sum actions", err)
	}
	return Balance{
		CourseID:        course.ID,
		EstablishmentID: establishmentID,
		Ceiling:         course.Ceiling,
		Totals:          totals,
	}, nil
}

// RequestedBalance is a shortcut for Balance(...).Requested().
func (c *Calculator) RequestedBalance(ctx context.Context, courseID CourseID, establishmentID EstablishmentID) (int64, error) {
	b, err := c.Balance(ctx, courseID, establishmentID)
	if err != nil {
		return 0, err
	}
	return b.Requested(), nil
}

// CeilingHeadroom is a shortcut for Balance(...).Headroom().
func (c *Calculator) CeilingHeadroom(ctx context.Context, courseID CourseID, establishmentID EstablishmentID) (int64, error) {
	b, err := c.Balance(ctx, courseID, establishmentID)
	if err != nil {
		return 0, err
	}
	return b.Headroom(), nil
}

// CourseBalances lists every course of the establishment with its balance,
// ordered by name, then id.
func (c *Calculator) CourseBalances(ctx context.Context, establishmentID EstablishmentID) ([]CourseBalance, error) {
	courses, err := c.tx.CoursesByEstablishment(ctx, establishmentID)
	if err != nil {
		return nil, storeErr("list courses", err)
	}

	out := make([]CourseBalance, 0, len(courses))
	for _, course := range courses {
		b, err := c.balanceOf(ctx, course, establishmentID)
		if err != nil {
			return nil, err
		}
		out = append(out, CourseBalance{
			CourseID:         course.ID,
			Name:             course.Name,
			Ceiling:          course.Ceiling,
			RequestedBalance: b.Requested(),
			CeilingHeadroom:  b.Headroom(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].CourseID < out[j].CourseID
	})
	return out, nil
}
