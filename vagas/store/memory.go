// Package store provides an in-memory vagas.Store.
package store

import (
	"context"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/warp/vagas-engine/vagas"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps every table in maps. A transaction works on a private copy
// of the data that replaces the live copy only on commit, so a failed
// transaction leaves no trace. Transactions are serialized by mu.
type Memory struct {
	mu   sync.Mutex
	data *dataset
}

type dataset struct {
	states         map[int64]vagas.State
	municipalities map[vagas.MunicipalityID]vagas.Municipality
	establishments map[vagas.EstablishmentID]vagas.Establishment
	managers       map[vagas.ManagerID]vagas.Manager
	courses        map[vagas.CourseID]vagas.Course
	actions        []vagas.Action

	nextCourseID vagas.CourseID
	nextActionID vagas.ActionID
}

func newDataset() *dataset {
	return &dataset{
		states:         make(map[int64]vagas.State),
		municipalities: make(map[vagas.MunicipalityID]vagas.Municipality),
		establishments: make(map[vagas.EstablishmentID]vagas.Establishment),
		managers:       make(map[vagas.ManagerID]vagas.Manager),
		courses:        make(map[vagas.CourseID]vagas.Course),
		nextCourseID:   1,
		nextActionID:   1,
	}
}

func (d *dataset) clone() *dataset {
	c := *d
	c.states = cloneMap(d.states)
	c.municipalities = cloneMap(d.municipalities)
	c.establishments = cloneMap(d.establishments)
	c.managers = cloneMap(d.managers)
	c.courses = cloneMap(d.courses)
	c.actions = slices.Clone(d.actions)
	return &c
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func NewMemory() *Memory {
	return &Memory{data: newDataset()}
}

// WithTx runs fn against a copy of the data and publishes it if fn succeeds.
func (m *Memory) WithTx(ctx context.Context, fn func(tx vagas.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := m.data.clone()
	if err := fn(&memTx{d: work}); err != nil {
		return err
	}
	m.data = work
	return nil
}

// Actions returns a copy of the action log in insertion order.
func (m *Memory) Actions() []vagas.Action {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.data.actions)
}

// =============================================================================
// REFERENCE DATA (vagas.ReferenceStore)
// =============================================================================

func (m *Memory) SaveState(_ context.Context, s vagas.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.UF = strings.ToUpper(strings.TrimSpace(s.UF))
	m.data.states[s.ID] = s
	return nil
}

func (m *Memory) SaveMunicipality(_ context.Context, mu vagas.Municipality) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.municipalities[mu.ID] = mu
	return nil
}

func (m *Memory) SaveEstablishment(_ context.Context, e vagas.Establishment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.Code = strings.TrimSpace(e.Code)
	m.data.establishments[e.ID] = e
	return nil
}

func (m *Memory) SaveManager(_ context.Context, mg vagas.Manager) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.managers[mg.ID] = mg
	return nil
}

func (m *Memory) SaveCourse(_ context.Context, c vagas.Course) (vagas.CourseID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.putCourse(c), nil
}

func (m *Memory) SetCourseCeiling(_ context.Context, id vagas.CourseID, ceiling int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.data.courses[id]
	if !ok {
		return &vagas.NotFoundError{Resource: vagas.ResourceCourse, Ref: strconv.FormatInt(int64(id), 10)}
	}
	c.Ceiling = ceiling
	m.data.courses[id] = c
	return nil
}

func (d *dataset) putCourse(c vagas.Course) vagas.CourseID {
	if c.ID == 0 {
		c.ID = d.nextCourseID
	}
	if c.ID >= d.nextCourseID {
		d.nextCourseID = c.ID + 1
	}
	d.courses[c.ID] = c
	return c.ID
}

// =============================================================================
// TRANSACTION (vagas.Tx)
// =============================================================================

type memTx struct {
	d *dataset
}

func (t *memTx) Manager(_ context.Context, id vagas.ManagerID) (*vagas.Manager, error) {
	m, ok := t.d.managers[id]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (t *memTx) MunicipalityByID(_ context.Context, id vagas.MunicipalityID) (*vagas.Municipality, error) {
	m, ok := t.d.municipalities[id]
	if !ok {
		return nil, nil
	}
	return t.withUF(m), nil
}

func (t *memTx) MunicipalityByName(_ context.Context, name string) (*vagas.Municipality, error) {
	ids := make([]vagas.MunicipalityID, 0, len(t.d.municipalities))
	for id := range t.d.municipalities {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		m := t.d.municipalities[id]
		if strings.EqualFold(m.Name, name) {
			return t.withUF(m), nil
		}
	}
	return nil, nil
}

func (t *memTx) withUF(m vagas.Municipality) *vagas.Municipality {
	if s, ok := t.d.states[m.StateID]; ok {
		m.UF = s.UF
	}
	return &m
}

func (t *memTx) EstablishmentByCode(_ context.Context, code string) (*vagas.Establishment, error) {
	var found *vagas.Establishment
	for _, e := range t.d.establishments {
		if strings.TrimSpace(e.Code) != code {
			continue
		}
		if found == nil || e.ID < found.ID {
			e := e
			found = &e
		}
	}
	return found, nil
}

func (t *memTx) Course(_ context.Context, id vagas.CourseID) (*vagas.Course, error) {
	c, ok := t.d.courses[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (t *memTx) CoursesByEstablishment(_ context.Context, id vagas.EstablishmentID) ([]vagas.Course, error) {
	var out []vagas.Course
	for _, c := range t.d.courses {
		if c.EstablishmentID == id {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *memTx) CreateCourse(_ context.Context, c vagas.Course) (vagas.CourseID, error) {
	c.ID = 0
	return t.d.putCourse(c), nil
}

func (t *memTx) ActionTotals(_ context.Context, courseID vagas.CourseID, establishmentID vagas.EstablishmentID) (vagas.Totals, error) {
	var totals vagas.Totals
	for _, a := range t.d.actions {
		if a.CourseID != courseID || a.EstablishmentID != establishmentID {
			continue
		}
		switch {
		case slices.Contains(vagas.IncreaseNames, string(a.Type)):
			totals.Increased += a.Quantity
		case slices.Contains(vagas.DecreaseNames, string(a.Type)):
			totals.Decreased += a.Quantity
		}
	}
	return totals, nil
}

// AppendAction is the only write on the action log. Append-only.
func (t *memTx) AppendAction(_ context.Context, a vagas.Action) (vagas.ActionID, error) {
	a.ID = t.d.nextActionID
	t.d.nextActionID++
	t.d.actions = append(t.d.actions, a)
	return a.ID, nil
}

// AppendRaw writes a row without going through the engine. Tests use it to
// model rows inserted by other tools.
func (m *Memory) AppendRaw(a vagas.Action) vagas.ActionID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, _ := (&memTx{d: m.data}).AppendAction(context.Background(), a)
	return id
}

// ListActions returns the rows of one establishment in insertion order.
func (m *Memory) ListActions(_ context.Context, establishmentID vagas.EstablishmentID) ([]vagas.Action, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []vagas.Action
	for _, a := range m.data.actions {
		if a.EstablishmentID == establishmentID {
			out = append(out, a)
		}
	}
	return out, nil
}
