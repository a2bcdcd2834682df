/*
resolver.go - Region, establishment and course resolution

PURPOSE:
  Turns the references a client sends (UF, municipality id or name,
  establishment code, course id or name) into internal records, checking
  that they are consistent with each other.

ESTABLISHMENT CODES:
  Codes are opaque strings matched after trimming. They are never padded
  and non-digits are never stripped: codes of different lengths coexist.

COURSE RESOLUTION ORDER:
  1. ID parses as an integer and that course exists: it must belong to the
     establishment, else ForeignCourse.
  2. Case-insensitive exact name match inside the establishment. The name
     is Name, or ID when Name is empty.
  3. Not found: INCLUDE_ENHANCEMENT creates it with ceiling 0, every other
     type fails with NotFound.

Course creation happens in the caller's transaction and disappears with it
on rollback.
*/
package vagas

import (
	"context"
	"strconv"
	"strings"
)

// CourseRef is a course reference as sent by a client: a numeric id, a
// name, or both.
type CourseRef struct {
	ID   string
	Name string
}

// IsZero reports whether neither field carries a value.
func (r CourseRef) IsZero() bool {
	return strings.TrimSpace(r.ID) == "" && strings.TrimSpace(r.Name) == ""
}

func (r CourseRef) String() string {
	if n := strings.TrimSpace(r.Name); n != "" {
		return n
	}
	return strings.TrimSpace(r.ID)
}

// RegionRef is the region a request claims to be filed under.
type RegionRef struct {
	UF               string
	MunicipalityID   MunicipalityID // zero when resolving by name
	MunicipalityName string
}

// Resolver resolves references inside a transaction.
type Resolver struct {
	tx Tx
}

func NewResolver(tx Tx) *Resolver {
	return &Resolver{tx: tx}
}

// =============================================================================
// MANAGER & REGION
// =============================================================================

// Manager loads the manager filing the submission.
func (r *Resolver) Manager(ctx context.Context, id ManagerID) (*Manager, error) {
	if id <= 0 {
		return nil, &ValidationError{Field: "gestorId", Message: "manager id is required"}
	}
	m, err := r.tx.Manager(ctx, id)
	if err != nil {
		return nil, storeErr("load manager", err)
	}
	if m == nil {
		return nil, &NotFoundError{Resource: ResourceManager, Ref: strconv.FormatInt(int64(id), 10)}
	}
	return m, nil
}

// Region resolves the municipality and checks it lies in the claimed UF.
func (r *Resolver) Region(ctx context.Context, ref RegionRef) (Region, error) {
	uf := normalizeUpper(ref.UF)
	if uf == "" {
		return Region{}, &ValidationError{Field: "ufSelecionada", Message: "UF is required"}
	}

	var (
		m   *Municipality
		err error
		key string
	)
	switch name := strings.TrimSpace(ref.MunicipalityName); {
	case ref.MunicipalityID > 0:
		key = strconv.FormatInt(int64(ref.MunicipalityID), 10)
		m, err = r.tx.MunicipalityByID(ctx, ref.MunicipalityID)
	case name != "":
		key = name
		m, err = r.tx.MunicipalityByName(ctx, name)
	default:
		return Region{}, &ValidationError{Field: "municipio_id", Message: "municipality is required"}
	}
	if err != nil {
		return Region{}, storeErr("load municipality", err)
	}
	if m == nil {
		return Region{}, &NotFoundError{Resource: ResourceMunicipality, Ref: key}
	}

	if got := normalizeUpper(m.UF); got != "" && got != uf {
		return Region{}, &MismatchedRegionError{
			Message: "selected UF (" + uf + ") does not match the municipality's UF (" + got + ")",
		}
	}
	return Region{UF: uf, MunicipalityID: m.ID}, nil
}

// =============================================================================
// ESTABLISHMENT
// =============================================================================

// Establishment resolves code and checks it lies in municipalityID.
func (r *Resolver) Establishment(ctx context.Context, code string, municipalityID MunicipalityID) (*Establishment, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, &ValidationError{Field: "cnes", Message: "establishment code is required"}
	}

	est, err := r.tx.EstablishmentByCode(ctx, code)
	if err != nil {
		return nil, storeErr("load establishment", err)
	}
	if est == nil {
		return nil, &NotFoundError{Resource: ResourceEstablishment, Ref: code}
	}
	if est.MunicipalityID != municipalityID {
		return nil, &MismatchedRegionError{
			Message: "establishment " + code + " does not belong to the selected municipality",
		}
	}
	return est, nil
}

// =============================================================================
// COURSE
// =============================================================================

// Course resolves ref inside establishmentID, creating the course when t
// allows it.
func (r *Resolver) Course(ctx context.Context, t ActionType, ref CourseRef, establishmentID EstablishmentID) (CourseID, error) {
	if rawID := strings.TrimSpace(ref.ID); rawID != "" {
		if n, err := strconv.ParseInt(rawID, 10, 64); err == nil {
			c, err := r.tx.Course(ctx, CourseID(n))
			if err != nil {
				return 0, storeErr("load course", err)
			}
			if c != nil {
				if c.EstablishmentID != establishmentID {
					return 0, &ForeignCourseError{CourseID: c.ID, EstablishmentID: establishmentID}
				}
				return c.ID, nil
			}
		}
	}

	name := ref.String()
	if name == "" {
		return 0, &ValidationError{Field: "curso", Message: "course has no valid id or name"}
	}

	courses, err := r.tx.CoursesByEstablishment(ctx, establishmentID)
	if err != nil {
		return 0, storeErr("list courses", err)
	}
	for _, c := range courses {
		if strings.EqualFold(strings.TrimSpace(c.Name), name) {
			return c.ID, nil
		}
	}

	if !t.CanCreateCourse() {
		return 0, &NotFoundError{Resource: ResourceCourse, Ref: name}
	}

	id, err := r.tx.CreateCourse(ctx, Course{Name: name, Ceiling: 0, EstablishmentID: establishmentID})
	if err != nil {
		return 0, storeErr("create course", err)
	}
	return id, nil
}
