/*
store.go - Persistence contract for the slot ledger

PURPOSE:
  Defines the interface between the engine and the database. The engine
  never holds a global pool: a Store is passed in explicitly and every
  operation runs inside Store.WithTx.

KEY INTERFACES:
  Store: Opens a transaction and hands the callback a Tx.
  Tx:    Reads reference data, sums the action log, appends actions and
         creates courses. All calls observe the transaction's own writes.

APPEND-ONLY CONTRACT:
  Tx has exactly one write on the action log: AppendAction. There is no
  update or delete. SQL implementations also reject UPDATE/DELETE on the
  log table with triggers.

TRANSACTION CONTRACT:
  - fn returns nil: the transaction commits.
  - fn returns an error: the transaction rolls back and the error is
    returned unchanged, so callers can classify it with errors.Is/As.

LOOKUPS:
  Single-record lookups return (nil, nil) when the record does not exist.
  The engine turns that into a NotFoundError with the reference it used.

IMPLEMENTATIONS:
  - store/sqlite: go-sqlite3
  - store/postgres: pgx, SERIALIZABLE transactions
  - vagas/store: in-memory, for tests
*/
package vagas

import "context"

// Totals are the raw sums of INCREASE and DECREASE quantities for a
// (course, establishment) pair.
type Totals struct {
	Increased int64
	Decreased int64
}

// Tx is the set of operations available inside one store transaction.
type Tx interface {
	Manager(ctx context.Context, id ManagerID) (*Manager, error)
	MunicipalityByID(ctx context.Context, id MunicipalityID) (*Municipality, error)
	MunicipalityByName(ctx context.Context, name string) (*Municipality, error)

	// EstablishmentByCode matches the trimmed stored code against code
	// exactly (case-sensitive, no padding).
	EstablishmentByCode(ctx context.Context, code string) (*Establishment, error)

	Course(ctx context.Context, id CourseID) (*Course, error)
	CoursesByEstablishment(ctx context.Context, id EstablishmentID) ([]Course, error)
	CreateCourse(ctx context.Context, c Course) (CourseID, error)

	ActionTotals(ctx context.Context, courseID CourseID, establishmentID EstablishmentID) (Totals, error)
	AppendAction(ctx context.Context, a Action) (ActionID, error)
}

// Store runs fn inside one transaction.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// ReferenceStore seeds and administers the records the engine only reads.
// It is outside the ledger's invariants.
type ReferenceStore interface {
	SaveState(ctx context.Context, s State) error
	SaveMunicipality(ctx context.Context, m Municipality) error
	SaveEstablishment(ctx context.Context, e Establishment) error
	SaveManager(ctx context.Context, m Manager) error
	SaveCourse(ctx context.Context, c Course) (CourseID, error)

	// SetCourseCeiling is the only way a ceiling changes.
	SetCourseCeiling(ctx context.Context, id CourseID, ceiling int64) error
}

// ActionLog reads the action log back, oldest first. It is used by admin
// endpoints and audits, never by the engine's decisions.
type ActionLog interface {
	ListActions(ctx context.Context, establishmentID EstablishmentID) ([]Action, error)
}
