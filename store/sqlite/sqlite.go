/*
Package sqlite provides a SQLite-backed implementation of the vagas stores.

PURPOSE:
  Implements vagas.Store (the transactional ledger contract) and
  vagas.ReferenceStore (seeding/admin of reference data) using SQLite.
  The PostgreSQL store in store/postgres follows the same patterns with
  the dialect differences that matter (placeholders, RETURNING, isolation).

APPEND-ONLY ENFORCEMENT:
  - The engine has no code path that updates or deletes acoes_vagas
  - Triggers abort any UPDATE or DELETE on acoes_vagas

KEY TABLES:
  acoes_vagas:      Immutable action log
  cursos:           Courses and their ceilings (vagas)
  estabelecimentos: Establishments, keyed externally by cnes
  municipios:       Municipalities
  estados:          States (uf)
  gestores:         Managers

INDEXES:
  - idx_acoes_curso_estab: balance sums (hot path)
  - idx_acoes_referencia: rows of one request
  - idx_cursos_estab: course lookup by establishment
  - idx_estab_cnes: establishment lookup by code

CONCURRENCY:
  One connection, and WithTx holds a mutex for the lifetime of the
  transaction. Check-then-act on a balance is therefore serialized.

USAGE:
  store, err := sqlite.New("./data/vagas.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := vagas.NewService(store, log)

SEE ALSO:
  - vagas/store.go: Interface definitions
  - store/postgres: PostgreSQL implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/warp/vagas-engine/vagas"
)

// driverName is go-sqlite3 with a Unicode-aware upper(); the built-in one
// only folds ASCII, which breaks municipality names like "São Paulo".
const driverName = "sqlite3_vagas"

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("unicode_upper", strings.ToUpper, true)
		},
	})
}

// Store implements vagas.Store and vagas.ReferenceStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open(driverName, dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: ":memory:" databases are per connection, and a single
	// writer is what SQLite gives us anyway.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS estados (
		id INTEGER PRIMARY KEY,
		uf TEXT NOT NULL UNIQUE,
		nome TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS municipios (
		id INTEGER PRIMARY KEY,
		nome TEXT NOT NULL,
		ibge TEXT,
		estado_id INTEGER NOT NULL REFERENCES estados(id)
	);

	CREATE INDEX IF NOT EXISTS idx_municipios_nome
		ON municipios(nome COLLATE NOCASE);

	CREATE TABLE IF NOT EXISTS estabelecimentos (
		id INTEGER PRIMARY KEY,
		cnes TEXT NOT NULL,
		nome TEXT NOT NULL,
		municipio_id INTEGER NOT NULL REFERENCES municipios(id)
	);

	CREATE INDEX IF NOT EXISTS idx_estab_cnes
		ON estabelecimentos(cnes);

	CREATE TABLE IF NOT EXISTS gestores (
		id INTEGER PRIMARY KEY,
		nome TEXT NOT NULL,
		cpf TEXT,
		email TEXT
	);

	CREATE TABLE IF NOT EXISTS cursos (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		nome TEXT NOT NULL,
		vagas INTEGER NOT NULL DEFAULT 0,
		estabelecimento_id INTEGER NOT NULL REFERENCES estabelecimentos(id)
	);

	CREATE INDEX IF NOT EXISTS idx_cursos_estab
		ON cursos(estabelecimento_id);

	-- Action log (append-only)
	CREATE TABLE IF NOT EXISTS acoes_vagas (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		gestor_id INTEGER NOT NULL,
		tipo_acao TEXT NOT NULL,
		uf TEXT NOT NULL,
		municipio_id INTEGER NOT NULL,
		estabelecimento_id INTEGER NOT NULL,
		curso_id INTEGER NOT NULL,
		quantidade INTEGER NOT NULL CHECK (quantidade >= 0),
		motivo_descredenciamento TEXT,
		referencia TEXT,
		data_criacao TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_acoes_curso_estab
		ON acoes_vagas(curso_id, estabelecimento_id, tipo_acao);
	CREATE INDEX IF NOT EXISTS idx_acoes_referencia
		ON acoes_vagas(referencia) WHERE referencia IS NOT NULL;

	CREATE TRIGGER IF NOT EXISTS acoes_vagas_no_update
		BEFORE UPDATE ON acoes_vagas
	BEGIN
		SELECT RAISE(ABORT, 'acoes_vagas is append-only');
	END;

	CREATE TRIGGER IF NOT EXISTS acoes_vagas_no_delete
		BEFORE DELETE ON acoes_vagas
	BEGIN
		SELECT RAISE(ABORT, 'acoes_vagas is append-only');
	END;
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONS (vagas.Store interface)
// =============================================================================

type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx executes fn within a database transaction.
// If fn returns error, the transaction is rolled back.
func (s *Store) WithTx(ctx context.Context, fn func(tx vagas.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{q: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type txStore struct {
	q execQuerier
}

func (ts *txStore) Manager(ctx context.Context, id vagas.ManagerID) (*vagas.Manager, error) {
	var m vagas.Manager
	err := ts.q.QueryRowContext(ctx,
		`SELECT id, nome, COALESCE(cpf, ''), COALESCE(email, '') FROM gestores WHERE id = ?`, id,
	).Scan(&m.ID, &m.Name, &m.CPF, &m.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load manager: %w", err)
	}
	return &m, nil
}

const municipalitySelect = `
	SELECT m.id, m.nome, COALESCE(m.ibge, ''), m.estado_id, COALESCE(e.uf, '')
	FROM municipios m
	LEFT JOIN estados e ON e.id = m.estado_id
`

func (ts *txStore) MunicipalityByID(ctx context.Context, id vagas.MunicipalityID) (*vagas.Municipality, error) {
	return scanMunicipality(ts.q.QueryRowContext(ctx, municipalitySelect+` WHERE m.id = ?`, id))
}

func (ts *txStore) MunicipalityByName(ctx context.Context, name string) (*vagas.Municipality, error) {
	return scanMunicipality(ts.q.QueryRowContext(ctx,
		municipalitySelect+` WHERE unicode_upper(m.nome) = unicode_upper(?) ORDER BY m.id LIMIT 1`, name))
}

func scanMunicipality(row *sql.Row) (*vagas.Municipality, error) {
	var m vagas.Municipality
	err := row.Scan(&m.ID, &m.Name, &m.IBGE, &m.StateID, &m.UF)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load municipality: %w", err)
	}
	return &m, nil
}

func (ts *txStore) EstablishmentByCode(ctx context.Context, code string) (*vagas.Establishment, error) {
	var e vagas.Establishment
	err := ts.q.QueryRowContext(ctx, `
		SELECT id, cnes, municipio_id, nome
		FROM estabelecimentos
		WHERE TRIM(cnes, ' ' || char(9, 10, 11, 12, 13)) = ?
		ORDER BY id
		LIMIT 1
	`, strings.TrimSpace(code)).Scan(&e.ID, &e.Code, &e.MunicipalityID, &e.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load establishment: %w", err)
	}
	return &e, nil
}

func (ts *txStore) Course(ctx context.Context, id vagas.CourseID) (*vagas.Course, error) {
	var c vagas.Course
	err := ts.q.QueryRowContext(ctx,
		`SELECT id, nome, vagas, estabelecimento_id FROM cursos WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.Ceiling, &c.EstablishmentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load course: %w", err)
	}
	return &c, nil
}

func (ts *txStore) CoursesByEstablishment(ctx context.Context, id vagas.EstablishmentID) ([]vagas.Course, error) {
	rows, err := ts.q.QueryContext(ctx, `
		SELECT id, nome, vagas, estabelecimento_id
		FROM cursos
		WHERE estabelecimento_id = ?
		ORDER BY nome, id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	defer rows.Close()

	var courses []vagas.Course
	for rows.Next() {
		var c vagas.Course
		if err := rows.Scan(&c.ID, &c.Name, &c.Ceiling, &c.EstablishmentID); err != nil {
			return nil, fmt.Errorf("failed to scan course: %w", err)
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

func (ts *txStore) CreateCourse(ctx context.Context, c vagas.Course) (vagas.CourseID, error) {
	return insertCourse(ctx, ts.q, vagas.Course{Name: c.Name, Ceiling: c.Ceiling, EstablishmentID: c.EstablishmentID})
}

func insertCourse(ctx context.Context, q execQuerier, c vagas.Course) (vagas.CourseID, error) {
	var (
		res sql.Result
		err error
	)
	if c.ID > 0 {
		res, err = q.ExecContext(ctx,
			`INSERT INTO cursos (id, nome, vagas, estabelecimento_id) VALUES (?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET
				nome = excluded.nome, vagas = excluded.vagas, estabelecimento_id = excluded.estabelecimento_id`,
			c.ID, c.Name, c.Ceiling, c.EstablishmentID)
	} else {
		res, err = q.ExecContext(ctx,
			`INSERT INTO cursos (nome, vagas, estabelecimento_id) VALUES (?, ?, ?)`,
			c.Name, c.Ceiling, c.EstablishmentID)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to insert course: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read course id: %w", err)
	}
	return vagas.CourseID(id), nil
}

func (ts *txStore) ActionTotals(ctx context.Context, courseID vagas.CourseID, establishmentID vagas.EstablishmentID) (vagas.Totals, error) {
	inc := placeholders(len(vagas.IncreaseNames))
	dec := placeholders(len(vagas.DecreaseNames))
	query := `
		SELECT
			COALESCE(SUM(CASE WHEN tipo_acao IN (` + inc + `) THEN quantidade ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN tipo_acao IN (` + dec + `) THEN quantidade ELSE 0 END), 0)
		FROM acoes_vagas
		WHERE curso_id = ? AND estabelecimento_id = ?
	`
	args := make([]any, 0, len(vagas.IncreaseNames)+len(vagas.DecreaseNames)+2)
	for _, n := range vagas.IncreaseNames {
		args = append(args, n)
	}
	for _, n := range vagas.DecreaseNames {
		args = append(args, n)
	}
	args = append(args, courseID, establishmentID)

	var t vagas.Totals
	if err := ts.q.QueryRowContext(ctx, query, args...).Scan(&t.Increased, &t.Decreased); err != nil {
		return vagas.Totals{}, fmt.Errorf("failed to sum actions: %w", err)
	}
	return t, nil
}

// AppendAction adds a row to the action log. This is the ONLY write on it.
func (ts *txStore) AppendAction(ctx context.Context, a vagas.Action) (vagas.ActionID, error) {
	return appendAction(ctx, ts.q, a)
}

func appendAction(ctx context.Context, q execQuerier, a vagas.Action) (vagas.ActionID, error) {
	res, err := q.ExecContext(ctx, `
		INSERT INTO acoes_vagas
			(gestor_id, tipo_acao, uf, municipio_id, estabelecimento_id, curso_id,
			 quantidade, motivo_descredenciamento, referencia, data_criacao)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		a.ManagerID,
		string(a.Type),
		a.Region.UF,
		a.Region.MunicipalityID,
		a.EstablishmentID,
		a.CourseID,
		a.Quantity,
		nullString(a.WithdrawalReason),
		nullString(a.ReferenceID),
		a.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to append action: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read action id: %w", err)
	}
	return vagas.ActionID(id), nil
}

// =============================================================================
// REFERENCE DATA (vagas.ReferenceStore interface)
// =============================================================================

// SaveState inserts or updates a state.
func (s *Store) SaveState(ctx context.Context, st vagas.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO estados (id, uf, nome) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET uf = excluded.uf, nome = excluded.nome`,
		st.ID, strings.ToUpper(strings.TrimSpace(st.UF)), st.Name)
	if err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

// SaveMunicipality inserts or updates a municipality.
func (s *Store) SaveMunicipality(ctx context.Context, m vagas.Municipality) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO municipios (id, nome, ibge, estado_id) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET nome = excluded.nome, ibge = excluded.ibge, estado_id = excluded.estado_id`,
		m.ID, m.Name, nullString(m.IBGE), m.StateID)
	if err != nil {
		return fmt.Errorf("failed to save municipality: %w", err)
	}
	return nil
}

// SaveEstablishment inserts or updates an establishment. The code is stored
// trimmed.
func (s *Store) SaveEstablishment(ctx context.Context, e vagas.Establishment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO estabelecimentos (id, cnes, nome, municipio_id) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET cnes = excluded.cnes, nome = excluded.nome, municipio_id = excluded.municipio_id`,
		e.ID, strings.TrimSpace(e.Code), e.Name, e.MunicipalityID)
	if err != nil {
		return fmt.Errorf("failed to save establishment: %w", err)
	}
	return nil
}

// SaveManager inserts or updates a manager.
func (s *Store) SaveManager(ctx context.Context, m vagas.Manager) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO gestores (id, nome, cpf, email) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET nome = excluded.nome, cpf = excluded.cpf, email = excluded.email`,
		m.ID, m.Name, nullString(m.CPF), nullString(m.Email))
	if err != nil {
		return fmt.Errorf("failed to save manager: %w", err)
	}
	return nil
}

// SaveCourse inserts a course. A zero ID lets the database assign one; an
// existing ID is overwritten.
func (s *Store) SaveCourse(ctx context.Context, c vagas.Course) (vagas.CourseID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return insertCourse(ctx, s.db, c)
}

// SetCourseCeiling updates the ceiling of an existing course.
func (s *Store) SetCourseCeiling(ctx context.Context, id vagas.CourseID, ceiling int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `UPDATE cursos SET vagas = ? WHERE id = ?`, ceiling, id)
	if err != nil {
		return fmt.Errorf("failed to update course ceiling: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update course ceiling: %w", err)
	}
	if n == 0 {
		return &vagas.NotFoundError{Resource: vagas.ResourceCourse, Ref: strconv.FormatInt(int64(id), 10)}
	}
	return nil
}

// =============================================================================
// ADMIN QUERIES
// =============================================================================

// ListActions returns the action log of an establishment, oldest first.
func (s *Store) ListActions(ctx context.Context, establishmentID vagas.EstablishmentID) ([]vagas.Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, gestor_id, tipo_acao, uf, municipio_id, estabelecimento_id, curso_id,
		       quantidade, COALESCE(motivo_descredenciamento, ''), COALESCE(referencia, ''), data_criacao
		FROM acoes_vagas
		WHERE estabelecimento_id = ?
		ORDER BY id
	`, establishmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list actions: %w", err)
	}
	defer rows.Close()

	var actions []vagas.Action
	for rows.Next() {
		var (
			a         vagas.Action
			tipo      string
			createdAt string
		)
		if err := rows.Scan(&a.ID, &a.ManagerID, &tipo, &a.Region.UF, &a.Region.MunicipalityID,
			&a.EstablishmentID, &a.CourseID, &a.Quantity, &a.WithdrawalReason, &a.ReferenceID, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan action: %w", err)
		}
		a.Type = vagas.ActionType(tipo)
		if a.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse data_criacao of action %d: %w", a.ID, err)
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
