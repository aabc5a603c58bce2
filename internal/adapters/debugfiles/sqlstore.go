package debugfiles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/mapcheck/pkg/logger"
	"github.com/okian/mapcheck/pkg/metrics"
)

// timeLayout is fixed width so text ordering equals time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const selectColumns = "id, project_owner, project, debug_id, code_id, object_name, symbol_type, cpu_name, size, sha1, date_created"

// SQLStore is a Store over database/sql.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
	log     logger.Logger
}

// Open connects to driver at dsn and creates the schema if needed.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*SQLStore, error) {
	d, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(d.DriverName(), d.DSN(dsn))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := NewSQLStore(db, d, opts...)
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	s.log.Info(ctx, "debug file store ready", logger.String("driver", d.DriverName()))
	return s, nil
}

// NewSQLStore wraps an open connection. The schema is not created.
func NewSQLStore(db *sql.DB, d Dialect, opts ...Option) *SQLStore {
	s := &SQLStore{
		db:      db,
		dialect: d,
		now:     time.Now,
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SQLStore) migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.Schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	return nil
}

// Create stores f, assigning an id and creation time when missing.
func (s *SQLStore) Create(ctx context.Context, f DebugFile) (DebugFile, error) {
	if f.ProjectOwner == "" || f.Project == "" || f.UUID == "" || f.SymbolType == "" {
		return DebugFile{}, fmt.Errorf("%w: project, uuid and symbolType are required", ErrInvalidFile)
	}
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.DateCreated.IsZero() {
		f.DateCreated = s.now()
	}
	f.DateCreated = f.DateCreated.UTC()
	f.UUID = strings.ToLower(f.UUID)
	f.CodeID = strings.ToLower(f.CodeID)

	ph := s.placeholders(11)
	stmt := "INSERT INTO debug_files (" + selectColumns + ") VALUES (" + strings.Join(ph, ", ") + ")"
	_, err := s.db.ExecContext(ctx, stmt,
		f.ID, f.ProjectOwner, f.Project, f.UUID, f.CodeID, f.ObjectName,
		f.SymbolType, f.CPUName, f.Size, f.SHA1, f.DateCreated.Format(timeLayout))
	if err != nil {
		return DebugFile{}, fmt.Errorf("inserting debug file: %w", err)
	}
	metrics.RecordDebugFileStored()
	return f, nil
}

// Find returns the project's files matching q, newest first.
func (s *SQLStore) Find(ctx context.Context, q Query) ([]DebugFile, error) {
	start := time.Now()
	defer func() { metrics.RecordStoreQueryLatency(float64(time.Since(start).Milliseconds())) }()

	args := []any{q.Owner, q.Project}
	where := []string{
		"project_owner = " + s.dialect.Placeholder(1),
		"project = " + s.dialect.Placeholder(2),
	}

	if q.Text != "" {
		text := strings.ToLower(q.Text)
		args = append(args, text, text, escapeLike(q.Text)+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(debug_id = %s OR code_id = %s OR object_name LIKE %s ESCAPE '\\')",
			s.dialect.Placeholder(n-2), s.dialect.Placeholder(n-1), s.dialect.Placeholder(n)))
	}

	if len(q.Formats) > 0 {
		ph := make([]string, 0, len(q.Formats))
		for _, f := range q.Formats {
			args = append(args, f)
			ph = append(ph, s.dialect.Placeholder(len(args)))
		}
		where = append(where, "symbol_type IN ("+strings.Join(ph, ", ")+")")
	}

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	stmt := fmt.Sprintf("SELECT %s FROM debug_files WHERE %s ORDER BY date_created DESC LIMIT %d",
		selectColumns, strings.Join(where, " AND "), limit)
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("querying debug files: %w", err)
	}
	defer rows.Close()

	files := []DebugFile{}
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading debug files: %w", err)
	}
	return files, nil
}

// Delete removes one file of the project.
func (s *SQLStore) Delete(ctx context.Context, ref ProjectRef, id string) error {
	stmt := fmt.Sprintf("DELETE FROM debug_files WHERE project_owner = %s AND project = %s AND id = %s",
		s.dialect.Placeholder(1), s.dialect.Placeholder(2), s.dialect.Placeholder(3))
	res, err := s.db.ExecContext(ctx, stmt, ref.Owner, ref.Project, id)
	if err != nil {
		return fmt.Errorf("deleting debug file: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting debug file: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	metrics.RecordDebugFileDeleted()
	return nil
}

// Count returns the number of stored files across projects.
func (s *SQLStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM debug_files").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting debug files: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) placeholders(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = s.dialect.Placeholder(i + 1)
	}
	return out
}

func scanFile(rows *sql.Rows) (DebugFile, error) {
	var (
		f       DebugFile
		created string
	)
	err := rows.Scan(&f.ID, &f.ProjectOwner, &f.Project, &f.UUID, &f.CodeID, &f.ObjectName,
		&f.SymbolType, &f.CPUName, &f.Size, &f.SHA1, &created)
	if err != nil {
		return DebugFile{}, fmt.Errorf("scanning debug file: %w", err)
	}
	t, err := time.Parse(timeLayout, created)
	if err != nil {
		return DebugFile{}, errors.Join(ErrInvalidFile, fmt.Errorf("date_created %q: %w", created, err))
	}
	f.DateCreated = t
	return f, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
