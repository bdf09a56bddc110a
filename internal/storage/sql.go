package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"qad/internal/domain"
)

// dialect holds what differs between the SQL backends.
type dialect struct {
	name        string
	driver      string
	schema      []string
	isDuplicate func(error) bool
}

// SQLStore implements Store on top of database/sql.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

func openSQL(ctx context.Context, d dialect, dsn string) (*SQLStore, error) {
	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, unavailable("open "+d.name, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, unavailable("ping "+d.name, err)
	}
	s := &SQLStore{db: db, dialect: d}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return unavailable("migrate "+s.dialect.name, err)
		}
	}
	return nil
}

// Dialect returns the backend name ("sqlite" or "mysql").
func (s *SQLStore) Dialect() string { return s.dialect.name }

func (s *SQLStore) Close() error { return s.db.Close() }

func (s *SQLStore) insert(ctx context.Context, op string, query string, args ...any) error {
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if s.dialect.isDuplicate(err) {
			return fmt.Errorf("%s: %w", op, ErrDuplicateID)
		}
		return unavailable(op, err)
	}
	return nil
}

// insertRecord claims id in record_ids and runs query in the same transaction,
// so test cases and defects can never share an id.
func (s *SQLStore) insertRecord(ctx context.Context, op string, id int, query string, args ...any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable(op, err)
	}
	defer tx.Rollback()

	fail := func(err error) error {
		if s.dialect.isDuplicate(err) {
			return fmt.Errorf("%s: %w", op, ErrDuplicateID)
		}
		return unavailable(op, err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO record_ids (id) VALUES (?)", id); err != nil {
		return fail(err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fail(err)
	}
	if err := tx.Commit(); err != nil {
		return unavailable(op, err)
	}
	return nil
}

func (s *SQLStore) queryStrings(ctx context.Context, op, query string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, unavailable(op, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			return nil, unavailable(op, err)
		}
		if v.Valid {
			out = append(out, v.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(op, err)
	}
	return out, nil
}

func (s *SQLStore) queryInt(ctx context.Context, op, query string) (int, error) {
	var v sql.NullInt64
	if err := s.db.QueryRowContext(ctx, query).Scan(&v); err != nil {
		return 0, unavailable(op, err)
	}
	return int(v.Int64), nil
}

func (s *SQLStore) LoadAllTestCaseNames(ctx context.Context) ([]string, error) {
	return s.queryStrings(ctx, "load test case names", "SELECT name FROM test_cases ORDER BY id")
}

func (s *SQLStore) LoadAllHistoryEntries(ctx context.Context) ([]string, error) {
	return s.queryStrings(ctx, "load history", "SELECT entry FROM history ORDER BY id")
}

func (s *SQLStore) LoadPendingRuns(ctx context.Context) ([]domain.ScheduledRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.run_id, r.test_case_id, r.priority, r.submitted_at
		FROM test_runs r
		LEFT JOIN run_results res ON res.run_id = r.run_id
		LEFT JOIN consumed_runs c ON c.run_id = r.run_id
		WHERE res.run_id IS NULL AND c.run_id IS NULL
		ORDER BY r.run_id`)
	if err != nil {
		return nil, unavailable("load pending runs", err)
	}
	defer rows.Close()

	var runs []domain.ScheduledRun
	for rows.Next() {
		var run domain.ScheduledRun
		var submitted string
		if err := rows.Scan(&run.RunID, &run.TestCaseID, &run.Priority, &submitted); err != nil {
			return nil, unavailable("scan pending run", err)
		}
		if run.SubmittedAt, err = parseTime(submitted); err != nil {
			return nil, fmt.Errorf("run %d: %w", run.RunID, err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("load pending runs", err)
	}
	return runs, nil
}

func (s *SQLStore) MaxID(ctx context.Context) (int, error) {
	return s.queryInt(ctx, "max id", "SELECT MAX(id) FROM record_ids")
}

func (s *SQLStore) MaxRunID(ctx context.Context) (int, error) {
	return s.queryInt(ctx, "max run id", `
		SELECT MAX(run_id) FROM (
			SELECT run_id FROM test_runs
			UNION ALL
			SELECT run_id FROM run_results
		) runs`)
}

func (s *SQLStore) PersistRun(ctx context.Context, run domain.ScheduledRun) error {
	return s.insert(ctx, fmt.Sprintf("persist run %d", run.RunID),
		"INSERT INTO test_runs (run_id, test_case_id, priority, submitted_at) VALUES (?, ?, ?, ?)",
		run.RunID, run.TestCaseID, run.Priority, formatTime(run.SubmittedAt))
}

func (s *SQLStore) MarkRunConsumed(ctx context.Context, runID int, at time.Time) error {
	err := s.insert(ctx, fmt.Sprintf("mark run %d consumed", runID),
		"INSERT INTO consumed_runs (run_id, consumed_at) VALUES (?, ?)", runID, formatTime(at))
	if errors.Is(err, ErrDuplicateID) {
		return nil
	}
	return err
}

func (s *SQLStore) PersistResult(ctx context.Context, rec domain.RunRecord) error {
	return s.insert(ctx, fmt.Sprintf("persist result of run %d", rec.RunID),
		`INSERT INTO run_results (run_id, batch_id, test_case_id, priority, outcome, passed, notes, executed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.BatchID, rec.Result.TestCaseID, rec.Priority, string(rec.Outcome),
		rec.Result.Passed, rec.Result.Notes, formatTime(rec.ExecutedAt))
}

func (s *SQLStore) PersistHistoryEntry(ctx context.Context, text string, ts time.Time) error {
	return s.insert(ctx, "persist history entry",
		"INSERT INTO history (entry, created_at) VALUES (?, ?)", text, formatTime(ts))
}

func (s *SQLStore) PersistDefect(ctx context.Context, d domain.Defect) error {
	return s.insertRecord(ctx, fmt.Sprintf("persist defect %d", d.ID), d.ID,
		"INSERT INTO defects (id, test_case_id, title, severity, status) VALUES (?, ?, ?, ?, ?)",
		d.ID, d.TestCaseID, d.Title, string(d.Severity), string(d.Status))
}

func (s *SQLStore) CreateTestCase(ctx context.Context, tc domain.TestCase) error {
	return s.insertRecord(ctx, fmt.Sprintf("create test case %d", tc.ID), tc.ID,
		"INSERT INTO test_cases (id, name, description, priority, automated) VALUES (?, ?, ?, ?, ?)",
		tc.ID, tc.Name, tc.Description, string(tc.Priority), tc.Automated)
}

func (s *SQLStore) GetTestCase(ctx context.Context, id int) (domain.TestCase, error) {
	var tc domain.TestCase
	var priority string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, description, priority, automated FROM test_cases WHERE id = ?", id).
		Scan(&tc.ID, &tc.Name, &tc.Description, &priority, &tc.Automated)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.TestCase{}, fmt.Errorf("test case %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return domain.TestCase{}, unavailable(fmt.Sprintf("get test case %d", id), err)
	}
	tc.Priority = domain.PriorityClass(priority)
	return tc, nil
}

func (s *SQLStore) ListTestCases(ctx context.Context) ([]domain.TestCase, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, description, priority, automated FROM test_cases ORDER BY id")
	if err != nil {
		return nil, unavailable("list test cases", err)
	}
	defer rows.Close()

	var out []domain.TestCase
	for rows.Next() {
		var tc domain.TestCase
		var priority string
		if err := rows.Scan(&tc.ID, &tc.Name, &tc.Description, &priority, &tc.Automated); err != nil {
			return nil, unavailable("scan test case", err)
		}
		tc.Priority = domain.PriorityClass(priority)
		out = append(out, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list test cases", err)
	}
	return out, nil
}

func (s *SQLStore) DeleteTestCase(ctx context.Context, id int) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM test_cases WHERE id = ?", id)
	if err != nil {
		return unavailable(fmt.Sprintf("delete test case %d", id), err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("test case %d: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLStore) ListDefects(ctx context.Context) ([]domain.Defect, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, test_case_id, title, severity, status FROM defects ORDER BY id")
	if err != nil {
		return nil, unavailable("list defects", err)
	}
	defer rows.Close()

	var out []domain.Defect
	for rows.Next() {
		var d domain.Defect
		var severity, status string
		if err := rows.Scan(&d.ID, &d.TestCaseID, &d.Title, &severity, &status); err != nil {
			return nil, unavailable("scan defect", err)
		}
		d.Severity = domain.Severity(severity)
		d.Status = domain.DefectStatus(status)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list defects", err)
	}
	return out, nil
}

func (s *SQLStore) UpdateDefectStatus(ctx context.Context, id int, status domain.DefectStatus) error {
	res, err := s.db.ExecContext(ctx, "UPDATE defects SET status = ? WHERE id = ?", string(status), id)
	if err != nil {
		return unavailable(fmt.Sprintf("update defect %d", id), err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// MySQL reports 0 affected rows when the value is unchanged.
		var exists int
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM defects WHERE id = ?", id).Scan(&exists); err != nil {
			return unavailable(fmt.Sprintf("update defect %d", id), err)
		}
		if exists == 0 {
			return fmt.Errorf("defect %d: %w", id, ErrNotFound)
		}
	}
	return nil
}

func (s *SQLStore) ListResults(ctx context.Context) ([]domain.RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, batch_id, test_case_id, priority, outcome, passed, notes, executed_at
		FROM run_results ORDER BY executed_at, run_id`)
	if err != nil {
		return nil, unavailable("list results", err)
	}
	defer rows.Close()

	var out []domain.RunRecord
	for rows.Next() {
		var rec domain.RunRecord
		var outcome, executed string
		if err := rows.Scan(&rec.RunID, &rec.BatchID, &rec.Result.TestCaseID, &rec.Priority,
			&outcome, &rec.Result.Passed, &rec.Result.Notes, &executed); err != nil {
			return nil, unavailable("scan result", err)
		}
		rec.Outcome = domain.Outcome(outcome)
		if rec.ExecutedAt, err = parseTime(executed); err != nil {
			return nil, fmt.Errorf("result of run %d: %w", rec.RunID, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list results", err)
	}
	return out, nil
}

// Timestamps are stored as fixed-width UTC text so they sort lexically in both dialects.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
