package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/ramuks22/project-paystub-analyzer/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	household  TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	result     TEXT,
	error      TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS filing_packages (
	run_id        TEXT NOT NULL REFERENCES runs(id),
	filer_id      TEXT NOT NULL,
	tax_year      INTEGER NOT NULL,
	ready_to_file INTEGER NOT NULL,
	package       TEXT NOT NULL,
	saved_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (run_id, filer_id)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_filing_packages_run_id ON filing_packages(run_id);
CREATE INDEX IF NOT EXISTS idx_filing_packages_tax_year ON filing_packages(tax_year);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, cfg model.HouseholdConfig) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal household")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, household, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, string(cfgJSON), string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		Config:    cfg,
		Status:    model.RunStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) UpdateRunResult(ctx context.Context, runID string, result *model.HouseholdResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET result = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(resultJSON), string(model.RunStatusComplete), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run result %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, message string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(model.RunStatusFailed), message, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, household, status, result, error, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, household, status, result, error, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.TaxYear != 0 {
		query += ` AND json_extract(household, '$.tax_year') = ?`
		args = append(args, filter.TaxYear)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) SavePackages(ctx context.Context, runID string, pkgs []*model.FilingPackage) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save packages")
	}
	defer tx.Rollback()

	for _, pkg := range pkgs {
		pkgJSON, err := json.Marshal(pkg)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal package %s", pkg.FilerID)
		}
		ready := 0
		if pkg.ReadyToFile {
			ready = 1
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO filing_packages (run_id, filer_id, tax_year, ready_to_file, package, saved_at)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT (run_id, filer_id) DO UPDATE SET
			   tax_year = excluded.tax_year,
			   ready_to_file = excluded.ready_to_file,
			   package = excluded.package,
			   saved_at = excluded.saved_at`,
			runID, pkg.FilerID, pkg.TaxYear, ready, string(pkgJSON), time.Now().UTC(),
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: save package %s", pkg.FilerID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit save packages")
}

func (s *SQLiteStore) GetPackage(ctx context.Context, runID, filerID string) (*model.FilingPackage, error) {
	var pkgJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT package FROM filing_packages WHERE run_id = ? AND filer_id = ?`,
		runID, filerID,
	).Scan(&pkgJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get package %s/%s", runID, filerID)
	}

	var pkg model.FilingPackage
	if err := json.Unmarshal([]byte(pkgJSON), &pkg); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal package")
	}
	return &pkg, nil
}

func (s *SQLiteStore) ListPackages(ctx context.Context, runID string) ([]*model.FilingPackage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT package FROM filing_packages WHERE run_id = ? ORDER BY filer_id`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list packages %s", runID)
	}
	defer rows.Close()

	var pkgs []*model.FilingPackage
	for rows.Next() {
		var pkgJSON string
		if err := rows.Scan(&pkgJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan package")
		}
		var pkg model.FilingPackage
		if err := json.Unmarshal([]byte(pkgJSON), &pkg); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal package")
		}
		pkgs = append(pkgs, &pkg)
	}
	return pkgs, eris.Wrap(rows.Err(), "sqlite: list packages iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var cfgJSON string
	var resultJSON, errMsg sql.NullString

	err := row.Scan(&r.ID, &cfgJSON, &r.Status, &resultJSON, &errMsg, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if err := json.Unmarshal([]byte(cfgJSON), &r.Config); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal household")
	}
	if resultJSON.Valid {
		r.Result = &model.HouseholdResult{}
		if err := json.Unmarshal([]byte(resultJSON.String), r.Result); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal result")
		}
	}
	r.Error = errMsg.String
	return &r, nil
}
