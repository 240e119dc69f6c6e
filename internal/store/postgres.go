package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/ramuks22/project-paystub-analyzer/internal/db"
	"github.com/ramuks22/project-paystub-analyzer/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_run":        `INSERT INTO runs (id, household, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
	"update_run_status": `UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
	"update_run_result": `UPDATE runs SET result = $1, status = $2, updated_at = $3 WHERE id = $4`,
	"get_run":           `SELECT id, household, status, result, error, created_at, updated_at FROM runs WHERE id = $1`,
	"get_package":       `SELECT package FROM filing_packages WHERE run_id = $1 AND filer_id = $2`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	// The database may still be starting when the process launches.
	if err := db.Retry(ctx, db.DefaultRetryConfig(), "ping", pool.Ping); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	household  JSONB NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	result     JSONB,
	error      TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS filing_packages (
	run_id        TEXT NOT NULL REFERENCES runs(id),
	filer_id      TEXT NOT NULL,
	tax_year      INTEGER NOT NULL,
	ready_to_file BOOLEAN NOT NULL,
	package       JSONB NOT NULL,
	saved_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (run_id, filer_id)
);

CREATE TABLE IF NOT EXISTS ledger_rows (
	run_id   TEXT NOT NULL,
	filer_id TEXT NOT NULL,
	pay_date DATE NOT NULL,
	row      JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_filing_packages_run_id ON filing_packages(run_id);
CREATE INDEX IF NOT EXISTS idx_filing_packages_tax_year ON filing_packages(tax_year);
CREATE INDEX IF NOT EXISTS idx_ledger_rows_run_filer ON ledger_rows(run_id, filer_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, cfg model.HouseholdConfig) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal household")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, household, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		id, cfgJSON, string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		Config:    cfg,
		Status:    model.RunStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) UpdateRunResult(ctx context.Context, runID string, result *model.HouseholdResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal result")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET result = $1, status = $2, updated_at = $3 WHERE id = $4`,
		resultJSON, string(model.RunStatusComplete), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run result %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, message string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, error = $2, updated_at = $3 WHERE id = $4`,
		string(model.RunStatusFailed), message, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, household, status, result, error, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	)

	var r model.Run
	var cfgJSON []byte
	var resultJSON []byte
	var errMsg *string

	err := row.Scan(&r.ID, &cfgJSON, &r.Status, &resultJSON, &errMsg, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan run")
	}

	if err := json.Unmarshal(cfgJSON, &r.Config); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal household")
	}
	if len(resultJSON) > 0 {
		r.Result = &model.HouseholdResult{}
		if err := json.Unmarshal(resultJSON, r.Result); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal result")
		}
	}
	if errMsg != nil {
		r.Error = *errMsg
	}
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, household, status, result, error, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = $1`
	}
	if filter.TaxYear != 0 {
		args = append(args, filter.TaxYear)
		query += ` AND (household->>'tax_year')::int = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT $` + strconv.Itoa(len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var cfgJSON, resultJSON []byte
		var errMsg *string
		if err := rows.Scan(&r.ID, &cfgJSON, &r.Status, &resultJSON, &errMsg, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		if err := json.Unmarshal(cfgJSON, &r.Config); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal household")
		}
		if len(resultJSON) > 0 {
			r.Result = &model.HouseholdResult{}
			if err := json.Unmarshal(resultJSON, r.Result); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal result")
			}
		}
		if errMsg != nil {
			r.Error = *errMsg
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

// SavePackages upserts the per-filer packages and reloads the denormalized
// ledger_rows table for the run via COPY.
func (s *PostgresStore) SavePackages(ctx context.Context, runID string, pkgs []*model.FilingPackage) error {
	now := time.Now().UTC()
	pkgRows := make([][]any, 0, len(pkgs))
	var ledgerRows [][]any

	for _, pkg := range pkgs {
		pkgJSON, err := json.Marshal(pkg)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal package %s", pkg.FilerID)
		}
		pkgRows = append(pkgRows, []any{runID, pkg.FilerID, pkg.TaxYear, pkg.ReadyToFile, pkgJSON, now})

		for _, row := range pkg.Ledger.Rows {
			rowJSON, err := json.Marshal(row)
			if err != nil {
				return eris.Wrapf(err, "postgres: marshal ledger row for %s", pkg.FilerID)
			}
			ledgerRows = append(ledgerRows, []any{runID, pkg.FilerID, row.Snapshot.PayDate, rowJSON})
		}
	}

	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "filing_packages",
		Columns:      []string{"run_id", "filer_id", "tax_year", "ready_to_file", "package", "saved_at"},
		ConflictKeys: []string{"run_id", "filer_id"},
	}, pkgRows)
	if err != nil {
		return err
	}

	if _, err := s.pool.Exec(ctx, `DELETE FROM ledger_rows WHERE run_id = $1`, runID); err != nil {
		return eris.Wrapf(err, "postgres: clear ledger rows %s", runID)
	}
	_, err = db.CopyFrom(ctx, s.pool, "ledger_rows",
		[]string{"run_id", "filer_id", "pay_date", "row"}, ledgerRows)
	return err
}

func (s *PostgresStore) GetPackage(ctx context.Context, runID, filerID string) (*model.FilingPackage, error) {
	var pkgJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT package FROM filing_packages WHERE run_id = $1 AND filer_id = $2`,
		runID, filerID,
	).Scan(&pkgJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get package %s/%s", runID, filerID)
	}

	var pkg model.FilingPackage
	if err := json.Unmarshal(pkgJSON, &pkg); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal package")
	}
	return &pkg, nil
}

func (s *PostgresStore) ListPackages(ctx context.Context, runID string) ([]*model.FilingPackage, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT package FROM filing_packages WHERE run_id = $1 ORDER BY filer_id`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list packages %s", runID)
	}
	defer rows.Close()

	var pkgs []*model.FilingPackage
	for rows.Next() {
		var pkgJSON []byte
		if err := rows.Scan(&pkgJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan package")
		}
		var pkg model.FilingPackage
		if err := json.Unmarshal(pkgJSON, &pkg); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal package")
		}
		pkgs = append(pkgs, &pkg)
	}
	return pkgs, eris.Wrap(rows.Err(), "postgres: list packages iterate")
}
