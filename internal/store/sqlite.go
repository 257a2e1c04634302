package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/upzone-cli/internal/parcel"
	"github.com/sells-group/upzone-cli/internal/pipeline"
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
	status     TEXT NOT NULL DEFAULT 'running',
	stats      TEXT,
	error      TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS parcel_results (
	run_id                TEXT NOT NULL REFERENCES runs(id),
	parcel_id             INTEGER NOT NULL,
	zoning                TEXT,
	tz                    TEXT,
	added_units_realistic REAL NOT NULL DEFAULT 0,
	props                 TEXT NOT NULL,
	PRIMARY KEY (run_id, parcel_id)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_parcel_results_run_id ON parcel_results(run_id);
CREATE INDEX IF NOT EXISTS idx_parcel_results_tz ON parcel_results(run_id, tz);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context) (*Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, status, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		id, string(RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &Run{
		ID:        id,
		Status:    RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, stats pipeline.Stats) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal stats")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, stats = ?, updated_at = ? WHERE id = ?`,
		string(RunStatusComplete), string(statsJSON), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, msg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(RunStatusFailed), msg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, stats, error, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) LatestRun(ctx context.Context) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, stats, error, created_at, updated_at FROM runs
		 WHERE status = ? ORDER BY created_at DESC LIMIT 1`,
		string(RunStatusComplete),
	)
	r, err := scanRun(row)
	if eris.Is(err, errRunNotFound) {
		return nil, nil
	}
	return r, err
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status, stats, error, created_at, updated_at FROM runs
		 ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// SaveParcels writes the full parcel dataset for a run in one transaction.
func (s *SQLiteStore) SaveParcels(ctx context.Context, runID string, parcels []*parcel.Parcel) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save parcels")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO parcel_results (run_id, parcel_id, zoning, tz, added_units_realistic, props)
		 VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare parcel insert")
	}
	defer stmt.Close()

	for _, p := range parcels {
		propsJSON, err := json.Marshal(p.Properties())
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal parcel %d", p.ID)
		}
		tz := ""
		if p.Tier != nil {
			tz = p.Tier.Code
		}
		if _, err := stmt.ExecContext(ctx,
			runID, p.ID, p.ZoningCode, tz, p.AddedUnitsRealistic, string(propsJSON),
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert parcel %d", p.ID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit save parcels")
}

func (s *SQLiteStore) ParcelRows(ctx context.Context, runID string, limit, offset int) ([]ParcelRow, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, parcel_id, zoning, tz, added_units_realistic, props
		 FROM parcel_results WHERE run_id = ?
		 ORDER BY parcel_id LIMIT ? OFFSET ?`,
		runID, limit, offset,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: parcel rows")
	}
	defer rows.Close()

	var out []ParcelRow
	for rows.Next() {
		var pr ParcelRow
		var zoning, tz sql.NullString
		var propsJSON string
		if err := rows.Scan(&pr.RunID, &pr.ParcelID, &zoning, &tz, &pr.AddedUnitsRealistic, &propsJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan parcel row")
		}
		pr.Zoning = zoning.String
		pr.TierCode = tz.String
		if err := json.Unmarshal([]byte(propsJSON), &pr.Props); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal parcel props")
		}
		out = append(out, pr)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: parcel rows iterate")
}

// helpers

var errRunNotFound = eris.New("run not found")

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

func scanRun(row scannable) (*Run, error) {
	var r Run
	var statsJSON, errMsg sql.NullString

	err := row.Scan(&r.ID, &r.Status, &statsJSON, &errMsg, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errRunNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if statsJSON.Valid {
		r.Stats = &pipeline.Stats{}
		if err := json.Unmarshal([]byte(statsJSON.String), r.Stats); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal stats")
		}
	}
	r.Error = errMsg.String
	return &r, nil
}
