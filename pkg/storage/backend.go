package storage

import (
	"database/sql"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ansel1/merry"
	_ "modernc.org/sqlite"

	"bf16lut/pkg/common"
	"bf16lut/pkg/core/generator"
	"bf16lut/pkg/model"
)

// Archive stores generated tables keyed by the parameters that produced them.
type Archive interface {
	Save(key string, t *generator.Table) (int64, error)
	Load(key string) (*generator.Table, bool, error)
	Get(id int64) (*generator.Table, error)
	List() ([]RunInfo, error)
	Truncate() error
	Close()
}

// RunInfo is the queryable summary of an archived table.
type RunInfo struct {
	ID          int64     `json:"id"`
	Key         string    `json:"key"`
	Function    string    `json:"function"`
	Policy      string    `json:"policy"`
	Start       float64   `json:"start"`
	End         float64   `json:"end"`
	Bins        int       `json:"bins"`
	WorstError  float64   `json:"worst_ulp"`
	MeanError   float64   `json:"avg_ulp"`
	PayloadSize int       `json:"payload_size"`
	CreatedAt   time.Time `json:"created_at"`
}

// RunKey identifies a run by every input that affects its coefficients.
// Floats are keyed by bit pattern so equal keys mean identical inputs.
func RunKey(function string, policy string, iv common.Interval, bins int, opts model.FitOptions) string {
	return fmt.Sprintf("%s/%s/%016x:%016x/%d/nm%d:%d:%x:%x/pw%d:%d:%x:%x",
		function, policy,
		math.Float64bits(iv.Start), math.Float64bits(iv.End), bins,
		opts.Simplex.MaxIter, opts.Simplex.MaxEval, math.Float64bits(opts.Simplex.XTol), math.Float64bits(opts.Simplex.FTol),
		opts.Coordinate.MaxIter, opts.Coordinate.MaxEval, math.Float64bits(opts.Coordinate.XTol), math.Float64bits(opts.Coordinate.FTol))
}

type SQLiteArchive struct {
	db *sql.DB
	mu sync.Mutex
}

func NewSQLiteArchive(path string) (*SQLiteArchive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, merry.Prepend(err, "open archive")
	}

	query := `
	CREATE TABLE IF NOT EXISTS runs (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		key        TEXT NOT NULL UNIQUE,
		function   TEXT NOT NULL,
		policy     TEXT NOT NULL,
		start      REAL NOT NULL,
		end_       REAL NOT NULL,
		bins       INTEGER NOT NULL,
		worst_ulp  REAL NOT NULL,
		avg_ulp    REAL NOT NULL,
		created_at INTEGER NOT NULL,
		payload    BLOB NOT NULL
	);`
	if _, err := db.Exec(query); err != nil {
		db.Close()
		return nil, merry.Prepend(err, "init archive schema")
	}

	// WAL only applies to file databases; an in-memory archive ignores it.
	db.Exec(`PRAGMA journal_mode = WAL;`)
	db.Exec(`PRAGMA synchronous = NORMAL;`)

	return &SQLiteArchive{db: db}, nil
}

// Save stores t under key, replacing an earlier run with the same key.
func (s *SQLiteArchive) Save(key string, t *generator.Table) (int64, error) {
	payload, err := EncodePayload(t)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, merry.Wrap(err)
	}
	if _, err := tx.Exec("DELETE FROM runs WHERE key = ?", key); err != nil {
		tx.Rollback()
		return 0, merry.Wrap(err)
	}
	res, err := tx.Exec(`INSERT INTO runs
		(key, function, policy, start, end_, bins, worst_ulp, avg_ulp, created_at, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		key, t.Function, t.Policy.String(), t.Interval.Start, t.Interval.End, len(t.Entries),
		t.WorstError(), t.MeanError(), time.Now().UnixNano(), payload)
	if err != nil {
		tx.Rollback()
		return 0, merry.Wrap(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		tx.Rollback()
		return 0, merry.Wrap(err)
	}
	return id, merry.Wrap(tx.Commit())
}

// Load returns the table archived under key. ok is false when none exists.
func (s *SQLiteArchive) Load(key string) (*generator.Table, bool, error) {
	var payload []byte
	err := s.db.QueryRow("SELECT payload FROM runs WHERE key = ?", key).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, merry.Wrap(err)
	}
	t, err := DecodePayload(payload)
	if err != nil {
		return nil, false, err
	}
	return t, true, nil
}

func (s *SQLiteArchive) Get(id int64) (*generator.Table, error) {
	var payload []byte
	err := s.db.QueryRow("SELECT payload FROM runs WHERE id = ?", id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, common.ErrNoTable.WithValue("id", id)
	}
	if err != nil {
		return nil, merry.Wrap(err)
	}
	return DecodePayload(payload)
}

// List returns every archived run, newest first.
func (s *SQLiteArchive) List() ([]RunInfo, error) {
	rows, err := s.db.Query(`SELECT id, key, function, policy, start, end_, bins,
		worst_ulp, avg_ulp, created_at, length(payload)
		FROM runs ORDER BY id DESC`)
	if err != nil {
		return nil, merry.Wrap(err)
	}
	defer rows.Close()

	var runs []RunInfo
	for rows.Next() {
		var r RunInfo
		var created int64
		if err := rows.Scan(&r.ID, &r.Key, &r.Function, &r.Policy, &r.Start, &r.End, &r.Bins,
			&r.WorstError, &r.MeanError, &created, &r.PayloadSize); err != nil {
			return nil, merry.Wrap(err)
		}
		r.CreatedAt = time.Unix(0, created)
		runs = append(runs, r)
	}
	return runs, merry.Wrap(rows.Err())
}

func (s *SQLiteArchive) Truncate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec("DELETE FROM runs")
	return merry.Wrap(err)
}

func (s *SQLiteArchive) Close() {
	s.db.Close()
}
