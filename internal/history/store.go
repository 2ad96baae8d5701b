// Package history persists committed observations append-only and serves
// the query side: per-good history, daily snapshots, stats, all-time
// highs, and capture sessions.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"marketwatch/internal/dedup"
)

// Store wraps SQLite access for history records and sessions.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS history_records (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            good_name TEXT NOT NULL,
            region_id TEXT NOT NULL,
            local_price INTEGER NOT NULL,
            friend_price INTEGER NOT NULL,
            profit INTEGER NOT NULL,
            quantity INTEGER NOT NULL DEFAULT 0,
            day TEXT NOT NULL,
            committed_at TIMESTAMP NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_history_good ON history_records(good_name);`,
		`CREATE INDEX IF NOT EXISTS idx_history_region_day ON history_records(region_id, day);`,
		`CREATE TABLE IF NOT EXISTS capture_sessions (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            started_at TIMESTAMP NOT NULL,
            ended_at TIMESTAMP,
            observations INTEGER NOT NULL DEFAULT 0
        );`,
		`CREATE TABLE IF NOT EXISTS goods (
            good_name TEXT PRIMARY KEY,
            region_id TEXT NOT NULL,
            first_seen TIMESTAMP NOT NULL,
            best_profit INTEGER NOT NULL,
            best_profit_at TIMESTAMP NOT NULL
        );`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Record is one persisted observation. Rows are never updated or deleted;
// a price change is a new row.
type Record struct {
	ID          int64     `json:"id"`
	Good        string    `json:"good_name"`
	Region      string    `json:"region_id"`
	LocalPrice  int64     `json:"local_price"`
	FriendPrice int64     `json:"friend_price"`
	Profit      int64     `json:"profit"`
	Quantity    int       `json:"quantity"`
	Day         string    `json:"day"`
	CommittedAt time.Time `json:"committed_at"`
}

// Session is one start/stop span of the capture pipeline.
type Session struct {
	ID           int64      `json:"id"`
	StartedAt    time.Time  `json:"started_at"`
	EndedAt      *time.Time `json:"ended_at"`
	Observations int        `json:"observations"`
}

// High is a good's best profit ever seen.
type High struct {
	Good      string    `json:"good_name"`
	Region    string    `json:"region_id"`
	FirstSeen time.Time `json:"first_seen"`
	Profit    int64     `json:"best_profit"`
	At        time.Time `json:"best_profit_at"`
}

// Stats summarizes a good's persisted profit history.
type Stats struct {
	Good      string    `json:"good_name"`
	Count     int       `json:"count"`
	MinProfit int64     `json:"min_profit"`
	MaxProfit int64     `json:"max_profit"`
	AvgProfit float64   `json:"avg_profit"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

func dayOf(t time.Time) string { return t.UTC().Format("2006-01-02") }

// Append writes one observation and advances the good's all-time-high
// projection when the profit beats it. Record and projection commit in one
// transaction: a failed append leaves no row behind, so a retry cannot
// duplicate the record.
func (s *Store) Append(ctx context.Context, obs dedup.Observation) error {
	profit := obs.Profit()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	_, err = tx.ExecContext(ctx, `INSERT INTO history_records(good_name, region_id, local_price, friend_price, profit, quantity, day, committed_at)
        VALUES(?,?,?,?,?,?,?,?)`,
		obs.Good, obs.Region, obs.LocalPrice, obs.FriendPrice, profit, obs.Quantity, dayOf(obs.CommittedAt), obs.CommittedAt)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO goods(good_name, region_id, first_seen, best_profit, best_profit_at) VALUES(?,?,?,?,?)
        ON CONFLICT(good_name) DO UPDATE SET best_profit=excluded.best_profit, best_profit_at=excluded.best_profit_at, region_id=excluded.region_id
        WHERE excluded.best_profit > goods.best_profit`,
		obs.Good, obs.Region, obs.CommittedAt, profit, obs.CommittedAt)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// HistoryByGood returns a good's records, newest first.
func (s *Store) HistoryByGood(ctx context.Context, good string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, good_name, region_id, local_price, friend_price, profit, quantity, day, committed_at
        FROM history_records WHERE good_name=? ORDER BY committed_at DESC, id DESC LIMIT ?`, good, limit)
	if err != nil {
		return nil, err
	}
	return scanRecords(rows)
}

// DailySnapshot returns the latest record per good and region for one day.
func (s *Store) DailySnapshot(ctx context.Context, day string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT h.id, h.good_name, h.region_id, h.local_price, h.friend_price, h.profit, h.quantity, h.day, h.committed_at
        FROM history_records h
        JOIN (SELECT good_name, region_id, MAX(id) AS max_id FROM history_records WHERE day=? GROUP BY good_name, region_id) t
        ON h.id = t.max_id
        ORDER BY h.profit DESC, h.good_name ASC`, day)
	if err != nil {
		return nil, err
	}
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Good, &r.Region, &r.LocalPrice, &r.FriendPrice, &r.Profit, &r.Quantity, &r.Day, &r.CommittedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GoodStats aggregates a good's profit history. A good with no records
// returns sql.ErrNoRows.
func (s *Store) GoodStats(ctx context.Context, good string) (Stats, error) {
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*), MIN(profit), MAX(profit), AVG(profit), MIN(committed_at), MAX(committed_at)
        FROM history_records WHERE good_name=?`, good)
	st := Stats{Good: good}
	var minP, maxP sql.NullInt64
	var avg sql.NullFloat64
	var first, last sql.NullTime
	if err := row.Scan(&st.Count, &minP, &maxP, &avg, &first, &last); err != nil {
		return Stats{}, err
	}
	if st.Count == 0 {
		return Stats{}, sql.ErrNoRows
	}
	st.MinProfit = minP.Int64
	st.MaxProfit = maxP.Int64
	st.AvgProfit = avg.Float64
	st.FirstSeen = first.Time
	st.LastSeen = last.Time
	return st, nil
}

// AllTimeHighs lists every good's best profit, best first.
func (s *Store) AllTimeHighs(ctx context.Context) ([]High, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT good_name, region_id, first_seen, best_profit, best_profit_at FROM goods ORDER BY best_profit DESC, good_name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []High
	for rows.Next() {
		var h High
		if err := rows.Scan(&h.Good, &h.Region, &h.FirstSeen, &h.Profit, &h.At); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// StartSession records a new capture session and returns its id.
func (s *Store) StartSession(ctx context.Context, ts time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO capture_sessions(started_at) VALUES(?)`, ts)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// EndSession closes a session with its final observation count.
func (s *Store) EndSession(ctx context.Context, id int64, ts time.Time, observations int) error {
	_, err := s.db.ExecContext(ctx, `UPDATE capture_sessions SET ended_at=?, observations=? WHERE id=?`, ts, observations, id)
	return err
}

// Sessions lists recent capture sessions, newest first.
func (s *Store) Sessions(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, started_at, ended_at, observations FROM capture_sessions ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Session
	for rows.Next() {
		var sess Session
		var ended sql.NullTime
		if err := rows.Scan(&sess.ID, &sess.StartedAt, &ended, &sess.Observations); err != nil {
			return nil, err
		}
		if ended.Valid {
			sess.EndedAt = &ended.Time
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// Health returns err if the DB is not reachable.
func (s *Store) Health(ctx context.Context) error {
	row := s.db.QueryRowContext(ctx, `SELECT 1`)
	var v int
	if err := row.Scan(&v); err != nil {
		return fmt.Errorf("db health: %w", err)
	}
	return nil
}
