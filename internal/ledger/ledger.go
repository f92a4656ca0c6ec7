// Package ledger keeps a durable record of every completed marketplace
// operation.
package ledger

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/valmere/tradesman/internal/logging"
	"github.com/valmere/tradesman/internal/market"
)

const schema = `
CREATE TABLE IF NOT EXISTS operations (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	op         TEXT NOT NULL,
	item_id    TEXT NOT NULL,
	quantity   INTEGER NOT NULL,
	unit_price REAL NOT NULL,
	side       TEXT NOT NULL,
	status     TEXT NOT NULL,
	error      TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_operations_created_at ON operations(created_at);
`

// Entry is one recorded operation.
type Entry struct {
	ID        int64
	Op        string
	ItemID    string
	Quantity  int
	UnitPrice float64
	Side      market.Side
	Status    string
	Error     string
	CreatedAt time.Time
}

type Ledger struct {
	db  *sql.DB
	log *logging.Logger
	now func() time.Time
}

func Open(path string, log *logging.Logger) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("ensure ledger dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init ledger schema: %w", err)
	}
	return &Ledger{db: db, log: log, now: time.Now}, nil
}

// RecordOp appends an operation outcome. It is a one-way hook; failures are
// logged and swallowed so a full disk never stalls the scheduler loop.
func (l *Ledger) RecordOp(op, item string, qty int, price float64, side market.Side, failure error) {
	status, errText := "ok", ""
	if failure != nil {
		status, errText = "failed", failure.Error()
	}
	_, err := l.db.Exec(
		`INSERT INTO operations (op, item_id, quantity, unit_price, side, status, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		op, item, qty, price, string(side), status, errText, l.now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		l.log.Errorf("ledger insert failed op=%s item=%s: %v", op, item, err)
	}
}

// Recent returns the n most recent entries, newest first.
func (l *Ledger) Recent(n int) ([]Entry, error) {
	rows, err := l.db.Query(
		`SELECT id, op, item_id, quantity, unit_price, side, status, error, created_at
		 FROM operations ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var side, created string
		if err := rows.Scan(&e.ID, &e.Op, &e.ItemID, &e.Quantity, &e.UnitPrice, &side, &e.Status, &e.Error, &created); err != nil {
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}
		e.Side = market.Side(side)
		e.CreatedAt, _ = time.Parse(time.RFC3339, created)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (l *Ledger) Close() error {
	return l.db.Close()
}
