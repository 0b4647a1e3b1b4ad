package dataset

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const ddl = `
CREATE TABLE meta (
    as_of TEXT NOT NULL
);
CREATE TABLE organizations (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    created_at TEXT NOT NULL,
    churned_at TEXT
);
CREATE TABLE users (
    id TEXT PRIMARY KEY,
    org_id TEXT NOT NULL,
    email TEXT NOT NULL,
    created_at TEXT NOT NULL
);
CREATE TABLE subscriptions (
    id TEXT PRIMARY KEY,
    org_id TEXT NOT NULL,
    plan TEXT NOT NULL,
    status TEXT NOT NULL,
    started_at TEXT NOT NULL,
    canceled_at TEXT
);
CREATE TABLE payments (
    id TEXT PRIMARY KEY,
    org_id TEXT NOT NULL,
    amount REAL NOT NULL,
    status TEXT NOT NULL,
    paid_at TEXT NOT NULL
);
CREATE TABLE api_usage (
    user_id TEXT NOT NULL,
    day TEXT NOT NULL,
    calls INTEGER NOT NULL
);
`

// OpenDB opens an in-process SQLite store. Use ":memory:" for the disposable
// per-evaluation databases validators create.
func OpenDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %s: %w", path, err)
	}
	if path == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

// LoadDB creates the raw tables and loads the dataset into them.
func LoadDB(db *sql.DB, ds *Dataset) error {
	if _, err := db.Exec(ddl); err != nil {
		return fmt.Errorf("creating tables: %w", err)
	}
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning load: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO meta (as_of) VALUES (?)`, ds.AsOf); err != nil {
		return fmt.Errorf("loading meta: %w", err)
	}
	for _, o := range ds.Organizations {
		if _, err := tx.Exec(`INSERT INTO organizations (id, name, created_at, churned_at) VALUES (?, ?, ?, ?)`,
			o.ID, o.Name, o.CreatedAt, nullable(o.ChurnedAt)); err != nil {
			return fmt.Errorf("loading organization %s: %w", o.ID, err)
		}
	}
	for _, u := range ds.Users {
		if _, err := tx.Exec(`INSERT INTO users (id, org_id, email, created_at) VALUES (?, ?, ?, ?)`,
			u.ID, u.OrgID, u.Email, u.CreatedAt); err != nil {
			return fmt.Errorf("loading user %s: %w", u.ID, err)
		}
	}
	for _, s := range ds.Subscriptions {
		if _, err := tx.Exec(`INSERT INTO subscriptions (id, org_id, plan, status, started_at, canceled_at) VALUES (?, ?, ?, ?, ?, ?)`,
			s.ID, s.OrgID, s.Plan, s.Status, s.StartedAt, nullable(s.CanceledAt)); err != nil {
			return fmt.Errorf("loading subscription %s: %w", s.ID, err)
		}
	}
	for _, p := range ds.Payments {
		if _, err := tx.Exec(`INSERT INTO payments (id, org_id, amount, status, paid_at) VALUES (?, ?, ?, ?, ?)`,
			p.ID, p.OrgID, p.Amount, p.Status, p.PaidAt); err != nil {
			return fmt.Errorf("loading payment %s: %w", p.ID, err)
		}
	}
	for _, u := range ds.APIUsage {
		if _, err := tx.Exec(`INSERT INTO api_usage (user_id, day, calls) VALUES (?, ?, ?)`,
			u.UserID, u.Day, u.Calls); err != nil {
			return fmt.Errorf("loading api_usage for %s: %w", u.UserID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing load: %w", err)
	}
	return nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
