package main

import "database/sql"

// OpenStore opens the workspace SQLite store. Tables and columns are
// described by the descriptors in schema.go.
func OpenStore(path string) (*sql.DB, error) {
	return sql.Open("sqlite", path)
}

// Scalar executes a built query and scans its single value.
func Scalar(db *sql.DB, q Query) (float64, error) {
	var v float64
	if err := db.QueryRow(q.SQL()).Scan(&v); err != nil {
		return 0, err
	}
	return v, nil
}
