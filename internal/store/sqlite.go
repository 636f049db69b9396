package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite stores answers in a single two-column table
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database and initializes the schema
func NewSQLite(dbPath string) (*SQLite, error) {
	if dbPath == "" {
		dbPath = "answers.db"
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// initSchema creates the answers table
func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS answers (
		question TEXT PRIMARY KEY,
		answer TEXT
	);
	`
	_, err := db.Exec(schema)
	return err
}

// Get retrieves an answer by question identifier
func (s *SQLite) Get(ctx context.Context, identifier string) (string, bool, error) {
	var answer sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT answer FROM answers WHERE question = ?`,
		identifier,
	).Scan(&answer)

	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return answer.String, true, nil
}

// Put inserts or replaces an answer; the write is committed immediately
func (s *SQLite) Put(ctx context.Context, identifier, answer string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO answers (question, answer) VALUES (?, ?)`,
		identifier, answer,
	)
	return err
}

// All returns every stored answer
func (s *SQLite) All(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT question, answer FROM answers`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make(map[string]string)
	for rows.Next() {
		var question string
		var answer sql.NullString
		if err := rows.Scan(&question, &answer); err != nil {
			return nil, err
		}
		records[question] = answer.String
	}
	return records, rows.Err()
}

// Flush checkpoints the write-ahead log if one is in use
func (s *SQLite) Flush(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE)`)
	return err
}

// Close closes the database connection
func (s *SQLite) Close() error {
	return s.db.Close()
}
