// Package models owns the SQLite persistence for the board: the schema, the
// DB wrapper, and the server-side Store implementation.
package models

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

type DB struct {
	*sql.DB
}

func InitDB(dataSourceName string) (*DB, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, err
	}

	if err = db.Ping(); err != nil {
		return nil, err
	}

	return &DB{db}, nil
}

func (db *DB) CreateTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS questions (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			details TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT 'general',
			created_at DATETIME NOT NULL,
			likes INTEGER NOT NULL DEFAULT 0,
			dislikes INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS answers (
			id TEXT PRIMARY KEY,
			question_id TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			likes INTEGER NOT NULL DEFAULT 0,
			dislikes INTEGER NOT NULL DEFAULT 0,
			FOREIGN KEY (question_id) REFERENCES questions(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_answers_question_id ON answers(question_id)`,
		`CREATE TABLE IF NOT EXISTS votes (
			voter_id TEXT NOT NULL,
			subject_type TEXT NOT NULL,
			subject_id TEXT NOT NULL,
			direction TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			PRIMARY KEY (voter_id, subject_type, subject_id)
		)`,
		`CREATE TABLE IF NOT EXISTS reports (
			id TEXT PRIMARY KEY,
			item_type TEXT NOT NULL,
			item_id TEXT NOT NULL,
			reason TEXT NOT NULL,
			details TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending'
		)`,
	}

	for _, query := range queries {
		_, err := db.Exec(query)
		if err != nil {
			return err
		}
	}

	return nil
}
