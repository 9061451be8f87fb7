// This file is part of chatcrypt, a cryptographic trust and messaging
// protocol core for an email-transported end-to-end-encrypted chat client.
// Copyright (C) 2026
//
// chatcrypt is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License,
// or (at your option) any later version.
//
// chatcrypt is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.
//
// SPDX-License-Identifier: AGPL3.0-or-later

package store

import (
	"database/sql"
	"os"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

// SQLBackend persists key/value pairs in a single "store" table, shared by
// the SQLite3 and MySQL drivers the rest of the account configuration also
// uses for the connection-pooled SQL store described for §5's shared
// resources.
type SQLBackend struct {
	db *sql.DB
}

// NewSQLBackend opens a SQL-backed Backend. driver is "sqlite3" or "mysql";
// dsn is the driver-specific data source name (a file path for sqlite3, a
// go-sql-driver/mysql DSN for mysql).
func NewSQLBackend(driver, dsn string) (*SQLBackend, error) {
	if driver == "sqlite3" {
		if fi, err := os.Stat(dsn); err != nil || fi.IsDir() {
			return nil, ErrNotAvailable
		}
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`create table if not exists store (
		key   varchar(512) primary key,
		value text not null
	)`); err != nil {
		return nil, err
	}
	return &SQLBackend{db: db}, nil
}

func (s *SQLBackend) Put(key, value string) error {
	_, err := s.db.Exec(
		`insert into store(key, value) values(?, ?)
		 on duplicate key update value = ?`, key, value, value)
	if err != nil {
		// sqlite3 doesn't understand "on duplicate key update"; fall back
		// to delete-then-insert, which is safe under our single-writer
		// per-key locking discipline.
		if _, delErr := s.db.Exec(`delete from store where key = ?`, key); delErr != nil {
			return delErr
		}
		_, err = s.db.Exec(`insert into store(key, value) values(?, ?)`, key, value)
	}
	return err
}

func (s *SQLBackend) Get(key string) (string, error) {
	var value string
	row := s.db.QueryRow(`select value from store where key = ?`, key)
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return "", ErrNotFound
		}
		return "", err
	}
	return value, nil
}

func (s *SQLBackend) Delete(key string) error {
	_, err := s.db.Exec(`delete from store where key = ?`, key)
	return err
}

func (s *SQLBackend) List() ([]string, error) {
	rows, err := s.db.Query(`select key from store`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}
