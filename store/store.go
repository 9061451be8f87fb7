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

// Package store provides the single persistence abstraction the core is
// built on: a generic, JSON-backed key/value Store[V] layered over a choice
// of Backend (in-memory, SQL, or Redis). Peerstates, Secure-Join tokens and
// the known-DKIM-domain set are all instances of Store with different V.
package store

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// Error codes
var (
	ErrNotFound     = errors.New("store: key not found")
	ErrInvalidSpec  = errors.New("store: invalid backend specification")
	ErrNotAvailable = errors.New("store: backend not available")
)

// Backend is the minimal string-keyed persistence contract a Store needs.
// Values are opaque, already-serialised strings; Store is responsible for
// the V <-> string marshalling.
type Backend interface {
	Put(key, value string) error
	Get(key string) (string, error)
	Delete(key string) error
	List() ([]string, error)
}

// Store layers typed JSON marshalling over a Backend.
type Store[V any] struct {
	backend Backend
}

// New wraps a Backend as a Store of V.
func New[V any](backend Backend) *Store[V] {
	return &Store[V]{backend: backend}
}

// Put serialises v as JSON and writes it under key.
func (s *Store[V]) Put(key string, v V) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.backend.Put(key, string(raw))
}

// Get reads and deserialises the value under key. ok is false, err is nil
// when the key is simply absent.
func (s *Store[V]) Get(key string) (v V, ok bool, err error) {
	raw, err := s.backend.Get(key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return v, false, nil
		}
		return v, false, err
	}
	if raw == "" {
		return v, false, nil
	}
	if err = json.Unmarshal([]byte(raw), &v); err != nil {
		return v, false, err
	}
	return v, true, nil
}

// Delete removes key from the store. Deleting an absent key is not an error.
func (s *Store[V]) Delete(key string) error {
	return s.backend.Delete(key)
}

// Keys lists every key currently stored.
func (s *Store[V]) Keys() ([]string, error) {
	return s.backend.List()
}

// OpenBackend opens a Backend from a "+"-separated specification string,
// mirroring the account-configuration DSN grammar:
//   - "memory"                         volatile in-process map
//   - "redis+addr+[passwd]+db"         Redis, db must parse as int
//   - "sqlite3+/path/to/file.db"       SQLite3 file
//   - "mysql+dsn"                      MySQL DSN as accepted by go-sql-driver
func OpenBackend(spec string) (Backend, error) {
	specs := strings.Split(spec, "+")
	if len(specs) < 1 {
		return nil, ErrInvalidSpec
	}
	switch specs[0] {
	case "memory":
		return NewMemoryBackend(), nil

	case "redis":
		if len(specs) < 4 {
			return nil, ErrInvalidSpec
		}
		db, err := strconv.Atoi(specs[3])
		if err != nil {
			return nil, ErrInvalidSpec
		}
		return NewRedisBackend(specs[1], specs[2], db)

	case "sqlite3", "mysql":
		if len(specs) < 2 {
			return nil, ErrInvalidSpec
		}
		return NewSQLBackend(specs[0], strings.Join(specs[1:], "+"))
	}
	return nil, ErrInvalidSpec
}
