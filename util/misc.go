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

package util

import (
	"sync"
)

//----------------------------------------------------------------------
// Thread-safe map implementation
//----------------------------------------------------------------------

// Map keys to values
type Map[K comparable, V any] struct {
	list      map[K]V
	mtx       sync.RWMutex
	inProcess bool
}

// NewMap allocates a new mapping.
func NewMap[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{
		list:      make(map[K]V),
		inProcess: false,
	}
}

// Process a function in the locked map context. While 'f' runs, Put, Get
// and Delete do not take the lock again (it is already held).
func (m *Map[K, V]) Process(f func() error) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.inProcess = true
	err := f()
	m.inProcess = false
	return err
}

// Put value into map under given key.
func (m *Map[K, V]) Put(key K, value V) {
	if !m.inProcess {
		m.mtx.Lock()
		defer m.mtx.Unlock()
	}
	m.list[key] = value
}

// Get value with iven key from map.
func (m *Map[K, V]) Get(key K) (value V, ok bool) {
	if !m.inProcess {
		m.mtx.RLock()
		defer m.mtx.RUnlock()
	}
	value, ok = m.list[key]
	return
}

// Delete key/value pair from map.
func (m *Map[K, V]) Delete(key K) {
	if !m.inProcess {
		m.mtx.Lock()
		defer m.mtx.Unlock()
	}
	delete(m.list, key)
}
